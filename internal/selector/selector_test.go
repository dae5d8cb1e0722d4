package selector

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"feedrank/internal/config"
	"feedrank/internal/model"
	"feedrank/internal/scorer"
	"feedrank/internal/signals"
)

// zeroRand draws 0 everywhere: no scorer noise, uniform jitter, no reshuffle swaps.
type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }
func (zeroRand) IntN(int) int     { return 0 }

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSelector(sc scorer.Interface, r Rand) *Selector {
	cfg := config.Default()
	return New(sc, signals.New(cfg.Signals), cfg.Selector,
		WithRand(r), WithClock(func() time.Time { return testNow }))
}

func post(id, author, content string, age time.Duration, likes int) model.Post {
	return model.Post{ID: id, AuthorID: author, Content: content, CreatedAt: testNow.Add(-age), LikeCount: likes}
}

func TestRankEngagementAndRecencyOrder(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("post1", "a", "", 0, 100),
		post("post2", "b", "", 48*time.Hour, 5),
		post("post3", "c", "", time.Hour, 20),
	}
	r := s.Rank(posts, nil, 3)
	want := []string{"post1", "post3", "post2"}
	if got := r.IDs(); !slices.Equal(got, want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
	if len(r.Head()) != 3 {
		t.Fatalf("head size: %d", len(r.Head()))
	}
}

func TestRankSameAuthorBatchUsesDistinctPosts(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	var posts []model.Post
	for i := 0; i < 10; i++ {
		posts = append(posts, post(fmt.Sprintf("p%d", i), "spammer", "Buy my course now!!", time.Duration(i)*time.Minute, 50-i))
	}
	r := s.Rank(posts, nil, 5)
	head := r.Head()
	if len(head) != 5 {
		t.Fatalf("head size: %d", len(head))
	}
	ids := map[string]bool{}
	for _, p := range head {
		if ids[p.ID] {
			t.Fatalf("post %s selected twice", p.ID)
		}
		ids[p.ID] = true
	}
	if len(r.Posts) != 10 {
		t.Fatalf("expected all 10 posts in output, got %d", len(r.Posts))
	}
}

func TestRankIsPermutationAndRespectsLimit(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := newTestSelector(scorer.New(config.DefaultScorer()), rng)
	for round := 0; round < 50; round++ {
		n := 1 + rng.IntN(40)
		var posts []model.Post
		for i := 0; i < n; i++ {
			posts = append(posts, model.Post{
				ID:           fmt.Sprintf("r%d-%d", round, i),
				AuthorID:     fmt.Sprintf("u%d", rng.IntN(5)),
				Content:      fmt.Sprintf("text %d", rng.IntN(4)),
				CreatedAt:    testNow.Add(-time.Duration(rng.IntN(96)) * time.Hour),
				LikeCount:    rng.IntN(200) - 10,
				RetweetCount: rng.IntN(50),
				ReplyCount:   rng.IntN(30),
			})
		}
		limit := rng.IntN(n+8) - 3
		r := s.Rank(posts, nil, limit)

		want := min(max(limit, 1), 60, n)
		if limit == 0 {
			want = min(10, n)
		}
		if r.Limit != want || len(r.Head()) != want {
			t.Fatalf("round %d: limit %d n %d: got head %d", round, limit, n, r.Limit)
		}
		got := r.IDs()
		in := make([]string, n)
		for i, p := range posts {
			in[i] = p.ID
		}
		slices.Sort(got)
		slices.Sort(in)
		if !slices.Equal(got, in) {
			t.Fatalf("round %d: output is not a permutation of input", round)
		}
	}
}

func TestRankTopTwoAuthorsDifferInRandomBatches(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	s := newTestSelector(scorer.New(config.DefaultScorer()), rng)
	for round := 0; round < 200; round++ {
		n := 2 + rng.IntN(30)
		posts := make([]model.Post, n)
		for i := range posts {
			// mostly one dominant author so the top slots often collide
			author := "heavy"
			if i == 0 || rng.IntN(4) == 0 {
				author = fmt.Sprintf("u%d", rng.IntN(3))
			}
			posts[i] = model.Post{
				ID:        fmt.Sprintf("t%d-%d", round, i),
				AuthorID:  author,
				Content:   fmt.Sprintf("text %d", rng.IntN(3)),
				CreatedAt: testNow.Add(-time.Duration(rng.IntN(48)) * time.Hour),
				LikeCount: rng.IntN(300),
			}
		}
		limit := 0
		if rng.IntN(2) == 0 {
			limit = 2 + rng.IntN(n-1)
		}
		r := s.Rank(posts, nil, limit)
		if a, b := r.Posts[0].AuthorKey(), r.Posts[1].AuthorKey(); a == b {
			t.Fatalf("round %d: n %d limit %d: top two share author %s", round, n, limit, a)
		}
	}
}

func TestRankTopTwoSplicesFromRemainder(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("a1", "alice", "first thoughts", 0, 500),
		post("a2", "alice", "second thoughts", 0, 400),
		post("b1", "bob", "unrelated", 10*time.Hour, 1),
	}
	r := s.Rank(posts, nil, 2)
	want := []string{"a1", "b1", "a2"}
	if got := r.IDs(); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRankTopTwoSwapsWithinHead(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("a1", "alice", "first thoughts", 0, 500),
		post("a2", "alice", "second thoughts", 0, 400),
		post("b1", "bob", "unrelated", 10*time.Hour, 1),
	}
	r := s.Rank(posts, nil, 3)
	want := []string{"a1", "b1", "a2"}
	if got := r.IDs(); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRankSeparatesDuplicateContent(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("x", "u1", "Hello   World https://example.com/a", 0, 100),
		post("y", "u2", "hello world", 0, 90),
		post("z", "u3", "something else", 48*time.Hour, 1),
	}
	head := s.Rank(posts, nil, 3).Head()
	if head[0].ID != "x" || head[1].ID != "z" {
		t.Fatalf("expected x then z, got %s then %s", head[0].ID, head[1].ID)
	}
}

func TestRankSingleAuthorKeepsEveryPost(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("a1", "alice", "one", 0, 10),
		post("a2", "alice", "two", 0, 9),
	}
	r := s.Rank(posts, nil, 2)
	if len(r.Posts) != 2 || r.Posts[0].ID == r.Posts[1].ID {
		t.Fatalf("unexpected output %v", r.IDs())
	}
}

func TestRankEmptyBatch(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	r := s.Rank(nil, nil, 5)
	if len(r.Posts) != 0 || r.Limit != 0 || len(r.Head()) != 0 {
		t.Fatalf("expected empty ranking, got %+v", r)
	}
}

func TestRankNoopScorerKeepsInputOrder(t *testing.T) {
	s := newTestSelector(scorer.Noop{}, zeroRand{})
	posts := []model.Post{
		post("c", "u1", "", time.Hour, 1),
		post("a", "u2", "", 0, 1000),
		post("b", "u3", "", 0, 50),
	}
	r := s.Rank(posts, nil, 0)
	if got := r.IDs(); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Fatalf("noop order: %v", got)
	}
	if r.Limit != 3 {
		t.Fatalf("limit: %d", r.Limit)
	}
	posts[0].ID = "mutated"
	if r.Posts[0].ID != "c" {
		t.Fatalf("ranking aliases the input slice")
	}
}

func TestRankRecentlySeenDropsBelowUnseen(t *testing.T) {
	s := newTestSelector(scorer.New(config.DefaultScorer()), zeroRand{})
	posts := []model.Post{
		post("seen", "u1", "alpha", time.Hour, 30),
		post("fresh", "u2", "beta", time.Hour, 30),
	}
	seen := model.SeenMap{"seen": testNow.Add(-10 * time.Minute).Format(time.RFC3339)}
	r := s.Rank(posts, seen, 2)
	if r.Posts[0].ID != "fresh" {
		t.Fatalf("expected unseen post first, got %v", r.IDs())
	}
}

func TestWeighLowersNegativeScores(t *testing.T) {
	if got := weigh(-10, 0.5); got >= -10 {
		t.Fatalf("penalty raised a negative score: %v", got)
	}
	if got := weigh(10, 0.5); got != 5 {
		t.Fatalf("weigh(10, 0.5) = %v", got)
	}
}

func TestResolveLimit(t *testing.T) {
	s := newTestSelector(scorer.Noop{}, zeroRand{})
	cases := []struct{ limit, n, want int }{
		{0, 30, 10},
		{0, 4, 4},
		{-3, 30, 1},
		{-1, 4, 1},
		{5, 30, 5},
		{500, 100, 60},
		{8, 3, 3},
	}
	for _, c := range cases {
		if got := s.resolveLimit(c.limit, c.n); got != c.want {
			t.Fatalf("resolveLimit(%d, %d) = %d want %d", c.limit, c.n, got, c.want)
		}
	}
}
