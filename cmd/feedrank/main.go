package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/subosito/gotenv"

	"feedrank/internal/cmdlog"
	"feedrank/internal/config"
	"feedrank/internal/jobs"
	"feedrank/internal/logging"
	"feedrank/internal/metrics"
	"feedrank/internal/model"
	"feedrank/internal/moderation"
	"feedrank/internal/scorer"
	"feedrank/internal/selector"
	"feedrank/internal/signals"
	"feedrank/internal/spam"
	"feedrank/internal/store/sqlitestore"
	"feedrank/internal/theme"
)

func main() {
	_ = gotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run(cmd, cmdInit)
	case "rank":
		err = cmdlog.Run(cmd, cmdRank)
	case "analyze":
		err = cmdlog.Run(cmd, cmdAnalyze)
	case "lift":
		err = cmdlog.Run(cmd, cmdLift)
	case "sweep":
		err = cmdlog.Run(cmd, cmdSweep)
	case "import":
		err = cmdlog.Run(cmd, cmdImport)
	case "serve-metrics":
		err = cmdlog.Run(cmd, cmdServeMetrics)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner(os.Stdout)
	fmt.Println("Usage: feedrank <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init           Write a default config to ./feedrank.yaml")
	fmt.Println("  rank           Rank a JSON batch of posts (or recent stored posts)")
	fmt.Println("  analyze        Spam analysis for one user, optionally enforced")
	fmt.Println("  lift           Lift an automated shadowban")
	fmt.Println("  sweep          Analyze recently active users once, or in a loop")
	fmt.Println("  import         Load users, posts and direct messages from JSON")
	fmt.Println("  serve-metrics  Serve /metrics and /health until interrupted")
}

// app holds what every command needs once flags are parsed.
type app struct {
	cfg config.Config
	log *slog.Logger
}

func setup(fs *flag.FlagSet) (*app, error) {
	cfgPath := fs.String("config", "./feedrank.yaml", "config path")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return nil, err
	}
	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
	} else if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// stdout carries command output
	l := logging.Init(cfg.Logging, os.Stderr)
	metrics.StartServer(cfg.Metrics.Addr)
	return &app{cfg: cfg, log: l}, nil
}

func (a *app) openStore() (*sqlitestore.DB, error) {
	db, err := sqlitestore.Open(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", a.cfg.Storage.DBPath, err)
	}
	return db, nil
}

func (a *app) analyzer(db *sqlitestore.DB) *spam.Analyzer {
	return spam.New(db, signals.New(a.cfg.Signals), a.cfg.Spam, spam.WithLogger(a.log))
}

func (a *app) moderator(db *sqlitestore.DB) *moderation.Moderator {
	return moderation.New(db, a.cfg.Moderation, moderation.WithLogger(a.log))
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./feedrank.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner(os.Stdout)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdRank() error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	postsPath := fs.String("posts", "", "JSON array of posts; empty reads recent posts from the store")
	seenPath := fs.String("seen", "", "JSON object of post id -> last seen time")
	since := fs.Duration("since", 24*time.Hour, "store lookback when -posts is empty")
	candidates := fs.Int("candidates", 1000, "store candidate cap when -posts is empty")
	limit := fs.Int("limit", 0, "number of posts to select; 0 uses the default")
	full := fs.Bool("full", false, "print full posts instead of ids")
	a, err := setup(fs)
	if err != nil {
		return err
	}

	var posts []model.Post
	if *postsPath != "" {
		if err := readJSON(*postsPath, &posts); err != nil {
			return err
		}
	} else {
		db, err := a.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if posts, err = db.Candidates(context.Background(), time.Now().Add(-*since), *candidates); err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
	}
	seen := model.SeenMap{}
	if *seenPath != "" {
		if err := readJSON(*seenPath, &seen); err != nil {
			return err
		}
	}

	sel := selector.New(scorer.FromConfig(a.cfg), signals.New(a.cfg.Signals), a.cfg.Selector, selector.WithLogger(a.log))
	r := sel.Rank(posts, seen, *limit)
	if *full {
		return writeJSON(map[string]any{"limit": r.Limit, "posts": r.Posts})
	}
	return writeJSON(map[string]any{"limit": r.Limit, "ids": r.IDs()})
}

func cmdAnalyze() error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	enforce := fs.Bool("enforce", false, "persist the score and shadowban above the threshold")
	a, err := setup(fs)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: feedrank analyze [-enforce] <user-id>")
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	res, err := a.analyzer(db).Analyze(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	out := map[string]any{"result": res}
	if *enforce {
		o, err := a.moderator(db).Enforce(ctx, res)
		if err != nil {
			return err
		}
		out["moderation"] = o
	}
	return writeJSON(out)
}

func cmdLift() error {
	fs := flag.NewFlagSet("lift", flag.ExitOnError)
	actor := fs.String("actor", "admin", "moderator id recorded in the log")
	reason := fs.String("reason", "manual review", "reason recorded in the log")
	a, err := setup(fs)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: feedrank lift [-actor id] [-reason text] <user-id>")
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	lifted, err := a.moderator(db).Lift(context.Background(), fs.Arg(0), *actor, *reason)
	if err != nil {
		return err
	}
	return writeJSON(map[string]any{"user_id": fs.Arg(0), "lifted": lifted})
}

func cmdSweep() error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	loop := fs.Bool("loop", false, "repeat every sweep.interval until interrupted")
	a, err := setup(fs)
	if err != nil {
		return err
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	an, mod := a.analyzer(db), a.moderator(db)
	if !*loop {
		sum, err := jobs.RunSweepOnce(context.Background(), db, an, mod, a.cfg.Sweep)
		if err != nil {
			return err
		}
		return writeJSON(sum)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := jobs.RunSweepLoop(ctx, db, an, mod, a.cfg.Sweep); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdImport() error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	usersPath := fs.String("users", "", "JSON array of users")
	postsPath := fs.String("posts", "", "JSON array of posts; embedded authors are stored too")
	msgsPath := fs.String("messages", "", "JSON array of direct messages")
	a, err := setup(fs)
	if err != nil {
		return err
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	counts := map[string]int{}

	if *usersPath != "" {
		var users []model.Author
		if err := readJSON(*usersPath, &users); err != nil {
			return err
		}
		for _, u := range users {
			if err := db.PutUser(ctx, u); err != nil {
				return fmt.Errorf("user %s: %w", u.ID, err)
			}
		}
		counts["users"] = len(users)
	}
	if *postsPath != "" {
		var posts []model.Post
		if err := readJSON(*postsPath, &posts); err != nil {
			return err
		}
		for _, p := range posts {
			if p.Author.ID != "" {
				if err := db.PutUser(ctx, p.Author); err != nil {
					return fmt.Errorf("author %s: %w", p.Author.ID, err)
				}
			}
			if err := db.PutPost(ctx, p); err != nil {
				return fmt.Errorf("post %s: %w", p.ID, err)
			}
		}
		counts["posts"] = len(posts)
	}
	if *msgsPath != "" {
		var msgs []sqlitestore.Message
		if err := readJSON(*msgsPath, &msgs); err != nil {
			return err
		}
		for _, m := range msgs {
			if err := db.PutMessage(ctx, m); err != nil {
				return fmt.Errorf("message %s: %w", m.ID, err)
			}
		}
		counts["messages"] = len(msgs)
	}
	logging.Info("import_done", map[string]any{"users": counts["users"], "posts": counts["posts"], "messages": counts["messages"]})
	return writeJSON(counts)
}

func cmdServeMetrics() error {
	fs := flag.NewFlagSet("serve-metrics", flag.ExitOnError)
	addr := fs.String("addr", ":9090", "listen address when metrics.addr is unset")
	a, err := setup(fs)
	if err != nil {
		return err
	}
	if a.cfg.Metrics.Addr == "" {
		metrics.StartServer(*addr)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: file not found", path)
	} else if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
