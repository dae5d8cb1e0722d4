package theme

import (
	"bytes"
	"strings"
	"testing"
)

func TestBannerPlainHasNoEscapes(t *testing.T) {
	if b := Banner(false); strings.Contains(b, "\033[") || !strings.Contains(b, "feedrank") {
		t.Fatalf("plain banner: %q", b)
	}
	var buf bytes.Buffer
	PrintBanner(&buf)
	if buf.String() != Banner(false) {
		t.Fatalf("non-terminal writer should get the plain banner")
	}
}
