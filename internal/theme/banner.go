package theme

import (
	"fmt"
	"io"
	"os"
)

// Banner returns the CLI banner. Colour codes are left out when color is false.
func Banner(color bool) string {
	cyan, magenta, reset := "\033[36m", "\033[35m", "\033[0m"
	if !color {
		cyan, magenta, reset = "", "", ""
	}
	return magenta + "  feedrank" + reset + "\n" +
		cyan + "  ▁▂▃▅▆▇ rank the feed, sweep the spam\n" + reset
}

// PrintBanner writes the banner to w, coloured only when w is a terminal.
func PrintBanner(w io.Writer) {
	f, ok := w.(*os.File)
	color := false
	if ok {
		if st, err := f.Stat(); err == nil {
			color = st.Mode()&os.ModeCharDevice != 0
		}
	}
	fmt.Fprint(w, Banner(color))
}
