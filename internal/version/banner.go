package version

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const banner = `
    _    _                          _   ____  _
   / \  | |__  _ __ ___   __ _  __| | |  _ \| | __ _ _ __
  / _ \ | '_ \| '__/ _ \ / _' |/ _' | | |_) | |/ _' | '_ \
 / ___ \| |_) | | | (_) | (_| | (_| | |  __/| | (_| | | | |
/_/   \_\_.__/|_|  \___/ \__,_|\__,_| |_|   |_|\__,_|_| |_|
`

// ANSI 颜色码
const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// PrintBanner 打印启动 Banner 和版本信息到 stderr
func PrintBanner() {
	writeBanner(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// writeBanner 非终端不输出颜色
func writeBanner(w io.Writer, color bool) {
	paint := func(c, s string) string {
		if !color {
			return s
		}
		return c + s + colorReset
	}

	fmt.Fprint(w, paint(colorCyan, banner))
	fmt.Fprintf(w, "  %s\n\n", paint(colorYellow, "Study & Work Abroad Planner"))
	fmt.Fprintf(w, "%-14s %s\n", "Version:", paint(colorGreen, Version))
	fmt.Fprintf(w, "%-14s %s\n", "Commit:", paint(colorGreen, Commit))
	fmt.Fprintf(w, "%-14s %s\n\n", "Build Time:", paint(colorGreen, BuildTime))
}
