package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var startTime = time.Now()

// statusRow is the terminal row of the live status line; logs scroll
// from scrollTop down.
const (
	statusRow = 10
	scrollTop = 12
)

var (
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	healthStyle = map[string]lipgloss.Style{
		"ok":      lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		"late":    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"stalled": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
)

// termMu serialises all terminal output so the status line's cursor
// save/restore is never split by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type termWriter struct {
	w io.Writer
}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.w.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput(). Writes
// to stderr are serialised with the status line.
func NewTermWriter() io.Writer {
	return termWriter{w: os.Stderr}
}

func PrintBanner() {
	banner := `
   _____ __             __                         __
  / ___// /__________ _/ /_____ _____ ____  ____  / /_
  \__ \/ __/ ___/ __ '/ __/ __ '/ __ '/ _ \/ __ \/ __/
 ___/ / /_/ /  / /_/ / /_/ /_/ / /_/ /  __/ / / / /_
/____/\__/_/   \__,_/\__/\__,_/\__, /\___/_/ /_/\__/
                              /____/
       >> IDEA . ELEMENTS . MARKETING . STRATEGY <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		pad := max((width-len(l))/2, 0)
		fmt.Println(strings.Repeat(" ", pad) + bannerStyle.Render(l))
	}
}

// InitializeTerminal reserves the top rows for the banner and the status
// line and scrolls logs below them. Used by the chat gateways only.
func InitializeTerminal() {
	fmt.Print("\033[2J\033[H")
	PrintBanner()
	fmt.Printf("\033[%d;r\033[%d;1H", scrollTop, scrollTop)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// health grades the heartbeat age.
func health(age time.Duration) string {
	switch {
	case age > 90*time.Second:
		return "stalled"
	case age > 40*time.Second:
		return "late"
	}
	return "ok"
}

// statusLine renders the activity summary, clipped to width characters.
func statusLine(st Status, now time.Time, heapMB float64, width int) string {
	activity := "idle"
	if st.InFlight == 1 {
		activity = "running " + st.ActiveTask
	} else if st.InFlight > 1 {
		activity = fmt.Sprintf("%d stages running, latest %s", st.InFlight, st.ActiveTask)
	}

	line := fmt.Sprintf("[%s] %s | %s | %d stages done | up %v | heap %.1fMB",
		now.Format("15:04:05"),
		health(now.Sub(st.LastHeartbeat)),
		activity,
		st.Finished,
		now.Sub(startTime).Round(time.Second),
		heapMB,
	)
	return clip(line, width)
}

func clip(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	if width == 1 {
		return string(r[:1])
	}
	return string(r[:width-1]) + "…"
}

// PrintLiveStatus redraws the status line.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := CurrentStatus()
	now := time.Now()
	line := statusLine(st, now, float64(m.HeapAlloc)/1024/1024, termWidth())
	styled := healthStyle[health(now.Sub(st.LastHeartbeat))].Render(line)

	termMu.Lock()
	fmt.Printf("\033[s\033[%d;1H\033[K%s\033[u", statusRow, styled)
	termMu.Unlock()
}
