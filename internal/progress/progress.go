package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

type Mode int

const (
	FixedLength Mode = iota
	Streaming
)

// DefaultBarWidth is the number of cells inside the bar brackets.
const DefaultBarWidth = 30

// Renderer turns transfer counters into one fixed-width terminal line and
// redraws it in place. All formatting is pure; only Render touches Out.
type Renderer struct {
	Mode      Mode
	Total     int64 // -1 when unknown
	BarWidth  int
	TermWidth int
	Out       io.Writer // nil disables drawing
}

// Render overwrites the terminal's current line with a fresh progress line.
// A carriage return and no newline keep repeated calls animating in place.
func (r *Renderer) Render(sent uint64, interval uint64, t time.Duration, rate float64) {
	if r.Out == nil {
		return
	}
	fmt.Fprint(r.Out, "\r"+r.Line(sent, interval, t, rate))
}

// Line formats the full progress line: bar, optional percentage, then a
// right block with the sent-byte count, the elapsed/ETA field and the
// current rate. The result is padded with spaces to exactly TermWidth.
func (r *Renderer) Line(sent uint64, interval uint64, t time.Duration, rate float64) string {
	barWidth := r.BarWidth
	if barWidth <= 0 {
		barWidth = DefaultBarWidth
	}
	var left string
	if r.Mode == FixedLength {
		pct := Percentage(sent, r.Total)
		left = fmt.Sprintf("[%s] %3d%%", fixedBar(pct, barWidth), pct)
	} else {
		left = fmt.Sprintf("[%s]", streamBar(interval, barWidth))
	}
	right := fmt.Sprintf("%13s B  %6s  %11s",
		humanize.Comma(int64(sent)), FormatDuration(t), FormatRate(rate))

	line := left + "  " + right
	if width := r.TermWidth; len(line) < width {
		line += strings.Repeat(" ", width-len(line))
	}
	return line
}

// Percentage is sent*100/total clamped to [0,100]. A zero or unknown total
// yields 0 so an empty file never divides by zero.
func Percentage(sent uint64, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(sent * 100 / uint64(total))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// fixedBar fills proportionally to pct, with the head marker always
// occupying at least one cell.
func fixedBar(pct, width int) string {
	head := width * pct / 100
	if head < 1 {
		head = 1
	}
	return strings.Repeat("=", head-1) + ">" + strings.Repeat(" ", width-head)
}

// streamBar sweeps a marker back and forth as the interval count grows.
// It indicates liveness only and is independent of throughput.
func streamBar(interval uint64, width int) string {
	const marker = "<=>"
	span := width - len(marker)
	if span <= 0 {
		return marker[:width]
	}
	pos := int(interval % uint64(2*span))
	if pos > span {
		pos = 2*span - pos
	}
	return strings.Repeat(" ", pos) + marker + strings.Repeat(" ", span-pos)
}

// FormatDuration scales d to its largest convenient unit, collapsing to
// "<N>d+" once the day count reaches 100.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh%02dm", secs/3600, secs%3600/60)
	case secs < 100*86400:
		return fmt.Sprintf("%dd%02dh", secs/86400, secs%86400/3600)
	}
	return fmt.Sprintf("%dd+", secs/86400)
}

// FormatRate scales a bytes-per-second figure to B/KiB/MiB/GiB with one
// decimal place, dropping a trailing ".0".
func FormatRate(bps float64) string {
	units := []string{"B/s", "KiB/s", "MiB/s", "GiB/s"}
	v := bps
	unit := units[0]
	for _, u := range units {
		unit = u
		if v < 1024 {
			break
		}
		if u != units[len(units)-1] {
			v /= 1024
		}
	}
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0") + unit
}

// TerminalWidth probes the controlling terminal's column count, defaulting
// to 80 whenever the probe fails (not a tty, or no size available).
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// IsTerminal reports whether the progress line can be animated in place.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
