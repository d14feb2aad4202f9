package download

import (
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// A Sink receives the downloader's output for one download at a time.
type Sink interface {
	Begin(title string)
	Line(line string)
	// End is called once the downloader has exited; ok reports whether it succeeded.
	End(ok bool)
}

// EchoSink writes every line through unchanged.
type EchoSink struct {
	w io.Writer
}

func NewEchoSink(w io.Writer) *EchoSink {
	return &EchoSink{w: w}
}

func (s *EchoSink) Begin(string) {}

func (s *EchoSink) Line(line string) {
	fmt.Fprintln(s.w, line)
}

func (s *EchoSink) End(bool) {}

var progressPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a "[download]  42.0% of ..." line.
func ParseProgress(line string) (float64, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// ProgressSink renders progress lines as a progress bar. Other lines go to the debug log.
type ProgressSink struct {
	w   io.Writer
	bar *progressbar.ProgressBar
	log *zap.SugaredLogger
}

func NewProgressSink(w io.Writer) *ProgressSink {
	return &ProgressSink{w: w, log: zap.S().Named("download")}
}

func (s *ProgressSink) Begin(title string) {
	s.bar = progressbar.NewOptions(1000,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetWidth(40),
	)
}

func (s *ProgressSink) Line(line string) {
	if pct, ok := ParseProgress(line); ok && s.bar != nil {
		_ = s.bar.Set(int(pct * 10))
		return
	}
	s.log.Debug(line)
}

func (s *ProgressSink) End(ok bool) {
	if s.bar == nil {
		return
	}
	if ok {
		_ = s.bar.Finish()
	} else {
		_ = s.bar.Clear()
	}
	fmt.Fprintln(s.w)
	s.bar = nil
}
