// Package spinner draws a one-line progress indicator while apicheck waits on
// the server.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const tick = 80 * time.Millisecond

// Start displays an animated spinner with the given message on w, followed
// by the elapsed time. When limit is positive the line reads "elapsed/limit".
// Call the returned function to stop the spinner and clear the line; it is
// safe to call more than once.
func Start(w io.Writer, message string, limit time.Duration) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	start := time.Now()

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		widest := 0
		for i := 0; ; i++ {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", widest)) //nolint:errcheck
				close(cleared)
				return
			case <-ticker.C:
				line := Line(frames[i%len(frames)], message, time.Since(start), limit)
				if n := runewidth.StringWidth(line); n > widest {
					widest = n
				}
				fmt.Fprintf(w, "\r%s", line) //nolint:errcheck
			}
		}
	}()

	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}

// Line renders a single spinner frame.
func Line(frame, message string, elapsed, limit time.Duration) string {
	e := elapsed.Truncate(100 * time.Millisecond).Seconds()
	if limit > 0 {
		return fmt.Sprintf("%s %s (%.1fs/%s)", frame, message, e, limit)
	}
	return fmt.Sprintf("%s %s (%.1fs)", frame, message, e)
}
