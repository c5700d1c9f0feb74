package serialmux

import (
	"context"
	"errors"

	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
)

// DecodeFixes turns receiver lines into fixes until ctx is done or lines is
// closed, then closes the returned channel. Lines that are not fixes are
// skipped; fixes that fail to decode are logged and skipped.
func DecodeFixes(ctx context.Context, lines <-chan string) <-chan gps.Fix {
	out := make(chan gps.Fix)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				if ClassifyPayload(line) != EventTypeFix {
					continue
				}
				fix, err := gps.ParseFixLine(line)
				if errors.Is(err, gps.ErrNotFix) {
					continue
				}
				if err != nil {
					monitoring.Logf("serialmux: dropping line %q: %v", line, err)
					continue
				}
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
