package chat

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/davidbz/hearth/internal/domain"
)

// Sink is the outbound target of a streaming response. Write forwards one
// increment; Flush pushes it to the client before the next upstream increment
// is requested, so a slow client applies backpressure naturally.
type Sink interface {
	io.Writer
	Flush()
}

// Relay consumes the upstream increment sequence one chunk at a time,
// forwarding each increment to sink unmodified and accumulating the complete
// text. It returns the accumulated text together with the error that ended
// the sequence, if any: a nil error means the sequence completed normally and
// the text is safe to persist.
func Relay(ctx context.Context, chunks <-chan domain.StreamChunk, sink Sink) (string, error) {
	var accumulated strings.Builder

	for {
		select {
		case <-ctx.Done():
			return accumulated.String(), ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				return accumulated.String(), nil
			}

			if chunk.Error != nil {
				return accumulated.String(), chunk.Error
			}

			if chunk.Delta != "" {
				accumulated.WriteString(chunk.Delta)

				if _, err := io.WriteString(sink, chunk.Delta); err != nil {
					return accumulated.String(), fmt.Errorf("outbound write failed: %w", err)
				}
				sink.Flush()
			}

			if chunk.Done {
				return accumulated.String(), nil
			}
		}
	}
}
