package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Pump decodes events from dec and sends them on out until the stream
// ends, turns out to be corrupt, or ctx is cancelled. Events that fail to
// decode on their own are logged and skipped.
func Pump(ctx context.Context, dec Decoder, out chan<- any, logger *slog.Logger) error {
	for {
		event, err := dec.Decode()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrCorruptStream):
			return err
		case err != nil:
			logger.Warn("dropping undecodable event", "error", err)
			continue
		}
		select {
		case out <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
