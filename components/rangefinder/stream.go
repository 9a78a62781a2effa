package rangefinder

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/logging"
)

// Stream publishes every json-lines frame read from r into buf until r ends or ctx is done.
// Frames that do not parse are logged and skipped. r is closed when ctx ends so a blocked read
// returns.
func Stream(ctx context.Context, r io.ReadCloser, buf *Buffer, logger logging.Logger) error {
	stop := context.AfterFunc(ctx, func() {
		if err := r.Close(); err != nil {
			logger.Debugw("closing scan stream", "error", err)
		}
	})
	defer stop()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var bad int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		samples, err := DecodeFrame(line)
		if err != nil {
			bad++
			logger.Debugw("skipping scan frame", "error", err, "skipped", bad)
			continue
		}
		buf.Update(samples)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrap(scanner.Err(), "reading scan stream")
}
