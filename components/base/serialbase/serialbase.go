// Package serialbase drives a base controller board over a serial line protocol:
//
//	D <forward_mm_s> <strafe> <yaw>\n   drive
//	S\n                                 stop all wheels
//	B1\n / B0\n                         buzzer on / off
package serialbase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/loadlifter/aislenav/components/base"
	"github.com/loadlifter/aislenav/components/buzzer"
	"github.com/loadlifter/aislenav/logging"
)

// DefaultBaudRate is used when Config.BaudRate is zero.
const DefaultBaudRate = 115200

// Config selects the serial device.
type Config struct {
	Path     string `json:"serial_path"`
	BaudRate int    `json:"serial_baud"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.Path == "" {
		return errors.New("serial_path is required")
	}
	if cfg.BaudRate < 0 {
		return errors.Errorf("serial_baud must be positive, got %d", cfg.BaudRate)
	}
	return nil
}

var (
	_ base.Actuator = (*Base)(nil)
	_ buzzer.Buzzer = (*Base)(nil)
)

// Base writes drive commands to a serial port.
type Base struct {
	mu     sync.Mutex
	port   io.WriteCloser
	logger logging.Logger
	closed bool
}

// Open opens the serial device and returns a Base writing to it.
func Open(cfg Config, logger logging.Logger) (*Base, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open base serial port %q", cfg.Path)
	}
	logger.Infow("opened base serial port", "path", cfg.Path, "baud", baud)
	return New(port, logger), nil
}

// New returns a Base writing to an already open port.
func New(port io.WriteCloser, logger logging.Logger) *Base {
	return &Base{port: port, logger: logger}
}

func (b *Base) write(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("base serial port is closed")
	}
	if _, err := io.WriteString(b.port, line); err != nil {
		return errors.Wrapf(err, "writing %q", line)
	}
	return nil
}

// DriveFull sends a drive command.
func (b *Base) DriveFull(ctx context.Context, forwardMMs float64, strafe, yaw int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.write(fmt.Sprintf("D %.0f %d %d\n", forwardMMs, strafe, yaw))
}

// Stop sends a stop command.
func (b *Base) Stop(ctx context.Context) error {
	return b.write("S\n")
}

// On turns the buzzer on.
func (b *Base) On(ctx context.Context) error {
	return b.write("B1\n")
}

// Off turns the buzzer off.
func (b *Base) Off(ctx context.Context) error {
	return b.write("B0\n")
}

// Close stops the base and closes the port.
func (b *Base) Close(ctx context.Context) error {
	stopErr := b.Stop(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.port.Close(); err != nil {
		return err
	}
	if stopErr != nil {
		b.logger.Warnw("failed to stop base before closing", "error", stopErr)
	}
	return nil
}
