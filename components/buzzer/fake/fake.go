// Package fake implements a buzzer that only logs, for dry runs and tests.
package fake

import (
	"context"
	"sync"

	"github.com/loadlifter/aislenav/logging"
)

// Buzzer logs state changes.
type Buzzer struct {
	mu     sync.Mutex
	on     bool
	logger logging.Logger
}

// NewBuzzer returns a Buzzer that starts off.
func NewBuzzer(logger logging.Logger) *Buzzer {
	return &Buzzer{logger: logger}
}

// On implements buzzer.Buzzer.
func (b *Buzzer) On(ctx context.Context) error {
	b.set(true)
	return nil
}

// Off implements buzzer.Buzzer.
func (b *Buzzer) Off(ctx context.Context) error {
	b.set(false)
	return nil
}

// IsOn reports the current state.
func (b *Buzzer) IsOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

func (b *Buzzer) set(on bool) {
	b.mu.Lock()
	changed := b.on != on
	b.on = on
	b.mu.Unlock()
	if changed {
		b.logger.Infow("buzzer", "on", on)
	}
}
