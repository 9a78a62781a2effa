package inject

import (
	"context"

	"github.com/loadlifter/aislenav/components/buzzer"
)

// Buzzer is an injected buzzer.
type Buzzer struct {
	buzzer.Buzzer
	OnFunc  func(ctx context.Context) error
	OffFunc func(ctx context.Context) error
}

// On calls the injected On or the real version.
func (b *Buzzer) On(ctx context.Context) error {
	if b.OnFunc == nil {
		return b.Buzzer.On(ctx)
	}
	return b.OnFunc(ctx)
}

// Off calls the injected Off or the real version.
func (b *Buzzer) Off(ctx context.Context) error {
	if b.OffFunc == nil {
		return b.Buzzer.Off(ctx)
	}
	return b.OffFunc(ctx)
}
