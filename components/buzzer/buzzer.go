// Package buzzer defines the on/off signal used to mark the start and end of a mission.
package buzzer

import "context"

// Buzzer is an on/off signal.
type Buzzer interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
}
