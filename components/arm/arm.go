// Package arm defines the pick and place arm carried by the robot.
package arm

import "context"

// Arm picks an object from a shelf and releases it at the base. Each call blocks until the arm
// is back in its travel pose.
type Arm interface {
	Pick(ctx context.Context) error
	Release(ctx context.Context) error
}
