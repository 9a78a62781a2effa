package rangefinder

import (
	"github.com/pkg/errors"
)

// Axis names one of the three nominal reading directions.
type Axis string

// The axes a caller can wait on.
const (
	AxisFront Axis = "front"
	AxisLeft  Axis = "left"
	AxisRight Axis = "right"
)

// ErrUnknownAxis is returned for an axis name other than front, left or right.
var ErrUnknownAxis = errors.New("unknown axis")

// Bearing returns the nominal bearing of the axis.
func (a Axis) Bearing() (float64, error) {
	switch a {
	case AxisFront:
		return BearingFront, nil
	case AxisLeft:
		return BearingLeft, nil
	case AxisRight:
		return BearingRight, nil
	}
	return 0, errors.Wrapf(ErrUnknownAxis, "%q", string(a))
}
