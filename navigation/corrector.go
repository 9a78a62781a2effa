package navigation

import (
	"context"
	"math"

	"github.com/loadlifter/aislenav/utils"
)

type correctorStatus int

const (
	statusWithin correctorStatus = iota
	statusCorrected
	statusAbandoned
)

func (s correctorStatus) String() string {
	switch s {
	case statusWithin:
		return "within"
	case statusCorrected:
		return "corrected"
	default:
		return "abandoned"
	}
}

// corrector drives one scalar error toward zero with bounded incremental steps. It gives up on
// its axis once corrections stop improving the best error seen by at least margin for stallLimit
// attempts in a row. A non-improving attempt whose sign flipped is allowed one opposite-signed
// retry before that.
type corrector struct {
	name       string
	tolerance  float64
	margin     float64
	stallLimit int
	apply      func(ctx context.Context, errValue float64) error

	best        float64
	stalls      int
	lastSign    int
	flipTried   bool
	abandoned   bool
	corrections int
}

func newCorrector(
	name string,
	tolerance, margin float64,
	stallLimit int,
	apply func(ctx context.Context, errValue float64) error,
) *corrector {
	return &corrector{
		name:       name,
		tolerance:  tolerance,
		margin:     margin,
		stallLimit: stallLimit,
		apply:      apply,
		best:       math.Inf(1),
	}
}

// step classifies errValue and, when out of tolerance and still worth trying, applies one
// correction for it.
func (k *corrector) step(ctx context.Context, errValue float64) (correctorStatus, error) {
	status := k.decide(errValue)
	if status != statusCorrected {
		return status, nil
	}
	if err := k.apply(ctx, errValue); err != nil {
		return status, err
	}
	return status, nil
}

func (k *corrector) decide(errValue float64) correctorStatus {
	mag := math.Abs(errValue)
	if mag <= k.tolerance {
		return statusWithin
	}
	if k.abandoned {
		return statusAbandoned
	}
	sign := utils.SignInt(errValue)

	switch {
	case mag < k.best-k.margin:
		k.best = mag
		k.stalls = 0
		k.flipTried = false
	case k.flipTried:
		k.abandoned = true
	case k.corrections > 0 && sign != k.lastSign:
		k.stalls++
		k.flipTried = true
	default:
		k.stalls++
		if k.stalls >= k.stallLimit {
			k.abandoned = true
		}
	}
	if k.abandoned {
		return statusAbandoned
	}
	k.lastSign = sign
	k.corrections++
	return statusCorrected
}
