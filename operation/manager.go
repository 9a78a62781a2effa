// Package operation tracks the single behavior a robot body may be running at a time.
package operation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/loadlifter/aislenav/utils"
)

// SingleOperationManager ensures only 1 operation is happening a time
// An operation can be nested, so if there is already an operation in progress,
// it can have sub-operations without an issue.
type SingleOperationManager struct {
	// Clock paces WaitForSuccess and NewTimedWaitOp. A nil Clock uses wall time.
	Clock clock.Clock

	mu        sync.Mutex
	currentOp *anOp
}

// Op describes a running operation.
type Op struct {
	ID      uuid.UUID
	Name    string
	Started time.Time
}

// CancelRunning cancel's a current operation unless it's mine.
func (sm *SingleOperationManager) CancelRunning(ctx context.Context) {
	if ctx.Value(somCtxKeySingleOp) != nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelInLock(ctx)
}

// OpRunning returns if there is a current operation.
func (sm *SingleOperationManager) OpRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.currentOp != nil
}

// Current returns the running operation, if any.
func (sm *SingleOperationManager) Current() (Op, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.currentOp == nil {
		return Op{}, false
	}
	return sm.currentOp.info, true
}

// FromContext returns the operation a context belongs to.
func FromContext(ctx context.Context) (Op, bool) {
	op, ok := ctx.Value(somCtxKeySingleOp).(*anOp)
	if !ok {
		return Op{}, false
	}
	return op.info, true
}

type somCtxKey byte

const somCtxKeySingleOp = somCtxKey(iota)

func (sm *SingleOperationManager) clock() clock.Clock {
	if sm.Clock == nil {
		return clock.New()
	}
	return sm.Clock
}

// New creates a new operation, cancels previous, returns a new context and function to call when done.
func (sm *SingleOperationManager) New(ctx context.Context, name string) (context.Context, func()) {
	// handle nested ops
	if ctx.Value(somCtxKeySingleOp) != nil {
		return ctx, func() {}
	}

	sm.mu.Lock()

	// first cancel any old operation
	sm.cancelInLock(ctx)

	theOp := &anOp{info: Op{ID: uuid.New(), Name: name, Started: sm.clock().Now()}}

	ctx = context.WithValue(ctx, somCtxKeySingleOp, theOp)

	theOp.ctx, theOp.cancelFunc = context.WithCancel(ctx)
	sm.currentOp = theOp
	sm.mu.Unlock()

	return theOp.ctx, func() {
		theOp.cancelFunc()
		sm.mu.Lock()
		if theOp == sm.currentOp {
			sm.currentOp = nil
		}
		sm.mu.Unlock()
	}
}

// NewTimedWaitOp returns true if it finished, false if cancelled.
// If there are other operations pending, this will cancel them.
func (sm *SingleOperationManager) NewTimedWaitOp(ctx context.Context, name string, dur time.Duration) bool {
	ctx, finish := sm.New(ctx, name)
	defer finish()

	return utils.SelectContextOrWait(ctx, sm.clock(), dur)
}

// WaitForSuccess will call testFunc every pollTime until it returns true or an error.
func (sm *SingleOperationManager) WaitForSuccess(
	ctx context.Context,
	name string,
	pollTime time.Duration,
	testFunc func(ctx context.Context) (bool, error),
) error {
	ctx, finish := sm.New(ctx, name)
	defer finish()

	clk := sm.clock()
	for {
		res, err := testFunc(ctx)
		if err != nil {
			return err
		}
		if res {
			return nil
		}

		if !utils.SelectContextOrWait(ctx, clk, pollTime) {
			return ctx.Err()
		}
	}
}

func (sm *SingleOperationManager) cancelInLock(ctx context.Context) {
	myOp := ctx.Value(somCtxKeySingleOp)
	op := sm.currentOp

	if op == nil || myOp == op {
		return
	}

	op.cancelFunc()

	sm.currentOp = nil
}

type anOp struct {
	info       Op
	ctx        context.Context
	cancelFunc context.CancelFunc
}
