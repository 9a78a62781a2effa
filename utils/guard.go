package utils

// Guard runs a cleanup on early-return failure paths of a function that acquires a resource.
//
//	guard := NewGuard(func() { port.Close() })
//	defer guard.OnFail()
//	...
//	guard.Success()
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that runs onFail unless Success was called first.
func NewGuard(onFail func()) *Guard {
	g := &Guard{}
	g.OnFail = func() {
		if !g.success {
			onFail()
		}
	}
	return g
}

// Success hands the resource over; OnFail becomes a no-op.
func (g *Guard) Success() {
	g.success = true
}
