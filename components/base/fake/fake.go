// Package fake implements a recording base actuator for tests and dry runs.
package fake

import (
	"context"
	"sync"
)

// Command is one call recorded by Actuator.
type Command struct {
	ForwardMMs float64
	Strafe     int
	Yaw        int
	Stop       bool
}

// IsZero reports whether the command is a zero drive or a stop.
func (c Command) IsZero() bool {
	return c.Stop || (c.ForwardMMs == 0 && c.Strafe == 0 && c.Yaw == 0)
}

// Actuator records every command it is given. OnCommand, when set, is called with each
// command and its error is returned to the caller after recording.
type Actuator struct {
	mu         sync.Mutex
	commands   []Command
	OnCommand  func(Command) error
	CloseCount int
}

func (a *Actuator) record(cmd Command) error {
	a.mu.Lock()
	a.commands = append(a.commands, cmd)
	hook := a.OnCommand
	a.mu.Unlock()
	if hook != nil {
		return hook(cmd)
	}
	return nil
}

// DriveFull records a drive command.
func (a *Actuator) DriveFull(ctx context.Context, forwardMMs float64, strafe, yaw int) error {
	return a.record(Command{ForwardMMs: forwardMMs, Strafe: strafe, Yaw: yaw})
}

// Stop records a stop.
func (a *Actuator) Stop(ctx context.Context) error {
	return a.record(Command{Stop: true})
}

// Close counts closes.
func (a *Actuator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CloseCount++
	return nil
}

// Commands returns a copy of everything recorded so far.
func (a *Actuator) Commands() []Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]Command, len(a.commands))
	copy(cp, a.commands)
	return cp
}
