package navigation

import (
	"sync"

	"github.com/loadlifter/aislenav/components/base/fake"
	rfake "github.com/loadlifter/aislenav/components/rangefinder/fake"
)

// channelPlant moves the robot inside a fake channel in response to each command, treating every
// command as held for one short interval.
type channelPlant struct {
	src *rfake.Source
	act *fake.Actuator

	mu sync.Mutex
	ch rfake.Channel
}

const (
	plantDegPerYaw     = 0.08
	plantMMPerStrafe   = 0.4
	plantSecondsPerCmd = 0.05
)

func newChannelPlant(ch rfake.Channel) *channelPlant {
	p := &channelPlant{src: rfake.NewChannelSource(ch), act: &fake.Actuator{}, ch: ch}
	p.act.OnCommand = p.apply
	return p
}

func (p *channelPlant) apply(cmd fake.Command) error {
	if cmd.IsZero() {
		return nil
	}
	p.mu.Lock()
	p.ch.YawDeg += float64(cmd.Yaw) * plantDegPerYaw
	p.ch.LeftMM -= float64(cmd.Strafe) * plantMMPerStrafe
	p.ch.RightMM += float64(cmd.Strafe) * plantMMPerStrafe
	if p.ch.FrontMM > 0 {
		p.ch.FrontMM -= cmd.ForwardMMs * plantSecondsPerCmd
	}
	ch := p.ch
	p.mu.Unlock()
	p.src.SetChannel(ch)
	return nil
}

func (p *channelPlant) channel() rfake.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch
}
