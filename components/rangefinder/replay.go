package rangefinder

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/logging"
	"github.com/loadlifter/aislenav/utils"
)

// wirePoint is one sample as the scanner bridge writes it. Every field is a json number that may
// carry a fraction, intensity included.
type wirePoint struct {
	Angle     float64 `json:"angle"`
	Distance  float64 `json:"distance"`
	Intensity float64 `json:"intensity"`
}

type frame struct {
	Points []wirePoint `json:"points"`
}

// DecodeFrame parses one stream frame of the form
// {"points":[{"angle":..,"distance":..,"intensity":..}]}. Intensity is rounded and clamped to
// 0..255.
func DecodeFrame(line []byte) ([]Sample, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, errors.Wrap(err, "bad scan frame")
	}
	samples := make([]Sample, 0, len(f.Points))
	for _, p := range f.Points {
		samples = append(samples, Sample{
			BearingDeg: p.Angle,
			DistanceMM: p.Distance,
			Intensity:  uint8(utils.Clamp(math.Round(p.Intensity), 0, math.MaxUint8)),
		})
	}
	return samples, nil
}

// EncodeFrame is the inverse of DecodeFrame.
func EncodeFrame(samples []Sample) ([]byte, error) {
	f := frame{Points: make([]wirePoint, 0, len(samples))}
	for _, s := range samples {
		f.Points = append(f.Points, wirePoint{Angle: s.BearingDeg, Distance: s.DistanceMM, Intensity: float64(s.Intensity)})
	}
	return json.Marshal(f)
}

// ReadFrames reads every json-lines frame from r. Blank lines are skipped.
func ReadFrames(r io.Reader) ([][]Sample, error) {
	var frames [][]Sample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		samples, err := DecodeFrame(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		frames = append(frames, samples)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Replay publishes recorded frames into a Buffer at a fixed period, like a live acquisition
// loop would. When Loop is set it starts over at the end, otherwise it returns once every frame
// was published.
type Replay struct {
	Frames [][]Sample
	Period time.Duration
	Loop   bool
	Clock  clock.Clock
	Logger logging.Logger
}

// Run publishes frames until done or the context ends.
func (r *Replay) Run(ctx context.Context, buf *Buffer) error {
	if len(r.Frames) == 0 {
		return errors.New("replay has no frames")
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.New()
	}
	for {
		for i, samples := range r.Frames {
			buf.Update(samples)
			if r.Logger != nil {
				r.Logger.Debugw("replayed scan frame", "frame", i, "points", len(samples))
			}
			if !utils.SelectContextOrWait(ctx, clk, r.Period) {
				return ctx.Err()
			}
		}
		if !r.Loop {
			return nil
		}
	}
}
