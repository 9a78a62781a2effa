// Package turnprofile reads the optional turn calibration file: measured rotation rates per yaw
// pulse magnitude and the overshoot observed for a given brake impulse.
//
//	{
//	  "deg_per_s": {"left": {"12.0": 182.5, "6.0": 61.0}},
//	  "brake":     {"left": {"opp6t0.06": 4.5}}
//	}
package turnprofile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const sideLeft = "left"

// Profile is a parsed calibration document. Entries that are not numbers are ignored.
type Profile struct {
	DegPerS map[string]map[string]interface{} `json:"deg_per_s"`
	Brake   map[string]map[string]interface{} `json:"brake"`
}

// Parse decodes a calibration document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "bad turn calibration")
	}
	return &p, nil
}

// Load reads a calibration file. A missing file is not an error and returns nil.
func Load(path string) (*Profile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return Parse(data)
}

// DegPerSecond returns the calibrated rotation rate for a pulse magnitude. Keys are matched
// numerically so "12" and "12.0" are the same entry.
func (p *Profile) DegPerSecond(pulse int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	want := math.Abs(float64(pulse))
	for key, raw := range p.DegPerS[sideLeft] {
		k, err := strconv.ParseFloat(key, 64)
		if err != nil || k != want {
			continue
		}
		dps, err := cast.ToFloat64E(raw)
		if err != nil || dps <= 0 {
			return 0, false
		}
		return dps, true
	}
	return 0, false
}

var (
	oppRe  = regexp.MustCompile(`opp(\d+(?:\.\d+)?)`)
	timeRe = regexp.MustCompile(`t(\d+\.\d+)`)
)

// BrakeDeg returns the overshoot recorded for an opposite pulse magnitude and brake duration in
// seconds. The first matching key in sorted order wins.
func (p *Profile) BrakeDeg(oppPulse int, brakeTimeS float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	entries := p.Brake[sideLeft]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	wantOpp := math.Abs(float64(oppPulse))
	wantTime := fmt.Sprintf("%.2f", brakeTimeS)
	for _, key := range keys {
		oppMatch := oppRe.FindStringSubmatch(key)
		timeMatch := timeRe.FindStringSubmatch(key)
		if oppMatch == nil || timeMatch == nil {
			continue
		}
		opp, err := strconv.ParseFloat(oppMatch[1], 64)
		if err != nil || opp != wantOpp {
			continue
		}
		t, err := strconv.ParseFloat(timeMatch[1], 64)
		if err != nil || fmt.Sprintf("%.2f", t) != wantTime {
			continue
		}
		deg, err := cast.ToFloat64E(entries[key])
		if err != nil {
			continue
		}
		return deg, true
	}
	return 0, false
}
