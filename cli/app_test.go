package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/loadlifter/aislenav/mission"
)

func writeConfig(t *testing.T, attrs map[string]interface{}) string {
	t.Helper()
	base := map[string]interface{}{
		"left_target_mm":             300,
		"front_stop_mm":              400,
		"forward_mm_s":               200,
		"left_mode":                  "median",
		"front_mode":                 "median",
		"Kp_err":                     0.05,
		"Kp_orient":                  0.5,
		"MAX_YAW":                    20,
		"MIN_YAW":                    3,
		"TOL_MM":                     10,
		"GUARD_EXTRA":                100,
		"MIN_FWD":                    0.3,
		"MAX_SLOWERR":                200,
		"Kp_center":                  0.05,
		"calib_file":                 "",
		"yaw_fast":                   0.3,
		"yaw_slow":                   10,
		"ratio_fast":                 0.7,
		"brake_opp":                  6,
		"brake_time":                 0.1,
		"right_open_mm":              900,
		"extra_forward_after_open_s": 0.5,
		"sidekick_initial_forward_s": 0.4,
		"side_dead_end_mm":           450,
		"side_rejoin_front_mm":       500,
		"side_final_forward_s":       0.3,
		"right_open_require_rearm":   false,
	}
	for k, v := range attrs {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	data, err := json.Marshal(base)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"navctl"}, args...))
	return out.String(), err
}

func TestConfigCheck(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{"right_open_rearm_mm": 650})
	out, err := runApp(t, "--config", path, "config", "check")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "left_target_mm")
	test.That(t, out, test.ShouldContainSubstring, "650")

	path = writeConfig(t, map[string]interface{}{"front_stop_mm": nil})
	_, err = runApp(t, "--config", path, "config", "check")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "front_stop_mm")

	_, err = runApp(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "config", "check")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTurnPlanCommand(t *testing.T) {
	path := writeConfig(t, nil)
	out, err := runApp(t, "--config", path, "turn-plan", "--deg", "180")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "180° left")
	test.That(t, out, test.ShouldContainSubstring, "calibrated false")

	out, err = runApp(t, "--config", path, "turn-plan", "--deg", "90", "--right")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "90° right")

	calib := filepath.Join(t.TempDir(), "calib.json")
	test.That(t, os.WriteFile(calib, []byte(`{not json`), 0o600), test.ShouldBeNil)
	path = writeConfig(t, map[string]interface{}{"calib_file": calib})
	_, err = runApp(t, "--config", path, "turn-plan")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunArguments(t *testing.T) {
	path := writeConfig(t, nil)

	_, err := runApp(t, "--config", path, "run", "--mode", "remote", "--dry-run")
	test.That(t, errors.Is(err, mission.ErrUnknownMode), test.ShouldBeTrue)

	_, err = runApp(t, "--config", path, "run", "--mode", "follow_wall", "--dry-run")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "--scan-replay")

	_, err = runApp(t, "--config", path, "run", "--mode", "follow_wall", "--dry-run",
		"--scan-replay", "a.jsonl", "--scan-stream", "-")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mutually exclusive")

	_, err = runApp(t, "--config", path, "run", "--mode", "follow_wall", "--dry-run",
		"--scan-replay", filepath.Join(t.TempDir(), "missing.jsonl"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "opening scan recording")
}
