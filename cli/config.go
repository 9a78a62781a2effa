package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/loadlifter/aislenav/config"
	"github.com/loadlifter/aislenav/navigation"
	"github.com/loadlifter/aislenav/navigation/turnprofile"
)

func loadConfig(c *cli.Context) (*navigation.Config, error) {
	path := c.String(generalFlagConfig)
	attrs, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	return navigation.NewConfig(path, attrs)
}

// ConfigCheckAction is the corresponding Action for 'config check'.
func ConfigCheckAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	for _, row := range configRows(cfg) {
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

func configRows(cfg *navigation.Config) []table.Row {
	return []table.Row{
		{"left_target_mm", cfg.LeftTargetMM},
		{"front_stop_mm", cfg.FrontStopMM},
		{"forward_mm_s", cfg.ForwardMMs},
		{"left_mode", cfg.LeftMode},
		{"front_mode", cfg.FrontMode},
		{"Kp_err", cfg.KpErr},
		{"Kp_orient", cfg.KpOrient},
		{"MIN_YAW / MAX_YAW", fmt.Sprintf("%d / %d", cfg.MinYaw, cfg.MaxYaw)},
		{"TOL_MM", cfg.TolMM},
		{"GUARD_EXTRA", cfg.GuardExtraMM},
		{"MIN_FWD", cfg.MinFwd},
		{"MAX_SLOWERR", cfg.MaxSlowErrMM},
		{"Kp_center", cfg.KpCenter},
		{"calib_file", cfg.CalibFile},
		{"yaw_fast / yaw_slow", fmt.Sprintf("%v / %v", cfg.YawFast, cfg.YawSlow)},
		{"ratio_fast", cfg.RatioFast},
		{"brake_opp / brake_time", fmt.Sprintf("%v / %vs", cfg.BrakeOpp, cfg.BrakeTimeS)},
		{"rotation_scaling (90 / 180)", fmt.Sprintf(
			"%v (%v / %v)", cfg.Rotation.Scaling, cfg.Rotation.Scaling90, cfg.Rotation.Scaling180)},
		{"right_open_mm", cfg.RightOpenMM},
		{"right_open_rearm_mm", cfg.RearmBelowMM()},
		{"right_open_require_rearm", cfg.RightOpenRequireRearm},
		{"extra_forward_after_open_s", cfg.ExtraForwardAfterOpenS},
		{"extra_forward_after_open_repeat_s", cfg.ExtraForwardAfterOpenRepeatS()},
		{"sidekick_initial_forward_s", cfg.SidekickInitialForwardS},
		{"side_dead_end_mm", cfg.SideDeadEndMM},
		{"side_rejoin_front_mm", cfg.SideRejoinFrontMM},
		{"side_final_forward_s", cfg.SideFinalForwardS},
		{"buzzer_start_s / buzzer_end_s", fmt.Sprintf("%v / %v", cfg.Mission.BuzzerStartS, cfg.Mission.BuzzerEndS)},
		{"defined_route_front_target_mm", cfg.Mission.DefinedRouteFrontTargetMM},
		{"align_max_iters", cfg.Align.MaxIterations},
		{"align_valid_streak", cfg.Align.ValidStreak},
		{"homing_coarse_iters / homing_fine_iters", fmt.Sprintf(
			"%d / %d", cfg.Homing.CoarseIterations, cfg.Homing.FineIterations)},
	}
}

// TurnPlanAction is the corresponding Action for 'turn-plan'.
func TurnPlanAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dir := navigation.TurnLeft
	if c.Bool(turnFlagRight) {
		dir = navigation.TurnRight
	}
	logger := newLogger(c)
	var profile *turnprofile.Profile
	if cfg.CalibFile != "" {
		profile, err = turnprofile.Load(cfg.CalibFile)
		if err != nil {
			return errors.Wrap(err, "loading turn calibration")
		}
		if profile == nil {
			logger.Warnw("turn calibration file missing, using the heuristic", "path", cfg.CalibFile)
		}
	}
	plan := cfg.PlanTurn(c.Float64(turnFlagDeg), dir, profile)

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetTitle(fmt.Sprintf("%v° %s", plan.TargetDeg, plan.Direction))
	t.AppendHeader(table.Row{"Phase", "Yaw", "Duration"})
	t.AppendRow(table.Row{"fast", plan.FastYaw, plan.FastDuration})
	t.AppendRow(table.Row{"slow", plan.SlowYaw, plan.SlowDuration})
	t.AppendRow(table.Row{"brake", plan.BrakeYaw, plan.BrakeDuration})
	t.AppendFooter(table.Row{"total", "", plan.Total()})
	t.Render()

	fmt.Fprintf(c.App.Writer, "scale %.3f, brake %.1f°, effective %.1f°, calibrated %t\n",
		plan.Scale, plan.BrakeDeg, plan.EffectiveDeg, plan.Calibrated)
	return nil
}
