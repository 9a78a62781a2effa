package navigation

import (
	"github.com/pkg/errors"

	"github.com/loadlifter/aislenav/components/rangefinder"
	"github.com/loadlifter/aislenav/config"
)

// Config is the validated, immutable parameter set of a Controller.
type Config struct {
	LeftTargetMM float64
	FrontStopMM  float64
	ForwardMMs   float64
	LeftMode     rangefinder.Mode
	FrontMode    rangefinder.Mode

	KpErr        float64
	KpOrient     float64
	MaxYaw       int
	MinYaw       int
	TolMM        float64
	GuardExtraMM float64
	MinFwd       float64
	MaxSlowErrMM float64
	KpCenter     float64

	CalibFile  string
	YawFast    float64
	YawSlow    float64
	RatioFast  float64
	BrakeOpp   float64
	BrakeTimeS float64

	RightOpenMM             float64
	RightOpenRequireRearm   bool
	ExtraForwardAfterOpenS  float64
	SidekickInitialForwardS float64
	SideDeadEndMM           float64
	SideRejoinFrontMM       float64
	SideFinalForwardS       float64

	Rotation RotationConfig
	Event    EventConfig
	Mission  MissionConfig
	Align    AlignConfig
	Homing   HomingConfig
}

// RotationConfig holds the optional turn scaling factors. Zero or negative scale factors fall
// back to Scaling.
type RotationConfig struct {
	Scaling       float64 `json:"rotation_scaling"`
	Scaling90     float64 `json:"rotation_scaling_90"`
	Scaling180    float64 `json:"rotation_scaling_180"`
	FallbackPulse int     `json:"turn_fallback_pulse"`
}

// EventConfig holds optional opening detector parameters.
type EventConfig struct {
	// RightOpenRearmMM is the re-arm threshold. Unset means right_open_mm.
	RightOpenRearmMM *float64 `json:"right_open_rearm_mm"`
}

// MissionConfig holds optional parameters of the route modes.
type MissionConfig struct {
	BuzzerStartS                 float64  `json:"buzzer_start_s"`
	BuzzerEndS                   float64  `json:"buzzer_end_s"`
	ExtraForwardAfterOpenRepeatS *float64 `json:"extra_forward_after_open_repeat_s"`
	DefinedRouteFrontTargetMM    float64  `json:"defined_route_front_target_mm"`
	DefinedRouteFrontToleranceMM float64  `json:"defined_route_front_tolerance_mm"`
}

// AlignConfig tunes channel alignment.
type AlignConfig struct {
	MaxIterations     int     `json:"align_max_iters"`
	OrientTolDeg      float64 `json:"align_orient_tol_deg"`
	LateralTolMM      float64 `json:"align_lateral_tol_mm"`
	FrontBandTolMM    float64 `json:"align_front_band_tol_mm"`
	MaxRangeMM        float64 `json:"align_max_range_mm"`
	FrontHalfWidthDeg float64 `json:"align_front_half_width_deg"`
	SideHalfWidthDeg  float64 `json:"align_side_half_width_deg"`
	FrontBandMM       float64 `json:"align_front_band_mm"`
	MinFrontPoints    int     `json:"align_min_front_points"`
	RotateStepMaxDeg  float64 `json:"align_rotate_step_max_deg"`
	RotateMinS        float64 `json:"align_rotate_min_s"`
	RotateMaxS        float64 `json:"align_rotate_max_s"`
	StrafePulseMin    int     `json:"align_strafe_pulse_min"`
	StrafePulseMax    int     `json:"align_strafe_pulse_max"`
	StrafeGain        float64 `json:"align_strafe_gain"`
	StrafeMMs         float64 `json:"align_strafe_mm_s"`
	StrafeMinS        float64 `json:"align_strafe_min_s"`
	StrafeMaxS        float64 `json:"align_strafe_max_s"`
	SettleS           float64 `json:"align_settle_s"`
	StallLimit        int     `json:"align_stall_limit"`
	OrientMarginDeg   float64 `json:"align_orient_improve_deg"`
	LateralMarginMM   float64 `json:"align_lateral_improve_mm"`
	ValidStreak       int     `json:"align_valid_streak"`
}

// HomingConfig tunes front distance homing.
type HomingConfig struct {
	CoarseIterations int     `json:"homing_coarse_iters"`
	FineIterations   int     `json:"homing_fine_iters"`
	FineSliceS       float64 `json:"homing_fine_slice_s"`
	FineSpeedRatio   float64 `json:"homing_fine_speed_ratio"`
	MinDriveS        float64 `json:"homing_min_drive_s"`
	MaxDriveS        float64 `json:"homing_max_drive_s"`
	SettleS          float64 `json:"homing_settle_s"`
	MaxDropouts      int     `json:"homing_max_dropouts"`
}

// DefaultAlignConfig returns the alignment defaults.
func DefaultAlignConfig() AlignConfig {
	return AlignConfig{
		MaxIterations:     12,
		OrientTolDeg:      1.5,
		LateralTolMM:      12,
		FrontBandTolMM:    20,
		MaxRangeMM:        2500,
		FrontHalfWidthDeg: 25,
		SideHalfWidthDeg:  35,
		FrontBandMM:       40,
		MinFrontPoints:    6,
		RotateStepMaxDeg:  8,
		RotateMinS:        0.03,
		RotateMaxS:        0.4,
		StrafePulseMin:    4,
		StrafePulseMax:    10,
		StrafeGain:        0.15,
		StrafeMMs:         120,
		StrafeMinS:        0.05,
		StrafeMaxS:        0.5,
		SettleS:           0.15,
		StallLimit:        3,
		OrientMarginDeg:   0.3,
		LateralMarginMM:   3,
		ValidStreak:       2,
	}
}

// DefaultHomingConfig returns the homing defaults.
func DefaultHomingConfig() HomingConfig {
	return HomingConfig{
		CoarseIterations: 8,
		FineIterations:   10,
		FineSliceS:       0.08,
		FineSpeedRatio:   0.5,
		MinDriveS:        0.05,
		MaxDriveS:        2.0,
		SettleS:          0.15,
		MaxDropouts:      20,
	}
}

// RequiredKeys lists every key NewConfig refuses to default.
var RequiredKeys = []string{
	"left_target_mm", "front_stop_mm", "forward_mm_s", "left_mode", "front_mode",
	"Kp_err", "Kp_orient", "MAX_YAW", "MIN_YAW", "TOL_MM", "GUARD_EXTRA", "MIN_FWD",
	"MAX_SLOWERR", "Kp_center", "calib_file", "yaw_fast", "yaw_slow", "ratio_fast",
	"brake_opp", "brake_time", "right_open_mm", "extra_forward_after_open_s",
	"sidekick_initial_forward_s", "side_dead_end_mm", "side_rejoin_front_mm",
	"side_final_forward_s", "right_open_require_rearm",
}

// attrReader accumulates the first coercion failure so required keys can be read in sequence.
type attrReader struct {
	path  string
	attrs config.AttributeMap
	err   error
}

func (r *attrReader) has(key string) bool {
	if r.err != nil {
		return false
	}
	if !r.attrs.Has(key) || r.attrs[key] == nil {
		r.err = config.NewFieldRequiredError(r.path, key)
		return false
	}
	return true
}

func (r *attrReader) float(key string) float64 {
	if !r.has(key) {
		return 0
	}
	v, err := r.attrs.Float64(key)
	if err != nil {
		r.err = config.NewFieldInvalidError(r.path, key, err)
	}
	return v
}

func (r *attrReader) int(key string) int {
	if !r.has(key) {
		return 0
	}
	v, err := r.attrs.Int(key)
	if err != nil {
		r.err = config.NewFieldInvalidError(r.path, key, err)
	}
	return v
}

func (r *attrReader) bool(key string) bool {
	if !r.has(key) {
		return false
	}
	v, err := r.attrs.Bool(key)
	if err != nil {
		r.err = config.NewFieldInvalidError(r.path, key, err)
	}
	return v
}

func (r *attrReader) string(key string) string {
	if !r.has(key) {
		return ""
	}
	v, err := r.attrs.String(key)
	if err != nil {
		r.err = config.NewFieldInvalidError(r.path, key, err)
	}
	return v
}

func (r *attrReader) mode(key string) rangefinder.Mode {
	s := r.string(key)
	if r.err != nil {
		return rangefinder.ModeMedian
	}
	m, err := rangefinder.ParseMode(s)
	if err != nil {
		r.err = config.NewFieldInvalidError(r.path, key, err)
	}
	return m
}

// NewConfig validates attrs. A missing required key fails with a *config.ConfigError naming it.
// path is only used in error messages.
func NewConfig(path string, attrs config.AttributeMap) (*Config, error) {
	r := &attrReader{path: path, attrs: attrs}
	cfg := &Config{
		LeftTargetMM: r.float("left_target_mm"),
		FrontStopMM:  r.float("front_stop_mm"),
		ForwardMMs:   r.float("forward_mm_s"),
		LeftMode:     r.mode("left_mode"),
		FrontMode:    r.mode("front_mode"),

		KpErr:        r.float("Kp_err"),
		KpOrient:     r.float("Kp_orient"),
		MaxYaw:       r.int("MAX_YAW"),
		MinYaw:       r.int("MIN_YAW"),
		TolMM:        r.float("TOL_MM"),
		GuardExtraMM: r.float("GUARD_EXTRA"),
		MinFwd:       r.float("MIN_FWD"),
		MaxSlowErrMM: r.float("MAX_SLOWERR"),
		KpCenter:     r.float("Kp_center"),

		CalibFile:  r.string("calib_file"),
		YawFast:    r.float("yaw_fast"),
		YawSlow:    r.float("yaw_slow"),
		RatioFast:  r.float("ratio_fast"),
		BrakeOpp:   r.float("brake_opp"),
		BrakeTimeS: r.float("brake_time"),

		RightOpenMM:             r.float("right_open_mm"),
		ExtraForwardAfterOpenS:  r.float("extra_forward_after_open_s"),
		SidekickInitialForwardS: r.float("sidekick_initial_forward_s"),
		SideDeadEndMM:           r.float("side_dead_end_mm"),
		SideRejoinFrontMM:       r.float("side_rejoin_front_mm"),
		SideFinalForwardS:       r.float("side_final_forward_s"),
		RightOpenRequireRearm:   r.bool("right_open_require_rearm"),

		Rotation: RotationConfig{Scaling: 1, FallbackPulse: 12},
		Mission: MissionConfig{
			BuzzerStartS:                 3,
			BuzzerEndS:                   3,
			DefinedRouteFrontTargetMM:    1000,
			DefinedRouteFrontToleranceMM: 20,
		},
		Align:  DefaultAlignConfig(),
		Homing: DefaultHomingConfig(),
	}
	if r.err != nil {
		return nil, r.err
	}

	for _, group := range []interface{}{&cfg.Rotation, &cfg.Event, &cfg.Mission, &cfg.Align, &cfg.Homing} {
		if err := attrs.Decode(group); err != nil {
			return nil, config.NewFieldInvalidError(path, "optional parameters", err)
		}
	}
	if cfg.Rotation.Scaling <= 0 {
		cfg.Rotation.Scaling = 1
	}
	if cfg.Rotation.Scaling90 <= 0 {
		cfg.Rotation.Scaling90 = cfg.Rotation.Scaling
	}
	if cfg.Rotation.Scaling180 <= 0 {
		cfg.Rotation.Scaling180 = cfg.Rotation.Scaling
	}

	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (cfg *Config) Validate(path string) error {
	switch {
	case cfg.ForwardMMs <= 0:
		return config.NewFieldInvalidError(path, "forward_mm_s", errors.New("must be positive"))
	case cfg.MinYaw < 0:
		return config.NewFieldInvalidError(path, "MIN_YAW", errors.New("must not be negative"))
	case cfg.MaxYaw < cfg.MinYaw:
		return config.NewFieldInvalidError(path, "MAX_YAW", errors.Errorf("must be at least MIN_YAW (%d)", cfg.MinYaw))
	case cfg.MaxSlowErrMM <= 0:
		return config.NewFieldInvalidError(path, "MAX_SLOWERR", errors.New("must be positive"))
	case cfg.MinFwd < 0 || cfg.MinFwd > 1:
		return config.NewFieldInvalidError(path, "MIN_FWD", errors.New("must be within [0, 1]"))
	case cfg.RatioFast <= 0 || cfg.RatioFast > 1:
		return config.NewFieldInvalidError(path, "ratio_fast", errors.New("must be within (0, 1]"))
	case cfg.TolMM < 0:
		return config.NewFieldInvalidError(path, "TOL_MM", errors.New("must not be negative"))
	case cfg.BrakeTimeS < 0:
		return config.NewFieldInvalidError(path, "brake_time", errors.New("must not be negative"))
	case cfg.Align.MaxIterations <= 0:
		return config.NewFieldInvalidError(path, "align_max_iters", errors.New("must be positive"))
	case cfg.Align.ValidStreak <= 0:
		return config.NewFieldInvalidError(path, "align_valid_streak", errors.New("must be positive"))
	case cfg.Align.StrafePulseMax < cfg.Align.StrafePulseMin:
		return config.NewFieldInvalidError(path, "align_strafe_pulse_max", errors.New("must be at least align_strafe_pulse_min"))
	}
	return nil
}

// RearmBelowMM returns the configured re-arm threshold, defaulting to RightOpenMM.
func (cfg *Config) RearmBelowMM() float64 {
	if cfg.Event.RightOpenRearmMM != nil {
		return *cfg.Event.RightOpenRearmMM
	}
	return cfg.RightOpenMM
}

// ExtraForwardAfterOpenRepeatS returns the forward time used after a repeated opening.
func (cfg *Config) ExtraForwardAfterOpenRepeatS() float64 {
	if cfg.Mission.ExtraForwardAfterOpenRepeatS != nil {
		return *cfg.Mission.ExtraForwardAfterOpenRepeatS
	}
	return cfg.ExtraForwardAfterOpenS
}
