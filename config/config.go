// Package config defines the structures to configure the localization task and reads them
// from JSON files.
package config

import (
	"fmt"
	"math"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"github.com/turtlelab/localize/logging"
)

// Config is the full configuration of a localization run.
type Config struct {
	ConfigFilePath string `json:"-"`

	Log          LogConfig          `json:"log"`
	Robot        RobotConfig        `json:"robot"`
	Motion       MotionConfig       `json:"motion"`
	Scan         ScanConfig         `json:"scan"`
	Episode      EpisodeConfig      `json:"episode"`
	Localization LocalizationConfig `json:"localization"`
	Readiness    ReadinessConfig    `json:"readiness"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     logging.Level `json:"level"`
	File      string        `json:"file,omitempty"`
	MaxSizeMB int           `json:"max_size_mb,omitempty"`
}

// FrameMount places a sensor frame relative to its parent.
type FrameMount struct {
	Name   string  `json:"name"`
	Parent string  `json:"parent"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Yaw    float64 `json:"yaw"`
}

// RobotConfig describes the robot and where its sensors are mounted.
type RobotConfig struct {
	ModelName string       `json:"model_name"`
	OdomFrame string       `json:"odom_frame"`
	BaseFrame string       `json:"base_frame"`
	Mounts    []FrameMount `json:"mounts"`
}

// MotionConfig configures the velocity controller and the action speeds.
type MotionConfig struct {
	LinearForwardSpeed float64  `json:"linear_forward_speed"`
	LinearTurnSpeed    float64  `json:"linear_turn_speed"`
	AngularSpeed       float64  `json:"angular_speed"`
	Tolerance          float64  `json:"tolerance"`
	PollRate           float64  `json:"poll_rate_hz"`
	Timeout            Duration `json:"timeout"`
	Settle             Duration `json:"settle"`
}

// MaxLinearSpeed is the fastest linear speed any action commands.
func (m MotionConfig) MaxLinearSpeed() float64 {
	return math.Max(math.Abs(m.LinearForwardSpeed), math.Abs(m.LinearTurnSpeed))
}

// ScanConfig configures how laser scans are transformed and sectored.
type ScanConfig struct {
	SensorFrame   string   `json:"sensor_frame"`
	GlobalFrame   string   `json:"global_frame"`
	SectorAngle   float64  `json:"sector_angle_deg"`
	FrontSectors  []int    `json:"front_sectors"`
	SafetyMargin  float64  `json:"safety_margin"`
	Horizon       Duration `json:"horizon"`
	TransformWait Duration `json:"transform_wait"`
}

// NumSectors is the number of sectors spanning the full circle.
func (s ScanConfig) NumSectors() int {
	return int(math.Round(360 / s.SectorAngle))
}

// EpisodeConfig configures termination and reward.
type EpisodeConfig struct {
	MaxSteps          int     `json:"max_steps"`
	DistanceThreshold float64 `json:"distance_threshold"`
	EntropyThreshold  float64 `json:"entropy_threshold"`
	CollisionPenalty  float64 `json:"collision_penalty"`
}

// LocalizationConfig configures the re-seeding of the upstream estimator.
type LocalizationConfig struct {
	ReseedOnReset bool `json:"reseed_on_reset"`
	// InitialCovariance is the (xx, yy, yaw) variance published with the initial pose.
	InitialCovariance [3]float64 `json:"initial_covariance"`
	// Reconfigure holds the estimator parameters set before global localization.
	Reconfigure map[string]interface{} `json:"reconfigure"`
}

// EstimatorParams are the estimator parameters that may be reconfigured.
type EstimatorParams struct {
	MaxParticles     int      `mapstructure:"max_particles"`
	MinParticles     int      `mapstructure:"min_particles"`
	UpdateMinD       *float64 `mapstructure:"update_min_d"`
	UpdateMinA       *float64 `mapstructure:"update_min_a"`
	ResampleInterval int      `mapstructure:"resample_interval"`
}

// EstimatorParams decodes Reconfigure, rejecting unknown parameters.
func (l LocalizationConfig) EstimatorParams() (EstimatorParams, error) {
	var params EstimatorParams
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &params,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return params, err
	}
	if err := decoder.Decode(l.Reconfigure); err != nil {
		return params, err
	}
	return params, nil
}

// AsMap returns the set parameters keyed by estimator parameter name.
func (p EstimatorParams) AsMap() map[string]interface{} {
	out := map[string]interface{}{}
	if p.MaxParticles != 0 {
		out["max_particles"] = p.MaxParticles
	}
	if p.MinParticles != 0 {
		out["min_particles"] = p.MinParticles
	}
	if p.UpdateMinD != nil {
		out["update_min_d"] = *p.UpdateMinD
	}
	if p.UpdateMinA != nil {
		out["update_min_a"] = *p.UpdateMinA
	}
	if p.ResampleInterval != 0 {
		out["resample_interval"] = p.ResampleInterval
	}
	return out
}

// CheckConfig configures one readiness check. Omitted fields keep the check's default.
type CheckConfig struct {
	Disabled *bool    `json:"disabled,omitempty"`
	Required *bool    `json:"required,omitempty"`
	Timeout  Duration `json:"timeout"`
}

// ReadinessConfig configures the startup checks by channel name, e.g. "laser" or "cmd_vel".
type ReadinessConfig struct {
	Concurrent bool                   `json:"concurrent"`
	Checks     map[string]CheckConfig `json:"checks"`
}

// Default returns the configuration of the turtlebot3 localization task.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Ensure fills in defaults and validates every section.
func (c *Config) Ensure() error {
	c.applyDefaults()
	if err := c.Log.Validate("log"); err != nil {
		return err
	}
	if err := c.Robot.Validate("robot"); err != nil {
		return err
	}
	if err := c.Motion.Validate("motion"); err != nil {
		return err
	}
	if err := c.Scan.Validate("scan"); err != nil {
		return err
	}
	if err := c.Episode.Validate("episode"); err != nil {
		return err
	}
	if err := c.Localization.Validate("localization"); err != nil {
		return err
	}
	return c.Readiness.Validate("readiness")
}

func (c *Config) applyDefaults() {
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}

	r := &c.Robot
	r.ModelName = lo.CoalesceOrEmpty(r.ModelName, "turtlebot3")
	r.OdomFrame = lo.CoalesceOrEmpty(r.OdomFrame, "odom")
	r.BaseFrame = lo.CoalesceOrEmpty(r.BaseFrame, "base_footprint")
	if len(r.Mounts) == 0 {
		r.Mounts = []FrameMount{
			{Name: "base_link", Parent: r.BaseFrame, Z: 0.010},
			{Name: "base_scan", Parent: "base_link", X: -0.032, Z: 0.172},
			{Name: "imu_link", Parent: "base_link", X: -0.032, Z: 0.068},
		}
	}

	m := &c.Motion
	setDefault(&m.LinearForwardSpeed, 0.5)
	setDefault(&m.LinearTurnSpeed, 0.05)
	setDefault(&m.AngularSpeed, 0.3)
	setDefault(&m.Tolerance, 0.05)
	setDefault(&m.PollRate, 30)
	setDefault(&m.Timeout, Duration(3e9))
	setDefault(&m.Settle, Duration(200e6))

	s := &c.Scan
	s.SensorFrame = lo.CoalesceOrEmpty(s.SensorFrame, "base_scan")
	s.GlobalFrame = lo.CoalesceOrEmpty(s.GlobalFrame, "map")
	setDefault(&s.SectorAngle, 30)
	if s.FrontSectors == nil && s.SectorAngle > 0 {
		s.FrontSectors = []int{0, s.NumSectors() - 1}
	}
	setDefault(&s.SafetyMargin, 0.2)
	setDefault(&s.Horizon, Duration(1e9))
	setDefault(&s.TransformWait, Duration(100e6))

	e := &c.Episode
	setDefault(&e.MaxSteps, 100)
	setDefault(&e.DistanceThreshold, 0.1)
	setDefault(&e.EntropyThreshold, -1.5)
	setDefault(&e.CollisionPenalty, -100)

	l := &c.Localization
	if l.InitialCovariance == [3]float64{} {
		l.InitialCovariance = [3]float64{0.5 * 0.5, 0.5 * 0.5, (math.Pi / 12) * (math.Pi / 12)}
	}
	if l.Reconfigure == nil {
		l.Reconfigure = map[string]interface{}{"max_particles": 20000}
	}

	if c.Readiness.Checks == nil {
		c.Readiness.Checks = map[string]CheckConfig{}
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate ensures all parts of the config are valid.
func (l *LogConfig) Validate(path string) error {
	if l.MaxSizeMB < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_size_mb cannot be negative"))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (r *RobotConfig) Validate(path string) error {
	seen := map[string]bool{r.OdomFrame: true, r.BaseFrame: true}
	for idx, mount := range r.Mounts {
		mountPath := fmt.Sprintf("%s.mounts.%d", path, idx)
		if mount.Name == "" {
			return utils.NewConfigValidationFieldRequiredError(mountPath, "name")
		}
		if mount.Parent == "" {
			return utils.NewConfigValidationFieldRequiredError(mountPath, "parent")
		}
		if seen[mount.Name] {
			return utils.NewConfigValidationError(mountPath, errors.Errorf("frame %q defined twice", mount.Name))
		}
		seen[mount.Name] = true
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (m *MotionConfig) Validate(path string) error {
	if m.Tolerance <= 0 {
		return utils.NewConfigValidationError(path, errors.New("tolerance must be positive"))
	}
	if m.PollRate <= 0 {
		return utils.NewConfigValidationError(path, errors.New("poll_rate_hz must be positive"))
	}
	if m.Timeout <= 0 {
		return utils.NewConfigValidationError(path, errors.New("timeout must be positive"))
	}
	if m.Settle < 0 || m.Settle >= m.Timeout {
		return utils.NewConfigValidationError(path, errors.New("settle must be within [0, timeout)"))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (s *ScanConfig) Validate(path string) error {
	if s.SectorAngle <= 0 || s.SectorAngle > 360 {
		return utils.NewConfigValidationError(path, errors.New("sector_angle_deg must be in (0, 360]"))
	}
	if n := 360 / s.SectorAngle; math.Abs(n-math.Round(n)) > 1e-9 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("sector_angle_deg %v does not evenly divide 360", s.SectorAngle))
	}
	numSectors := s.NumSectors()
	for _, idx := range s.FrontSectors {
		if idx < 0 || idx >= numSectors {
			return utils.NewConfigValidationError(path,
				errors.Errorf("front sector %d out of range [0, %d)", idx, numSectors))
		}
	}
	if s.SafetyMargin < 0 {
		return utils.NewConfigValidationError(path, errors.New("safety_margin cannot be negative"))
	}
	if s.SensorFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "sensor_frame")
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (e *EpisodeConfig) Validate(path string) error {
	if e.MaxSteps < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_steps cannot be negative"))
	}
	if e.DistanceThreshold <= 0 {
		return utils.NewConfigValidationError(path, errors.New("distance_threshold must be positive"))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (l *LocalizationConfig) Validate(path string) error {
	for i, v := range l.InitialCovariance {
		if v < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("initial_covariance[%d] cannot be negative", i))
		}
	}
	if _, err := l.EstimatorParams(); err != nil {
		return utils.NewConfigValidationError(path+".reconfigure", err)
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (r *ReadinessConfig) Validate(path string) error {
	for name, check := range r.Checks {
		if check.Timeout < 0 {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.checks.%s", path, name),
				errors.New("timeout cannot be negative"))
		}
		if lo.FromPtr(check.Disabled) && lo.FromPtr(check.Required) {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.checks.%s", path, name),
				errors.New("a check cannot be both disabled and required"))
		}
	}
	return nil
}
