package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"opensonar/internal/coord"
	"opensonar/internal/surveylog"
)

// EnvPath names the environment variable (usually set through .env) that
// supplies the default config path.
const EnvPath = "OPENSONAR_CONFIG"

type Config struct {
	// Metadata is the survey configuration file (.csv, header rows only).
	// A relative path is resolved against the config file's directory.
	Metadata  string        `yaml:"metadata"`
	OutputDir string        `yaml:"output_dir"`
	Interval  time.Duration `yaml:"interval"`

	Recalibrate RecalibrateConfig `yaml:"recalibrate"`

	// Device paths and bauds default to the metadata Com rows.
	GNSS  SerialConfig `yaml:"gnss"`
	Sonar SerialConfig `yaml:"sonar"`
	SVP   SerialConfig `yaml:"svp"`

	Indicator IndicatorConfig `yaml:"indicator"`
	Forward   ForwardConfig   `yaml:"forward"`
	Sim       SimConfig       `yaml:"sim"`
}

type RecalibrateConfig struct {
	Enable bool `yaml:"enable"`
	Period int  `yaml:"period"`
}

type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type IndicatorConfig struct {
	Enable bool `yaml:"enable"`
	// GPIO is BCM numbering.
	GPIO  int           `yaml:"gpio"`
	Pulse time.Duration `yaml:"pulse"`
}

// ForwardConfig sends every simple fix as a UDP datagram.
type ForwardConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

// SimConfig replaces all three devices with simulators.
type SimConfig struct {
	Enable bool `yaml:"enable"`
	// CenterLat and CenterLon accept decimal degrees or DMS (-45:52:30.0).
	CenterLat string `yaml:"center_lat"`
	CenterLon string `yaml:"center_lon"`

	RadiusM        float64       `yaml:"radius_m"`
	Period         time.Duration `yaml:"period"`
	HeightM        float64       `yaml:"height_m"`
	GeoidSepM      float64       `yaml:"geoid_sep_m"`
	DepthM         float64       `yaml:"depth_m"`
	TrueSoundSpeed float64       `yaml:"true_sound_speed"`
	SVPSoundSpeed  float64       `yaml:"svp_sound_speed"`

	CenterLatDeg float64 `yaml:"-"`
	CenterLonDeg float64 `yaml:"-"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if cfg.Metadata != "" && !filepath.IsAbs(cfg.Metadata) {
		cfg.Metadata = filepath.Join(filepath.Dir(path), cfg.Metadata)
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and reports the first invalid
// setting.
func DefaultAndValidate(cfg *Config) error {
	if cfg.Metadata == "" {
		return fmt.Errorf("metadata is required")
	}
	if err := surveylog.CheckExtension(cfg.Metadata); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Interval == 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must be > 0")
	}

	if cfg.Recalibrate.Period == 0 {
		cfg.Recalibrate.Period = 100
	}
	if cfg.Recalibrate.Period < 0 {
		return fmt.Errorf("recalibrate.period must be > 0")
	}

	if err := serialDefaults("gnss", &cfg.GNSS, 1*time.Second, 10); err != nil {
		return err
	}
	if err := serialDefaults("sonar", &cfg.Sonar, 500*time.Millisecond, 8); err != nil {
		return err
	}
	if err := serialDefaults("svp", &cfg.SVP, 2500*time.Millisecond, 1); err != nil {
		return err
	}

	if cfg.Indicator.Enable && cfg.Indicator.GPIO <= 0 {
		return fmt.Errorf("indicator.gpio must be > 0 when indicator.enable is true")
	}
	if cfg.Indicator.Pulse <= 0 {
		cfg.Indicator.Pulse = 100 * time.Millisecond
	}

	if cfg.Forward.Enable && cfg.Forward.Dest == "" {
		return fmt.Errorf("forward.dest is required when forward.enable is true")
	}

	return simDefaults(&cfg.Sim)
}

func serialDefaults(name string, c *SerialConfig, timeout time.Duration, attempts int) error {
	if c.Baud < 0 {
		return fmt.Errorf("%s.baud must be > 0", name)
	}
	if c.Timeout == 0 {
		c.Timeout = timeout
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s.timeout must be > 0", name)
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = attempts
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be > 0", name)
	}
	return nil
}

// Simulator defaults (safe even if disabled).
func simDefaults(s *SimConfig) error {
	if s.RadiusM <= 0 {
		s.RadiusM = 200
	}
	if s.Period <= 0 {
		s.Period = 10 * time.Minute
	}
	if s.HeightM == 0 {
		s.HeightM = 12
	}
	if s.DepthM <= 0 {
		s.DepthM = 12
	}
	if s.TrueSoundSpeed <= 0 {
		s.TrueSoundSpeed = 1480
	}
	if s.SVPSoundSpeed <= 0 {
		s.SVPSoundSpeed = s.TrueSoundSpeed
	}
	if !s.Enable {
		return nil
	}
	if s.CenterLat == "" || s.CenterLon == "" {
		return fmt.Errorf("sim.center_lat and sim.center_lon are required when sim.enable is true")
	}
	var err error
	if s.CenterLatDeg, err = coord.ParseAngle(s.CenterLat); err != nil {
		return fmt.Errorf("sim.center_lat: %w", err)
	}
	if s.CenterLonDeg, err = coord.ParseAngle(s.CenterLon); err != nil {
		return fmt.Errorf("sim.center_lon: %w", err)
	}
	if s.CenterLatDeg < -90 || s.CenterLatDeg > 90 {
		return fmt.Errorf("sim.center_lat must be within [-90, 90]")
	}
	if s.CenterLonDeg < -180 || s.CenterLonDeg > 180 {
		return fmt.Errorf("sim.center_lon must be within [-180, 180]")
	}
	return nil
}
