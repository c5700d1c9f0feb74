// Package config loads the sampling tuning file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/sampling"
	"github.com/ericbrian/track-me-sub001/internal/units"
)

// DefaultConfigPath is the checked-in tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig selects a sampling preset and optionally overrides any of
// its thresholds. Every field is optional; the Get* methods supply the
// default for a field that is absent. The schema matches GET /api/config.
type TuningConfig struct {
	Preset *string `json:"preset,omitempty"`

	MaxAcceptableAccuracy *float64 `json:"max_acceptable_accuracy,omitempty"`
	MinTimeInterval       *string  `json:"min_time_interval,omitempty"` // duration string like "5s"
	MinDistanceInterval   *float64 `json:"min_distance_interval,omitempty"`
	MinSamplingInterval   *string  `json:"min_sampling_interval,omitempty"`
	MaxSamplingInterval   *string  `json:"max_sampling_interval,omitempty"`
	ProcessNoise          *float64 `json:"process_noise,omitempty"`

	// Presentation
	Units         *string  `json:"units,omitempty"`
	RegionPadding *float64 `json:"region_padding,omitempty"`
	FetchBatch    *int     `json:"fetch_batch,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// LoadTuningConfig reads a TuningConfig from a .json file of at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromSampling returns a TuningConfig spelling out every threshold of c.
func FromSampling(c sampling.Config) *TuningConfig {
	t := &TuningConfig{
		MaxAcceptableAccuracy: ptrFloat64(c.MaxAcceptableAccuracy),
		MinTimeInterval:       ptrString(c.MinTimeInterval.String()),
		MinDistanceInterval:   ptrFloat64(c.MinDistanceInterval),
		MinSamplingInterval:   ptrString(c.MinSamplingInterval.String()),
		MaxSamplingInterval:   ptrString(c.MaxSamplingInterval.String()),
		ProcessNoise:          ptrFloat64(c.ProcessNoise),
	}
	if name := sampling.NameOf(c); name != "" {
		t.Preset = ptrString(name)
	}
	return t
}

// Validate checks each field that is set, then the resolved sampling
// config as a whole.
func (c *TuningConfig) Validate() error {
	for name, d := range map[string]*string{
		"min_time_interval":     c.MinTimeInterval,
		"min_sampling_interval": c.MinSamplingInterval,
		"max_sampling_interval": c.MaxSamplingInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.ParseDuration(*d); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q (valid: %s)", *c.Units, units.GetValidUnitsString())
	}
	if c.RegionPadding != nil && *c.RegionPadding < 1 {
		return fmt.Errorf("region_padding must be at least 1, got %f", *c.RegionPadding)
	}
	if c.FetchBatch != nil && *c.FetchBatch < 0 {
		return fmt.Errorf("fetch_batch must be non-negative, got %d", *c.FetchBatch)
	}
	_, err := c.SamplingConfig()
	return err
}

// SamplingConfig resolves the preset and overrides into engine thresholds.
func (c *TuningConfig) SamplingConfig() (sampling.Config, error) {
	base, err := sampling.PresetByName(c.GetPreset())
	if err != nil {
		return sampling.Config{}, err
	}
	if c.MaxAcceptableAccuracy != nil {
		base.MaxAcceptableAccuracy = *c.MaxAcceptableAccuracy
	}
	if c.MinDistanceInterval != nil {
		base.MinDistanceInterval = *c.MinDistanceInterval
	}
	if c.ProcessNoise != nil {
		base.ProcessNoise = *c.ProcessNoise
	}
	base.MinTimeInterval = durationOr(c.MinTimeInterval, base.MinTimeInterval)
	base.MinSamplingInterval = durationOr(c.MinSamplingInterval, base.MinSamplingInterval)
	base.MaxSamplingInterval = durationOr(c.MaxSamplingInterval, base.MaxSamplingInterval)

	if err := base.Validate(); err != nil {
		return sampling.Config{}, err
	}
	return base, nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetPreset returns the preset name or "balanced".
func (c *TuningConfig) GetPreset() string {
	if c.Preset == nil || *c.Preset == "" {
		return sampling.PresetBalanced
	}
	return *c.Preset
}

// GetUnits returns the display units or metres per second.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.MPS
	}
	return *c.Units
}

// GetRegionPadding returns the viewport padding scale or 1.2.
func (c *TuningConfig) GetRegionPadding() float64 {
	if c.RegionPadding == nil {
		return 1.2
	}
	return *c.RegionPadding
}

// GetFetchBatch returns the read batch size for location listings or 500.
func (c *TuningConfig) GetFetchBatch() int {
	if c.FetchBatch == nil {
		return 500
	}
	return *c.FetchBatch
}
