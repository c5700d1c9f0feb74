package sampling

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Config is the set of thresholds that drive acceptance and the adaptive
// sampling interval. It is a plain value: copies are independent and two
// configs with the same thresholds compare equal with ==.
type Config struct {
	// MaxAcceptableAccuracy is the largest horizontal accuracy radius, in
	// metres, that a fix may report and still be accepted.
	MaxAcceptableAccuracy float64 `json:"max_acceptable_accuracy"`

	// A fix closer than MinDistanceInterval metres to the last accepted
	// fix and less than MinTimeInterval after it is redundant.
	MinTimeInterval     time.Duration `json:"min_time_interval"`
	MinDistanceInterval float64       `json:"min_distance_interval"`

	// Bounds on the requested interval between fixes.
	MinSamplingInterval time.Duration `json:"min_sampling_interval"`
	MaxSamplingInterval time.Duration `json:"max_sampling_interval"`

	// ProcessNoise is the expected drift of the true position between
	// fixes, expressed as a standard deviation in metres per second.
	ProcessNoise float64 `json:"process_noise"`
}

// Preset names accepted by PresetByName.
const (
	PresetBalanced      = "balanced"
	PresetHighPrecision = "high-precision"
	PresetEfficient     = "efficient"
	PresetPermissive    = "permissive"
)

// Balanced is the default preset for everyday walking, cycling and driving.
func Balanced() Config {
	return Config{
		MaxAcceptableAccuracy: 65,
		MinTimeInterval:       5 * time.Second,
		MinDistanceInterval:   10,
		MinSamplingInterval:   1 * time.Second,
		MaxSamplingInterval:   30 * time.Second,
		ProcessNoise:          3,
	}
}

// HighPrecision keeps only tight fixes and samples as often as it can.
func HighPrecision() Config {
	return Config{
		MaxAcceptableAccuracy: 20,
		MinTimeInterval:       1 * time.Second,
		MinDistanceInterval:   2,
		MinSamplingInterval:   1 * time.Second,
		MaxSamplingInterval:   10 * time.Second,
		ProcessNoise:          1,
	}
}

// Efficient trades detail for fewer fixes and a mostly idle receiver.
func Efficient() Config {
	return Config{
		MaxAcceptableAccuracy: 100,
		MinTimeInterval:       15 * time.Second,
		MinDistanceInterval:   50,
		MinSamplingInterval:   5 * time.Second,
		MaxSamplingInterval:   2 * time.Minute,
		ProcessNoise:          5,
	}
}

// Permissive accepts nearly everything the receiver reports.
func Permissive() Config {
	return Config{
		MaxAcceptableAccuracy: 10000,
		MinTimeInterval:       0,
		MinDistanceInterval:   0,
		MinSamplingInterval:   1 * time.Second,
		MaxSamplingInterval:   time.Minute,
		ProcessNoise:          3,
	}
}

var presets = map[string]func() Config{
	PresetBalanced:      Balanced,
	PresetHighPrecision: HighPrecision,
	PresetEfficient:     Efficient,
	PresetPermissive:    Permissive,
}

// PresetByName returns the named preset. Matching ignores case and
// surrounding whitespace; an empty name selects Balanced.
func PresetByName(name string) (Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Balanced(), nil
	}
	p, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown sampling preset %q (valid: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p(), nil
}

// PresetNames returns the known preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NameOf returns the preset name matching c, or "" for a custom config.
func NameOf(c Config) string {
	for name, p := range presets {
		if p() == c {
			return name
		}
	}
	return ""
}

// Validate reports the first threshold that cannot drive the engine.
func (c Config) Validate() error {
	if math.IsNaN(c.MaxAcceptableAccuracy) || c.MaxAcceptableAccuracy <= 0 {
		return fmt.Errorf("max_acceptable_accuracy must be positive, got %v", c.MaxAcceptableAccuracy)
	}
	if c.MinTimeInterval < 0 {
		return fmt.Errorf("min_time_interval must be non-negative, got %v", c.MinTimeInterval)
	}
	if math.IsNaN(c.MinDistanceInterval) || math.IsInf(c.MinDistanceInterval, 0) || c.MinDistanceInterval < 0 {
		return fmt.Errorf("min_distance_interval must be a non-negative number, got %v", c.MinDistanceInterval)
	}
	if c.MinSamplingInterval <= 0 {
		return fmt.Errorf("min_sampling_interval must be positive, got %v", c.MinSamplingInterval)
	}
	if c.MaxSamplingInterval < c.MinSamplingInterval {
		return fmt.Errorf("max_sampling_interval (%v) must not be below min_sampling_interval (%v)",
			c.MaxSamplingInterval, c.MinSamplingInterval)
	}
	if math.IsNaN(c.ProcessNoise) || math.IsInf(c.ProcessNoise, 0) || c.ProcessNoise < 0 {
		return fmt.Errorf("process_noise must be a non-negative number, got %v", c.ProcessNoise)
	}
	return nil
}
