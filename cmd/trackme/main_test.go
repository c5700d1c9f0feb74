package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/config"
	"github.com/ericbrian/track-me-sub001/internal/sampling"
)

func TestFlagDefaults(t *testing.T) {
	if *listen != ":8080" {
		t.Errorf("expected listen default :8080, got %q", *listen)
	}
	if *serialSpec != "9600/8N1" {
		t.Errorf("expected serial default 9600/8N1, got %q", *serialSpec)
	}
	if *replayPace != time.Second {
		t.Errorf("expected replay-pace default 1s, got %v", *replayPace)
	}
	if *configPath != config.DefaultConfigPath {
		t.Errorf("expected config default %q, got %q", config.DefaultConfigPath, *configPath)
	}
}

func TestLoadTuning(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.json")

	cfg, err := loadTuning(missing, true)
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if got := cfg.GetPreset(); got != sampling.PresetBalanced {
		t.Errorf("expected balanced preset, got %q", got)
	}

	if _, err := loadTuning(missing, false); err == nil {
		t.Error("expected error for a required missing file")
	}

	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(`{"preset":"efficient","units":"kph"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadTuning(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GetPreset() != sampling.PresetEfficient || cfg.GetUnits() != "kph" {
		t.Errorf("unexpected config: preset=%q units=%q", cfg.GetPreset(), cfg.GetUnits())
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	tests := []struct {
		name       string
		preset     string
		unit       string
		wantPreset string
		wantUnits  string
	}{
		{"no overrides", "", "", sampling.PresetBalanced, "mps"},
		{"preset only", sampling.PresetHighPrecision, "", sampling.PresetHighPrecision, "mps"},
		{"units only", "", "mph", sampling.PresetBalanced, "mph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.TuningConfig{}
			applyFlagOverrides(cfg, tt.preset, tt.unit)
			if got := cfg.GetPreset(); got != tt.wantPreset {
				t.Errorf("preset = %q, want %q", got, tt.wantPreset)
			}
			if got := cfg.GetUnits(); got != tt.wantUnits {
				t.Errorf("units = %q, want %q", got, tt.wantUnits)
			}
		})
	}
}

func TestOpenReceiverDisabled(t *testing.T) {
	prev := *disableGPS
	*disableGPS = true
	t.Cleanup(func() { *disableGPS = prev })

	r, err := openReceiver()
	if err != nil {
		t.Fatalf("openReceiver: %v", err)
	}
	defer r.Close()
	if err := r.SetInterval(5 * time.Second); err != nil {
		t.Errorf("disabled receiver SetInterval: %v", err)
	}
}

func TestOpenReceiverReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.jsonl")
	if err := os.WriteFile(path, []byte(`{"lat":1,"lon":2,"hacc":5,"time":"2026-01-01T00:00:00Z"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	prevDev, prevFixtures, prevPace := *devMode, *fixtures, *replayPace
	*devMode, *fixtures, *replayPace = true, path, 0
	t.Cleanup(func() { *devMode, *fixtures, *replayPace = prevDev, prevFixtures, prevPace })

	r, err := openReceiver()
	if err != nil {
		t.Fatalf("openReceiver: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	*fixtures = filepath.Join(t.TempDir(), "absent.jsonl")
	if _, err := openReceiver(); err == nil {
		t.Error("expected error for missing fixtures")
	}
}
