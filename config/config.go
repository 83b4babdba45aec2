// Package config loads voxelizer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Voxelizer selects a raycasting backend and its tunables.
type Voxelizer struct {
	// Backend is one of cpu, opencl, cuda, best_available.
	Backend string `yaml:"backend"`
	// Workers bounds the CPU worker pool; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// StepSizeMultiplier is the per-ray step in cells, in (0, 1].
	StepSizeMultiplier float64 `yaml:"step_size_multiplier"`
	Filter             Filter  `yaml:"filter"`
}

// Filter is the cross-camera agreement policy.
type Filter struct {
	PercentSeenFree        float32 `yaml:"percent_seen_free"`
	OutlierPointsThreshold int32   `yaml:"outlier_points_threshold"`
	NumCamerasSeenFree     int32   `yaml:"num_cameras_seen_free"`
}

// Default is a conservative configuration on the best available backend:
// half-cell steps, unanimous free observations, single-camera agreement.
func Default() *Voxelizer {
	return &Voxelizer{
		Backend:            "best_available",
		StepSizeMultiplier: 0.5,
		Filter: Filter{
			PercentSeenFree:        1.0,
			OutlierPointsThreshold: 0,
			NumCamerasSeenFree:     1,
		},
	}
}

// Load reads a configuration, filling unset fields from Default.
func Load(r io.Reader) (*Voxelizer, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a configuration file.
func LoadFile(path string) (*Voxelizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (c *Voxelizer) Validate() error {
	switch c.Backend {
	case "cpu", "opencl", "cuda", "best_available":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.StepSizeMultiplier <= 0 || c.StepSizeMultiplier > 1 {
		return errors.New("step_size_multiplier is not in (0, 1]")
	}
	if c.Filter.PercentSeenFree < 0 || c.Filter.PercentSeenFree > 1 {
		return errors.New("percent_seen_free is not in [0, 1]")
	}
	if c.Filter.OutlierPointsThreshold < 0 {
		return errors.New("outlier_points_threshold must not be negative")
	}
	if c.Filter.NumCamerasSeenFree < 1 {
		return errors.New("num_cameras_seen_free must be at least 1")
	}
	return nil
}
