package voxelize

import (
	"testing"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/config"
)

func TestNewVoxelizer_AcceleratorsUnavailable(t *testing.T) {
	// The pure-Go build has no accelerator bindings.
	if _, err := NewVoxelizer(OpenCL, nil, nil); err == nil {
		t.Error("Expected OpenCL voxelizer construction to fail")
	}
	if _, err := NewVoxelizer(CUDA, nil, nil); err == nil {
		t.Error("Expected CUDA voxelizer construction to fail")
	}
}

func TestNewBestAvailableVoxelizer(t *testing.T) {
	var tried []string
	logf := func(format string, args ...interface{}) {
		tried = append(tried, format)
	}
	v, err := NewBestAvailableVoxelizer(nil, logf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*CPUVoxelizer); !ok {
		t.Errorf("Expected fallback to the CPU voxelizer, got: %T", v)
	}
	if len(tried) == 0 {
		t.Error("Expected fallback attempts to be logged")
	}
}

func TestAvailableBackends(t *testing.T) {
	backends := AvailableBackends()
	if len(backends) == 0 {
		t.Fatal("Expected at least one backend")
	}
	last := backends[len(backends)-1]
	if last.Option != CPU {
		t.Errorf("Expected CPU to be the last-preference backend, got: %v", last.Option)
	}
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.Backend = "cpu"
	c.Workers = 3
	c.Filter.NumCamerasSeenFree = 2

	v, options, err := FromConfig(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	cpu, ok := v.(*CPUVoxelizer)
	if !ok {
		t.Fatalf("Expected a CPU voxelizer, got: %T", v)
	}
	if cpu.workers != 3 {
		t.Errorf("Expected 3 workers, got: %d", cpu.workers)
	}
	if options.NumCamerasSeenFree != 2 || options.PercentSeenFree != 1.0 {
		t.Errorf("Expected filter options from config, got: %+v", options)
	}

	c.Backend = "nonsense"
	if _, _, err := FromConfig(c, nil); err == nil {
		t.Error("Expected unknown backend to be rejected")
	}
}
