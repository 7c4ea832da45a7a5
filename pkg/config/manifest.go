// Package config parses the YAML manifest edgerun's serve and apply
// commands use to pre-boot a fixed set of user workers at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/edgerun/pkg/types"
)

// Manifest is a YAML document describing the user workers to create
// eagerly when edgerun starts, before the admitter begins serving.
//
// apiVersion: edgerun/v1
// kind: WorkerManifest
// services:
//   - servicePath: /srv/hello
//     env:
//       FOO: bar
//     limits:
//       wallClockMs: 60000
type Manifest struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Services   []ServiceEntry `yaml:"services"`
}

// ServiceEntry is one user worker to preboot.
type ServiceEntry struct {
	ServicePath   string            `yaml:"servicePath"`
	Env           map[string]string `yaml:"env,omitempty"`
	ImportMapPath string            `yaml:"importMapPath,omitempty"`
	NoModuleCache bool              `yaml:"noModuleCache,omitempty"`
	Limits        *LimitsOverride   `yaml:"limits,omitempty"`
}

// LimitsOverride overrides a subset of types.DefaultWorkerLimits for one
// service entry. A zero field falls back to the default.
type LimitsOverride struct {
	WallClockMS         uint64 `yaml:"wallClockMs,omitempty"`
	LowMemoryMultiplier uint64 `yaml:"lowMemoryMultiplier,omitempty"`
	MaxCPUBursts        uint64 `yaml:"maxCpuBursts,omitempty"`
	CPUBurstIntervalMS  uint64 `yaml:"cpuBurstIntervalMs,omitempty"`
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parsing manifest: %w", err)
	}

	if m.Kind != "" && m.Kind != "WorkerManifest" {
		return nil, fmt.Errorf("config: unsupported manifest kind %q", m.Kind)
	}

	return &m, nil
}

// WorkerInitOpts builds the types.WorkerInitOpts a ServiceEntry describes,
// applying LimitsOverride on top of types.DefaultWorkerLimits.
func (e ServiceEntry) WorkerInitOpts() types.WorkerInitOpts {
	limits := types.DefaultWorkerLimits()
	if e.Limits != nil {
		if e.Limits.WallClockMS != 0 {
			limits.WallClockMS = e.Limits.WallClockMS
		}
		if e.Limits.LowMemoryMultiplier != 0 {
			limits.LowMemoryMultiplier = e.Limits.LowMemoryMultiplier
		}
		if e.Limits.MaxCPUBursts != 0 {
			limits.MaxCPUBursts = e.Limits.MaxCPUBursts
		}
		if e.Limits.CPUBurstIntervalMS != 0 {
			limits.CPUBurstIntervalMS = e.Limits.CPUBurstIntervalMS
		}
	}

	return types.WorkerInitOpts{
		ServicePath:   e.ServicePath,
		EnvVars:       e.Env,
		ImportMapPath: e.ImportMapPath,
		NoModuleCache: e.NoModuleCache,
		Kind:          types.KindUserWorker,
		Limits:        limits,
	}
}
