// Package config loads the scanner configuration from a YAML file,
// falling back to defaults when the file is absent.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opennav/groundmesh/internal/navmesh"
	"github.com/opennav/groundmesh/internal/pathfind"
)

// File is the top-level configuration document.
type File struct {
	LogLevel string `yaml:"log_level"`

	Mesh  MeshConfig  `yaml:"mesh"`
	Agent AgentConfig `yaml:"agent"`

	// Database is only needed when snapshots are stored; empty host
	// disables the store.
	Database DatabaseConfig `yaml:"database"`
}

// MeshConfig configures the navigation mesh model.
type MeshConfig struct {
	TileSize        float64 `yaml:"tile_size"`
	ChunkSize       int     `yaml:"chunk_size"`
	KernelSize      int     `yaml:"kernel_size"`
	KernelStdDevTol float64 `yaml:"kernel_stddev_tolerance"`
	MaxSlopeDeg     float64 `yaml:"max_slope_degrees"`
	MinElevation    float64 `yaml:"min_elevation"`
	StepHeight      float64 `yaml:"step_height"`
	GroundMask      uint32  `yaml:"ground_mask"`
}

// Settings converts the section into model settings.
func (m MeshConfig) Settings() navmesh.Settings {
	return navmesh.Settings{
		TileSize:        m.TileSize,
		ChunkSize:       m.ChunkSize,
		KernelSize:      m.KernelSize,
		KernelStdDevTol: m.KernelStdDevTol,
		MaxSlopeDeg:     m.MaxSlopeDeg,
		MinElevation:    m.MinElevation,
		StepHeight:      m.StepHeight,
		GroundMask:      m.GroundMask,
	}
}

// AgentConfig configures the default pathfinding agent.
type AgentConfig struct {
	Behaviour    string  `yaml:"behaviour"`
	JumpDistance float64 `yaml:"jump_distance"`
	JumpPenalty  float64 `yaml:"jump_penalty"`
}

// Agent converts the section into a pathfinding agent.
func (a AgentConfig) Agent() (pathfind.Agent, error) {
	agent := pathfind.Agent{JumpDistance: a.JumpDistance, JumpPenalty: a.JumpPenalty}
	switch a.Behaviour {
	case "", "surface-bound":
		agent.Behaviour = pathfind.SurfaceBound
	case "prefer-performance":
		agent.Behaviour = pathfind.PreferPerformance
	case "prefer-results":
		agent.Behaviour = pathfind.PreferResults
	default:
		return agent, fmt.Errorf("unknown agent behaviour %q", a.Behaviour)
	}
	return agent, nil
}

// DatabaseConfig holds PostgreSQL connection parameters for the snapshot
// store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database target is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Default returns the configuration used when no file is present.
func Default() File {
	s := navmesh.DefaultSettings()
	return File{
		LogLevel: "info",
		Mesh: MeshConfig{
			TileSize:        s.TileSize,
			ChunkSize:       s.ChunkSize,
			KernelSize:      s.KernelSize,
			KernelStdDevTol: s.KernelStdDevTol,
			MaxSlopeDeg:     s.MaxSlopeDeg,
			MinElevation:    s.MinElevation,
			StepHeight:      s.StepHeight,
			GroundMask:      s.GroundMask,
		},
		Agent: AgentConfig{
			Behaviour:    "prefer-results",
			JumpDistance: 1.0,
			JumpPenalty:  10,
		},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// Load reads the configuration from a YAML file. A missing file yields
// the defaults.
func Load(path string) (File, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
