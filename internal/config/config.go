// Package config loads and saves solve scenarios as YAML files.
package config

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt      = 0.001
	DefaultOrder   = "linear"
	DefaultQ       = 10.0
	DefaultFMin    = 1.0
	DefaultFMax    = 1000.0
	DefaultFPoints = 100
)

type Config struct {
	Name        string       `yaml:"name"`
	Dt          float64      `yaml:"dt"`
	Order       string       `yaml:"order"`
	Workers     int          `yaml:"workers"`
	CriticalTol float64      `yaml:"critical_tol,omitempty"`
	System      SystemConfig `yaml:"system"`
	Force       ForceConfig  `yaml:"force"`
	Init        InitConfig   `yaml:"init"`
	SRS         SRSConfig    `yaml:"srs,omitempty"`
}

// MatrixConfig describes one system matrix, either as a diagonal shortcut or
// as full rows.
type MatrixConfig struct {
	Diagonal []float64   `yaml:"diagonal,omitempty"`
	Rows     [][]float64 `yaml:"rows,omitempty"`
}

// Dim reports the matrix size, 0 when unset.
func (m MatrixConfig) Dim() int {
	if len(m.Diagonal) > 0 {
		return len(m.Diagonal)
	}
	return len(m.Rows)
}

// Build materializes the matrix at size n. An unset config yields zeros,
// which is how a scenario omits damping.
func (m MatrixConfig) Build(n int) (*mat.Dense, error) {
	d := mat.NewDense(n, n, nil)
	switch {
	case len(m.Diagonal) > 0:
		if len(m.Diagonal) != n {
			return nil, fmt.Errorf("config: diagonal has %d entries, want %d", len(m.Diagonal), n)
		}
		for i, v := range m.Diagonal {
			d.Set(i, i, v)
		}
	case len(m.Rows) > 0:
		if len(m.Rows) != n {
			return nil, fmt.Errorf("config: matrix has %d rows, want %d", len(m.Rows), n)
		}
		for i, row := range m.Rows {
			if len(row) != n {
				return nil, fmt.Errorf("config: row %d has %d entries, want %d", i, len(row), n)
			}
			for j, v := range row {
				d.Set(i, j, v)
			}
		}
	}
	return d, nil
}

type SystemConfig struct {
	Mass      MatrixConfig `yaml:"mass"`
	Damping   MatrixConfig `yaml:"damping"`
	Stiffness MatrixConfig `yaml:"stiffness"`
}

// Matrices builds the (M, C, K) triple. Mass and stiffness are required; an
// absent damping block means an undamped model.
func (s SystemConfig) Matrices() (m, c, k *mat.Dense, err error) {
	n := s.Mass.Dim()
	if n == 0 {
		return nil, nil, nil, fmt.Errorf("config: mass matrix is required")
	}
	if s.Stiffness.Dim() == 0 {
		return nil, nil, nil, fmt.Errorf("config: stiffness matrix is required")
	}
	if m, err = s.Mass.Build(n); err != nil {
		return nil, nil, nil, err
	}
	if c, err = s.Damping.Build(n); err != nil {
		return nil, nil, nil, err
	}
	if k, err = s.Stiffness.Build(n); err != nil {
		return nil, nil, nil, err
	}
	return m, c, k, nil
}

type ForceConfig struct {
	CSV   string       `yaml:"csv,omitempty"`
	Synth *SynthConfig `yaml:"synth,omitempty"`
}

// SynthConfig generates a simple test forcing instead of reading one from
// disk.
type SynthConfig struct {
	Kind      string  `yaml:"kind"` // pulse, step or sine
	DOF       int     `yaml:"dof"`
	Amplitude float64 `yaml:"amplitude"`
	Duration  float64 `yaml:"duration"`  // pulse on-time, seconds
	Frequency float64 `yaml:"frequency"` // sine frequency, Hz
	Samples   int     `yaml:"samples"`
}

// Build synthesizes the n-by-samples force matrix.
func (s *SynthConfig) Build(n int, dt float64) (*mat.Dense, error) {
	if s.Samples < 1 {
		return nil, fmt.Errorf("config: force synth needs a positive sample count, got %d", s.Samples)
	}
	if s.DOF < 0 || s.DOF >= n {
		return nil, fmt.Errorf("config: force synth dof %d out of range [0,%d)", s.DOF, n)
	}
	f := mat.NewDense(n, s.Samples, nil)
	for k := 0; k < s.Samples; k++ {
		t := float64(k) * dt
		var v float64
		switch s.Kind {
		case "pulse":
			if t < s.Duration {
				v = s.Amplitude
			}
		case "step":
			v = s.Amplitude
		case "sine":
			v = s.Amplitude * math.Sin(2*math.Pi*s.Frequency*t)
		default:
			return nil, fmt.Errorf("config: unknown force synth kind %q", s.Kind)
		}
		f.Set(s.DOF, k, v)
	}
	return f, nil
}

type InitConfig struct {
	Displacement []float64 `yaml:"displacement,omitempty"`
	Velocity     []float64 `yaml:"velocity,omitempty"`
}

// SRSConfig holds the spectrum sweep settings for the srs command.
type SRSConfig struct {
	FMin   float64 `yaml:"fmin,omitempty"`
	FMax   float64 `yaml:"fmax,omitempty"`
	Points int     `yaml:"points,omitempty"`
	Q      float64 `yaml:"q,omitempty"`
	Resp   string  `yaml:"resp,omitempty"`
}

// FreqGrid returns the log-spaced spectrum frequencies in Hz.
func (s SRSConfig) FreqGrid() []float64 {
	fmin, fmax, points := s.FMin, s.FMax, s.Points
	if fmin <= 0 {
		fmin = DefaultFMin
	}
	if fmax <= fmin {
		fmax = DefaultFMax
	}
	if points < 2 {
		points = DefaultFPoints
	}
	out := make([]float64, points)
	lmin, lmax := math.Log10(fmin), math.Log10(fmax)
	for i := range out {
		out[i] = math.Pow(10, lmin+(lmax-lmin)*float64(i)/float64(points-1))
	}
	return out
}

func DefaultConfig() *Config {
	return &Config{
		Dt:    DefaultDt,
		Order: DefaultOrder,
		SRS: SRSConfig{
			FMin:   DefaultFMin,
			FMax:   DefaultFMax,
			Points: DefaultFPoints,
			Q:      DefaultQ,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
