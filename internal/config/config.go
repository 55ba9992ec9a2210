// Package config loads the audit run configuration: split ratios, evaluation
// horizons, preprocessing thresholds, and the hyperparameter grids.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Split      SplitConfig   `yaml:"split"`
	Horizons   HorizonConfig `yaml:"horizons"`
	Preprocess PrepConfig    `yaml:"preprocess"`
	Grids      GridConfig    `yaml:"grids"`
	Report     ReportConfig  `yaml:"report"`
	DB         DBConfig      `yaml:"db"`
}

type SplitConfig struct {
	Train      float64 `yaml:"train"`
	Validation float64 `yaml:"validation"`
	Test       float64 `yaml:"test"`
	Seed       int64   `yaml:"seed"`
}

type HorizonConfig struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Step  float64 `yaml:"step"`
}

type PrepConfig struct {
	RareLevelMinCount int `yaml:"rare_level_min_count"`
}

type GridConfig struct {
	Forest  ForestGrid  `yaml:"forest"`
	Cox     CoxGrid     `yaml:"cox"`
	Weibull WeibullGrid `yaml:"weibull"`
}

type ForestGrid struct {
	Trees   []int `yaml:"trees"`
	MinLeaf []int `yaml:"min_leaf"`
}

type CoxGrid struct {
	Penalty []float64 `yaml:"penalty"`
}

type WeibullGrid struct {
	Ridge []float64 `yaml:"ridge"`
}

type ReportConfig struct {
	TopN      int     `yaml:"top"`
	AlertDays float64 `yaml:"alert_days"`
}

type DBConfig struct {
	URL    string `yaml:"url"`
	Schema string `yaml:"schema"`
	Tag    string `yaml:"tag"`
}

// Load reads the YAML config at path, falling back to defaults for anything
// unset. An empty path returns the defaults. The database URL can always be
// overridden through SURVAUDIT_DB_URL or DATABASE_URL.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if url := dbURLFromEnv(); url != "" {
		cfg.DB.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("SURVAUDIT_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func Default() *Config {
	return &Config{
		Split: SplitConfig{
			Train:      0.6,
			Validation: 0.2,
			Test:       0.2,
			Seed:       20260825,
		},
		Horizons: HorizonConfig{
			Start: 30,
			End:   360,
			Step:  30,
		},
		Preprocess: PrepConfig{
			RareLevelMinCount: 20,
		},
		Grids: GridConfig{
			Forest: ForestGrid{
				Trees:   []int{100, 300},
				MinLeaf: []int{10, 25},
			},
			Cox: CoxGrid{
				Penalty: []float64{0.01, 0.1, 1},
			},
			Weibull: WeibullGrid{
				Ridge: []float64{0, 0.1},
			},
		},
		Report: ReportConfig{
			TopN:      10,
			AlertDays: 180,
		},
		DB: DBConfig{
			Schema: "survaudit",
		},
	}
}

func (c *Config) Validate() error {
	sum := c.Split.Train + c.Split.Validation + c.Split.Test
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("split ratios must sum to 1, got %.3f", sum)
	}
	if c.Split.Train <= 0 || c.Split.Validation <= 0 || c.Split.Test <= 0 {
		return fmt.Errorf("split ratios must all be positive")
	}
	if c.Horizons.Start <= 0 || c.Horizons.End < c.Horizons.Start || c.Horizons.Step <= 0 {
		return fmt.Errorf("invalid horizon grid: start=%g end=%g step=%g",
			c.Horizons.Start, c.Horizons.End, c.Horizons.Step)
	}
	if len(c.Grids.Forest.Trees) == 0 || len(c.Grids.Forest.MinLeaf) == 0 ||
		len(c.Grids.Cox.Penalty) == 0 || len(c.Grids.Weibull.Ridge) == 0 {
		return fmt.Errorf("hyperparameter grids must not be empty")
	}
	return nil
}

// Grid expands the horizon configuration into the evaluation times.
func (h HorizonConfig) Grid() []float64 {
	var grid []float64
	for t := h.Start; t <= h.End+1e-9; t += h.Step {
		grid = append(grid, t)
	}
	return grid
}
