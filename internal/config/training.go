// Package config loads the JSON training configuration used by the train
// tooling. Fields are pointers so a partial file only overrides what it
// names; unset fields fall back to the built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wormlab/untangle/internal/worm"
)

// TrainingConfig mirrors worm.TrainConfig for file-based configuration.
type TrainingConfig struct {
	NumControlPoints *int     `json:"num_control_points,omitempty"`
	AreaQuantile     *float64 `json:"area_quantile,omitempty"`
	CostQuantile     *float64 `json:"cost_quantile,omitempty"`
	OverlapWeight    *float64 `json:"overlap_weight,omitempty"`
	LeftoverWeight   *float64 `json:"leftover_weight,omitempty"`
	Version          *int     `json:"version,omitempty"`
}

// EmptyTrainingConfig returns a TrainingConfig with all fields unset.
func EmptyTrainingConfig() *TrainingConfig {
	return &TrainingConfig{}
}

// LoadTrainingConfig loads a TrainingConfig from a JSON file. The file
// must have a .json extension and stay under 1MB.
func LoadTrainingConfig(path string) (*TrainingConfig, error) {
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

	cfg := EmptyTrainingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set values are usable before training starts.
func (c *TrainingConfig) Validate() error {
	if c.NumControlPoints != nil && *c.NumControlPoints < 3 {
		return fmt.Errorf("num_control_points must be at least 3, got %d", *c.NumControlPoints)
	}
	if c.AreaQuantile != nil && (*c.AreaQuantile < 0 || *c.AreaQuantile >= 0.5) {
		return fmt.Errorf("area_quantile must be in [0, 0.5), got %f", *c.AreaQuantile)
	}
	if c.CostQuantile != nil && (*c.CostQuantile <= 0 || *c.CostQuantile > 1) {
		return fmt.Errorf("cost_quantile must be in (0, 1], got %f", *c.CostQuantile)
	}
	if c.Version != nil && *c.Version < 1 {
		return fmt.Errorf("version must be positive, got %d", *c.Version)
	}
	return nil
}

// TrainConfig converts the file representation to the domain config,
// leaving zero values where the domain defaults should apply.
func (c *TrainingConfig) TrainConfig() worm.TrainConfig {
	var out worm.TrainConfig
	if c.NumControlPoints != nil {
		out.NumControlPoints = *c.NumControlPoints
	}
	if c.AreaQuantile != nil {
		out.AreaQuantile = *c.AreaQuantile
	}
	if c.CostQuantile != nil {
		out.CostQuantile = *c.CostQuantile
	}
	if c.OverlapWeight != nil {
		out.OverlapWeight = *c.OverlapWeight
	}
	if c.LeftoverWeight != nil {
		out.LeftoverWeight = *c.LeftoverWeight
	}
	if c.Version != nil {
		out.Version = *c.Version
	}
	return out
}
