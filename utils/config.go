package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Config holds the settings a driver needs to build a layer, its loss and
// optimizer, and to run a gradient check.
type Config struct {
	Activation   string  `json:"activation"`
	Alpha        float64 `json:"alpha"`
	Loss         string  `json:"loss"`
	LearningRate float64 `json:"learning_rate"`
	Epsilon      float64 `json:"epsilon"`
	Tolerance    float64 `json:"tolerance"`
	Formula      string  `json:"formula"`
	Seed         int64   `json:"seed"`
	BatchSize    int     `json:"batch_size"`
	InputDim     int     `json:"input_dim"`
	OutputDim    int     `json:"output_dim"`
	Steps        int     `json:"steps"`
}

// DefaultConfig returns a smooth single-neuron setup suitable for checking
// gradients.
func DefaultConfig() Config {
	return Config{
		Activation:   "tanh",
		Alpha:        0.01,
		Loss:         "mse",
		LearningRate: 0.01,
		Epsilon:      1e-5,
		Tolerance:    1e-4,
		Formula:      "forward",
		Seed:         42,
		BatchSize:    4,
		InputDim:     3,
		OutputDim:    2,
	}
}

// ValidateConfig checks ranges. Identifier resolution is left to the
// constructors in package nn so that unknown names fail in one place.
func ValidateConfig(config *Config) error {
	if strings.TrimSpace(config.Activation) == "" {
		return fmt.Errorf("activation must be set")
	}
	if strings.TrimSpace(config.Loss) == "" {
		return fmt.Errorf("loss must be set")
	}
	if !positive(config.LearningRate) {
		return fmt.Errorf("learning rate must be positive, got %v", config.LearningRate)
	}
	if !positive(config.Epsilon) {
		return fmt.Errorf("epsilon must be positive, got %v", config.Epsilon)
	}
	if !positive(config.Tolerance) {
		return fmt.Errorf("tolerance must be positive, got %v", config.Tolerance)
	}
	if !(config.Alpha >= 0 && config.Alpha < 1) {
		return fmt.Errorf("alpha must be in [0, 1), got %v", config.Alpha)
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if config.InputDim <= 0 || config.OutputDim <= 0 {
		return fmt.Errorf("input and output dims must be positive, got %d and %d", config.InputDim, config.OutputDim)
	}
	if config.Steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// SaveConfig writes config as indented JSON.
func SaveConfig(filepath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadConfig reads a JSON config. Fields missing from the file keep their
// DefaultConfig values.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}
