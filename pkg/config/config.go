// Package config holds the refinement engine's configuration knobs.
//
// Loading follows the teacher's pkg/util/config.go pattern: viper reads a
// named config file, the result is unmarshalled into a typed struct, and
// the struct is validated with go-playground/validator before the caller
// ever sees it.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LPConfig configures the deterministic synchronous label-propagation refiner.
type LPConfig struct {
	MaxIter                       int  `mapstructure:"maxIter" validate:"min=1"`
	HyperedgeSizeActivationThreshold int `mapstructure:"hyperedgeSizeActivationThreshold" validate:"min=0"`
	NumSubRounds                  int  `mapstructure:"numSubRounds" validate:"min=1"`
	UseActiveNodeSet              bool `mapstructure:"useActiveNodeSet"`
	RecalculateGainsOnSecondApply bool `mapstructure:"recalculateGainsOnSecondApply"`
}

// FMConfig configures the localized k-way FM refiner.
type FMConfig struct {
	NumSeedNodes       int    `mapstructure:"numSeedNodes" validate:"min=1"`
	AllowZeroGainMoves bool   `mapstructure:"allowZeroGainMoves"`
	PerformMovesGlobal bool   `mapstructure:"performMovesGlobal"`
	Algorithm          string `mapstructure:"algorithm" validate:"oneof=boundary multitry"`
}

// AdvancedConfig configures the active-block scheduler.
type AdvancedConfig struct {
	MinRelativeImprovementPerRound float64 `mapstructure:"minRelativeImprovementPerRound" validate:"min=0"`
	NumThreadsPerSearch            int     `mapstructure:"numThreadsPerSearch" validate:"min=1"`
}

// SharedMemoryConfig shapes the worker pool backing every parallel region.
type SharedMemoryConfig struct {
	NumThreads                  int  `mapstructure:"numThreads" validate:"min=1"`
	StaticBalancingWorkPackages bool `mapstructure:"staticBalancingWorkPackages"`
}

// PartitionConfig carries balance constraints and the determinism seed.
type PartitionConfig struct {
	K              int     `mapstructure:"k" validate:"min=2"`
	MaxPartWeight  []int64 `mapstructure:"maxPartWeight" validate:"required,dive,min=0"`
	Objective      string  `mapstructure:"objective" validate:"oneof=km1 cut"`
	Seed           int64   `mapstructure:"seed"`
}

// Config is the full set of knobs the core honours, per spec.md §6.
type Config struct {
	Partition PartitionConfig    `mapstructure:"partition" validate:"required"`
	LP        LPConfig           `mapstructure:"lp" validate:"required"`
	FM        FMConfig           `mapstructure:"fm" validate:"required"`
	Advanced  AdvancedConfig     `mapstructure:"advanced" validate:"required"`
	SharedMemory SharedMemoryConfig `mapstructure:"sharedMemory" validate:"required"`
}

// Default returns a Config with the teacher-inherited defaults used when no
// config file is present (mirrors viper.SetDefault calls scattered across
// the teacher's pkg/http/server.go).
func Default(k int, maxPartWeight []int64) Config {
	return Config{
		Partition: PartitionConfig{
			K:             k,
			MaxPartWeight: maxPartWeight,
			Objective:     "km1",
			Seed:          1,
		},
		LP: LPConfig{
			MaxIter:                          5,
			HyperedgeSizeActivationThreshold: 100,
			NumSubRounds:                     16,
			UseActiveNodeSet:                 true,
			RecalculateGainsOnSecondApply:    false,
		},
		FM: FMConfig{
			NumSeedNodes:       25,
			AllowZeroGainMoves: false,
			PerformMovesGlobal: false,
			Algorithm:          "boundary",
		},
		Advanced: AdvancedConfig{
			MinRelativeImprovementPerRound: 0.001,
			NumThreadsPerSearch:            1,
		},
		SharedMemory: SharedMemoryConfig{
			NumThreads:                  4,
			StaticBalancingWorkPackages: false,
		},
	}
}

// Load reads a config file from path (any format viper supports: yaml, json,
// toml, ...) and validates it. Errors are wrapped in the teacher's style.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fatal error config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
