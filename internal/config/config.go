// Package config resolves the selection engine's tunables from defaults,
// an optional config file, the environment, and bound flags, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ColumnLibrary and ColumnCalibrated select which rt/mobility/mz columns a
// run reads from the precursor and fragment tables.
const (
	ColumnLibrary    = "library"
	ColumnCalibrated = "calibrated"
)

// Config holds every tunable of the candidate-selection engine.
type Config struct {
	Tolerance ToleranceConfig `mapstructure:"tolerance"`
	Kernel    KernelConfig    `mapstructure:"kernel"`
	Peak      PeakConfig      `mapstructure:"peak"`
	Selection SelectionConfig `mapstructure:"selection"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ToleranceConfig bounds the extraction window around a library coordinate.
type ToleranceConfig struct {
	RT       float64 `mapstructure:"rt_seconds"`
	Mobility float64 `mapstructure:"mobility"`
	MZPPM    float64 `mapstructure:"mz_ppm"`
}

// KernelConfig parameterizes the 2-D Gaussian smoothing kernel.
type KernelConfig struct {
	Size          int     `mapstructure:"size"`
	SigmaRT       float64 `mapstructure:"sigma_rt"`
	SigmaMobility float64 `mapstructure:"sigma_mobility"`
}

// PeakConfig parameterizes local-maximum detection and boundary estimation.
type PeakConfig struct {
	CenterFraction   float64 `mapstructure:"center_fraction"`
	FractionRT       float64 `mapstructure:"fraction_rt"`
	FractionMobility float64 `mapstructure:"fraction_mobility"`
	MinRT            int     `mapstructure:"min_rt"`
	MaxRT            int     `mapstructure:"max_rt"`
	MinMobility      int     `mapstructure:"min_mobility"`
	MaxMobility      int     `mapstructure:"max_mobility"`
}

// SelectionConfig controls score-group assembly and ion grouping.
type SelectionConfig struct {
	CandidateCount         int    `mapstructure:"candidate_count"`
	TopKFragments          int    `mapstructure:"top_k_fragments"`
	TopKPrecursors         int    `mapstructure:"top_k_precursors"`
	MaxCardinality         int    `mapstructure:"max_cardinality"`
	GroupChannels          bool   `mapstructure:"group_channels"`
	GroupByDecoy           bool   `mapstructure:"group_by_decoy"`
	ExcludeSharedFragments bool   `mapstructure:"exclude_shared_fragments"`
	RTColumn               string `mapstructure:"rt_column"`
	MobilityColumn         string `mapstructure:"mobility_column"`
	MZColumn               string `mapstructure:"mz_column"`
}

// RuntimeConfig controls the parallel executor.
type RuntimeConfig struct {
	ThreadCount int  `mapstructure:"thread_count"`
	Debug       bool `mapstructure:"debug"`
}

// LoadOptions configures Load.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		Tolerance: ToleranceConfig{
			RT:       30,
			Mobility: 0.03,
			MZPPM:    120,
		},
		Kernel: KernelConfig{
			Size:          20,
			SigmaRT:       5,
			SigmaMobility: 12,
		},
		Peak: PeakConfig{
			CenterFraction:   0.5,
			FractionRT:       0.99,
			FractionMobility: 0.95,
			MinRT:            3,
			MaxRT:            30,
			MinMobility:      6,
			MaxMobility:      40,
		},
		Selection: SelectionConfig{
			CandidateCount: 3,
			TopKFragments:  12,
			TopKPrecursors: 3,
			MaxCardinality: 10,
			RTColumn:       ColumnLibrary,
			MobilityColumn: ColumnLibrary,
			MZColumn:       ColumnLibrary,
		},
		Runtime: RuntimeConfig{
			ThreadCount: 20,
		},
		LogLevel: "info",
	}
}

// RegisterFlags registers one flag per tunable against fs, seeded from
// defaults.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Float64("rt-tolerance", defaults.Tolerance.RT, "Retention time tolerance in seconds")
	fs.Float64("mobility-tolerance", defaults.Tolerance.Mobility, "Ion mobility tolerance in 1/K0 units")
	fs.Float64("mz-tolerance", defaults.Tolerance.MZPPM, "m/z tolerance in ppm")
	fs.Int("kernel-size", defaults.Kernel.Size, "Smoothing kernel width/height in (scan, cycle) bins")
	fs.Float64("kernel-sigma-rt", defaults.Kernel.SigmaRT, "Kernel standard deviation along the rt/cycle axis")
	fs.Float64("kernel-sigma-mobility", defaults.Kernel.SigmaMobility, "Kernel standard deviation along the mobility/scan axis")
	fs.Float64("peak-center-fraction", defaults.Peak.CenterFraction, "Minimum apex intensity as a fraction of the score map maximum")
	fs.Float64("peak-fraction-rt", defaults.Peak.FractionRT, "Boundary descent fraction along the rt/cycle axis")
	fs.Float64("peak-fraction-mobility", defaults.Peak.FractionMobility, "Boundary descent fraction along the mobility/scan axis")
	fs.Int("peak-min-rt", defaults.Peak.MinRT, "Minimum half-width of a peak boundary along the rt/cycle axis")
	fs.Int("peak-max-rt", defaults.Peak.MaxRT, "Maximum half-width of a peak boundary along the rt/cycle axis")
	fs.Int("peak-min-mobility", defaults.Peak.MinMobility, "Minimum half-width of a peak boundary along the mobility/scan axis")
	fs.Int("peak-max-mobility", defaults.Peak.MaxMobility, "Maximum half-width of a peak boundary along the mobility/scan axis")
	fs.Int("candidate-count", defaults.Selection.CandidateCount, "Maximum candidates returned per score group")
	fs.Int("top-k-fragments", defaults.Selection.TopKFragments, "Maximum fragment ions retained per score group")
	fs.Int("top-k-precursors", defaults.Selection.TopKPrecursors, "Maximum isotopes retained per score group")
	fs.Int("max-cardinality", defaults.Selection.MaxCardinality, "Fragment ions shared by more than this many precursors are dropped")
	fs.Bool("group-channels", defaults.Selection.GroupChannels, "Partition score groups by channel instead of one precursor per group")
	fs.Bool("group-by-decoy", defaults.Selection.GroupByDecoy, "Partition score groups into one target group and one decoy group")
	fs.Bool("exclude-shared-fragments", defaults.Selection.ExcludeSharedFragments, "Drop fragments shared by more than one precursor (cardinality > 1) instead of downweighting them")
	fs.String("rt-column", defaults.Selection.RTColumn, "Precursor rt column to read (library|calibrated)")
	fs.String("mobility-column", defaults.Selection.MobilityColumn, "Precursor mobility column to read (library|calibrated)")
	fs.String("mz-column", defaults.Selection.MZColumn, "Precursor/fragment mz column to read (library|calibrated)")
	fs.Int("thread-count", defaults.Runtime.ThreadCount, "Worker pool size for the parallel executor")
	fs.Bool("debug", defaults.Runtime.Debug, "Run with a single worker and a bounded iteration count")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// Load resolves a Config by layering defaults, an optional config file,
// the environment (DIASELECT_ prefixed), and bound flags, in that order.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	registerAliases(v)

	v.SetEnvPrefix("DIASELECT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	} else {
		v.SetConfigName("diaselect")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("tolerance.rt_seconds", c.Tolerance.RT)
	v.SetDefault("tolerance.mobility", c.Tolerance.Mobility)
	v.SetDefault("tolerance.mz_ppm", c.Tolerance.MZPPM)
	v.SetDefault("kernel.size", c.Kernel.Size)
	v.SetDefault("kernel.sigma_rt", c.Kernel.SigmaRT)
	v.SetDefault("kernel.sigma_mobility", c.Kernel.SigmaMobility)
	v.SetDefault("peak.center_fraction", c.Peak.CenterFraction)
	v.SetDefault("peak.fraction_rt", c.Peak.FractionRT)
	v.SetDefault("peak.fraction_mobility", c.Peak.FractionMobility)
	v.SetDefault("peak.min_rt", c.Peak.MinRT)
	v.SetDefault("peak.max_rt", c.Peak.MaxRT)
	v.SetDefault("peak.min_mobility", c.Peak.MinMobility)
	v.SetDefault("peak.max_mobility", c.Peak.MaxMobility)
	v.SetDefault("selection.candidate_count", c.Selection.CandidateCount)
	v.SetDefault("selection.top_k_fragments", c.Selection.TopKFragments)
	v.SetDefault("selection.top_k_precursors", c.Selection.TopKPrecursors)
	v.SetDefault("selection.max_cardinality", c.Selection.MaxCardinality)
	v.SetDefault("selection.group_channels", c.Selection.GroupChannels)
	v.SetDefault("selection.group_by_decoy", c.Selection.GroupByDecoy)
	v.SetDefault("selection.exclude_shared_fragments", c.Selection.ExcludeSharedFragments)
	v.SetDefault("selection.rt_column", c.Selection.RTColumn)
	v.SetDefault("selection.mobility_column", c.Selection.MobilityColumn)
	v.SetDefault("selection.mz_column", c.Selection.MZColumn)
	v.SetDefault("runtime.thread_count", c.Runtime.ThreadCount)
	v.SetDefault("runtime.debug", c.Runtime.Debug)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("tolerance.rt_seconds", "rt-tolerance")
	v.RegisterAlias("tolerance.mobility", "mobility-tolerance")
	v.RegisterAlias("tolerance.mz_ppm", "mz-tolerance")
	v.RegisterAlias("kernel.size", "kernel-size")
	v.RegisterAlias("kernel.sigma_rt", "kernel-sigma-rt")
	v.RegisterAlias("kernel.sigma_mobility", "kernel-sigma-mobility")
	v.RegisterAlias("peak.center_fraction", "peak-center-fraction")
	v.RegisterAlias("peak.fraction_rt", "peak-fraction-rt")
	v.RegisterAlias("peak.fraction_mobility", "peak-fraction-mobility")
	v.RegisterAlias("peak.min_rt", "peak-min-rt")
	v.RegisterAlias("peak.max_rt", "peak-max-rt")
	v.RegisterAlias("peak.min_mobility", "peak-min-mobility")
	v.RegisterAlias("peak.max_mobility", "peak-max-mobility")
	v.RegisterAlias("selection.candidate_count", "candidate-count")
	v.RegisterAlias("selection.top_k_fragments", "top-k-fragments")
	v.RegisterAlias("selection.top_k_precursors", "top-k-precursors")
	v.RegisterAlias("selection.max_cardinality", "max-cardinality")
	v.RegisterAlias("selection.group_channels", "group-channels")
	v.RegisterAlias("selection.group_by_decoy", "group-by-decoy")
	v.RegisterAlias("selection.exclude_shared_fragments", "exclude-shared-fragments")
	v.RegisterAlias("selection.rt_column", "rt-column")
	v.RegisterAlias("selection.mobility_column", "mobility-column")
	v.RegisterAlias("selection.mz_column", "mz-column")
	v.RegisterAlias("runtime.thread_count", "thread-count")
	v.RegisterAlias("runtime.debug", "debug")
	v.RegisterAlias("log_level", "log-level")
}
