// Package config merges the optional per-root config file, WORMRULER_* environment variables
// and command-line flags into one EffectiveConfig.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/John-Robertt/wormruler/internal/bgcorrect"
	"github.com/John-Robertt/wormruler/internal/infra/logx"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/normalize"
	"github.com/John-Robertt/wormruler/internal/skeleton"
)

const (
	ErrCodeMissingGamma      = "missing_gamma"
	ErrCodeMissingPulseStart = "missing_pulse_start"
	ErrCodeInvalidValue      = "invalid_value"
	ErrCodeRootNotFound      = "root_not_found"
	// ErrCodeInvalid means the config file or the environment could not be read or parsed.
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultFramerate = 30
	EnvPrefix        = "WORMRULER_"
)

// CLIArgs carries the flag values plus whether each was given, so an explicit flag can
// override a file value with anything, including false.
type CLIArgs struct {
	Root string

	Gamma    float64
	GammaSet bool

	Framerate    int
	FramerateSet bool

	PulseStart    int
	PulseStartSet bool

	Override    bool
	OverrideSet bool

	LogLevel    string
	MetricsFile string
}

// FileConfig is <root>/wormruler.json. Absent and null fields are unset.
type FileConfig struct {
	Gamma       *float64 `json:"gamma"`
	Framerate   *int     `json:"framerate"`
	PulseStart  *int     `json:"pulse_start"`
	Override    *bool    `json:"override"`
	LogLevel    string   `json:"log_level"`
	FFmpeg      string   `json:"ffmpeg"`
	FFprobe     string   `json:"ffprobe"`
	MetricsFile string   `json:"metrics_file"`

	BaselineStart *int     `json:"baseline_start"`
	OutlierLow    *float64 `json:"outlier_low"`
	OutlierHigh   *float64 `json:"outlier_high"`
	MinObjectSize *int     `json:"min_object_size"`
	MinHoleArea   *int     `json:"min_hole_area"`
}

// EnvConfig is the environment layer. Unset and empty variables leave the pointers nil.
type EnvConfig struct {
	Root        string   `env:"ROOT"`
	Gamma       *float64 `env:"GAMMA"`
	Framerate   *int     `env:"FRAMERATE"`
	PulseStart  *int     `env:"PULSE_START"`
	Override    *bool    `env:"OVERRIDE"`
	LogLevel    string   `env:"LOG_LEVEL"`
	FFmpeg      string   `env:"FFMPEG"`
	FFprobe     string   `env:"FFPROBE"`
	MetricsFile string   `env:"METRICS_FILE"`
}

// EffectiveConfig is the merged, validated configuration. Stages consume it as is.
type EffectiveConfig struct {
	Root string // clean + absolute, an existing directory

	Gamma    float64
	GammaSet bool

	Framerate int

	PulseStart    int
	PulseStartSet bool

	Override bool

	LogLevel    string
	FFmpeg      string
	FFprobe     string
	MetricsFile string

	BaselineStart int
	OutlierLow    float64
	OutlierHigh   float64
	MinObjectSize int
	MinHoleArea   int
}

// Error is a configuration failure with a stable code.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the code of a *Error, or "" for any other error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective resolves the root and merges the layers.
//
// Root: CLI > WORMRULER_ROOT > cwd. The config file is <root>/wormruler.json and optional.
// Every other field: CLI > environment > file > default. environ nil means the process
// environment.
func LoadEffective(cwd string, environ map[string]string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "environment", Err: err}
	}

	root := cwdAbs
	switch {
	case strings.TrimSpace(cli.Root) != "":
		root = absCleanFrom(cwdAbs, cli.Root)
	case strings.TrimSpace(ec.Root) != "":
		root = absCleanFrom(cwdAbs, ec.Root)
	}
	if err := checkRoot(root); err != nil {
		return EffectiveConfig{}, err
	}

	cfgPath := filepath.Join(root, naming.ConfigFile)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff := merge(root, cli, ec, fc)
	if err := eff.validate(); err != nil {
		return EffectiveConfig{}, err
	}
	return eff, nil
}

// Defaults is the configuration of root before any layer is applied: no gamma, no pulse
// start, skip-complete skeletonization.
func Defaults(root string) EffectiveConfig {
	return EffectiveConfig{
		Root:          root,
		Framerate:     DefaultFramerate,
		LogLevel:      logx.DefaultLevel,
		BaselineStart: normalize.DefaultBaselineStart,
		OutlierLow:    normalize.DefaultOutlierLow,
		OutlierHigh:   normalize.DefaultOutlierHigh,
		MinObjectSize: bgcorrect.DefaultMinObjectSize,
		MinHoleArea:   bgcorrect.DefaultMinHoleArea,
	}
}

func merge(root string, cli CLIArgs, ec EnvConfig, fc FileConfig) EffectiveConfig {
	eff := Defaults(root)

	// file
	if fc.Gamma != nil {
		eff.Gamma, eff.GammaSet = *fc.Gamma, true
	}
	if fc.Framerate != nil {
		eff.Framerate = *fc.Framerate
	}
	if fc.PulseStart != nil {
		eff.PulseStart, eff.PulseStartSet = *fc.PulseStart, true
	}
	if fc.Override != nil {
		eff.Override = *fc.Override
	}
	setString(&eff.LogLevel, fc.LogLevel)
	setString(&eff.FFmpeg, fc.FFmpeg)
	setString(&eff.FFprobe, fc.FFprobe)
	setString(&eff.MetricsFile, fc.MetricsFile)
	if fc.BaselineStart != nil {
		eff.BaselineStart = *fc.BaselineStart
	}
	if fc.OutlierLow != nil {
		eff.OutlierLow = *fc.OutlierLow
	}
	if fc.OutlierHigh != nil {
		eff.OutlierHigh = *fc.OutlierHigh
	}
	if fc.MinObjectSize != nil {
		eff.MinObjectSize = *fc.MinObjectSize
	}
	if fc.MinHoleArea != nil {
		eff.MinHoleArea = *fc.MinHoleArea
	}

	// environment
	if ec.Gamma != nil {
		eff.Gamma, eff.GammaSet = *ec.Gamma, true
	}
	if ec.Framerate != nil {
		eff.Framerate = *ec.Framerate
	}
	if ec.PulseStart != nil {
		eff.PulseStart, eff.PulseStartSet = *ec.PulseStart, true
	}
	if ec.Override != nil {
		eff.Override = *ec.Override
	}
	setString(&eff.LogLevel, ec.LogLevel)
	setString(&eff.FFmpeg, ec.FFmpeg)
	setString(&eff.FFprobe, ec.FFprobe)
	setString(&eff.MetricsFile, ec.MetricsFile)

	// flags
	if cli.GammaSet {
		eff.Gamma, eff.GammaSet = cli.Gamma, true
	}
	if cli.FramerateSet {
		eff.Framerate = cli.Framerate
	}
	if cli.PulseStartSet {
		eff.PulseStart, eff.PulseStartSet = cli.PulseStart, true
	}
	if cli.OverrideSet {
		eff.Override = cli.Override
	}
	setString(&eff.LogLevel, cli.LogLevel)
	if s := strings.TrimSpace(cli.MetricsFile); s != "" {
		eff.MetricsFile = s
	}

	if eff.MetricsFile != "" {
		eff.MetricsFile = absCleanFrom(root, eff.MetricsFile)
	}
	return eff
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// validate rejects values that are present but unusable. Missing gamma and pulse start are
// not errors here; the stages that need them ask via RequireGamma and RequirePulseStart.
func (c EffectiveConfig) validate() error {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalidValue, Err: fmt.Errorf(format, args...)}
	}
	if c.GammaSet && c.Gamma != 0 && (math.IsNaN(c.Gamma) || math.IsInf(c.Gamma, 0) || c.Gamma < 0) {
		return invalid("gamma must be a finite positive number, got %v", c.Gamma)
	}
	if c.Framerate <= 0 {
		return invalid("framerate must be a positive integer, got %d", c.Framerate)
	}
	if c.PulseStartSet && c.PulseStart < 0 {
		return invalid("pulse_start must not be negative, got %d", c.PulseStart)
	}
	if _, err := logx.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if c.BaselineStart < 0 {
		return invalid("baseline_start must not be negative, got %d", c.BaselineStart)
	}
	if !(c.OutlierLow < c.OutlierHigh) {
		return invalid("outlier band (%v, %v) is empty", c.OutlierLow, c.OutlierHigh)
	}
	if c.MinObjectSize < 0 || c.MinHoleArea < 0 {
		return invalid("min_object_size and min_hole_area must not be negative")
	}
	return nil
}

// RequireGamma fails with missing_gamma unless a non-zero gamma was configured.
func (c EffectiveConfig) RequireGamma() error {
	if !c.GammaSet || c.Gamma == 0 {
		return &Error{Code: ErrCodeMissingGamma, Err: bgcorrect.ErrMissingGamma}
	}
	return nil
}

// RequirePulseStart fails with missing_pulse_start unless a pulse start was configured.
func (c EffectiveConfig) RequirePulseStart() error {
	if !c.PulseStartSet {
		return &Error{Code: ErrCodeMissingPulseStart, Err: normalize.ErrMissingPulseStart}
	}
	return nil
}

func (c EffectiveConfig) CorrectParams() bgcorrect.Params {
	p := bgcorrect.DefaultParams(c.Gamma)
	p.MinObjectSize = c.MinObjectSize
	p.MinHoleArea = c.MinHoleArea
	return p
}

func (c EffectiveConfig) NormalizeParams() normalize.Params {
	p := normalize.DefaultParams(c.PulseStart, c.Framerate)
	p.PulseStartSet = c.PulseStartSet
	p.BaselineStart = c.BaselineStart
	p.OutlierLow = c.OutlierLow
	p.OutlierHigh = c.OutlierHigh
	return p
}

func (c EffectiveConfig) SkeletonParams() skeleton.Params {
	return skeleton.DefaultParams()
}

func checkRoot(root string) error {
	fi, err := os.Stat(root)
	if err != nil {
		return &Error{Code: ErrCodeRootNotFound, Path: root, Err: err}
	}
	if !fi.IsDir() {
		return &Error{Code: ErrCodeRootNotFound, Path: root, Err: errors.New("not a directory")}
	}
	return nil
}

// absCleanFrom makes p clean and absolute, relative paths being taken from base.
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig reads and parses the JSON config file. A missing file is not an error.
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
