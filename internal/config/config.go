// Package config resolves ranger's settings from defaults, an HCL file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"

	"github.com/agentic-research/ranger/api"
	"github.com/agentic-research/ranger/internal/checkpoint"
	"github.com/agentic-research/ranger/internal/export"
	"github.com/agentic-research/ranger/internal/extract"
	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/stack"
	"github.com/agentic-research/ranger/internal/survey"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "ranger.hcl"

// Stack modes.
const (
	StackAll   = "all"
	StackFirst = "first"
)

// Config is the resolved configuration.
type Config struct {
	Workers                  int
	SkipNames                []string
	ImagingExtensions        []string
	CheckpointName           string
	LogName                  string
	LogLevel                 string
	ExtractTimeout           time.Duration
	ReconstructionSuffix     string
	FolderMetadataExtensions []string

	StackPattern string
	StackMinSize int
	StackMode    string

	StorePath      string
	StoreCacheSize int

	Artifacts export.S3Config
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers:                  4,
		SkipNames:                append([]string(nil), survey.DefaultSkipNames...),
		ImagingExtensions:        append([]string(nil), survey.DefaultImagingExtensions...),
		CheckpointName:           checkpoint.DefaultName,
		LogName:                  survey.DefaultLogName,
		LogLevel:                 "info",
		ExtractTimeout:           30 * time.Second,
		ReconstructionSuffix:     "_Rec",
		FolderMetadataExtensions: append([]string(nil), graph.DefaultFolderMetadataExts...),
		StackMode:                StackAll,
		StorePath:                "ranger.db",
		Artifacts:                export.S3Config{Region: "us-east-1", UseSSL: true},
	}
}

// Load resolves the configuration. path names an HCL file; when empty,
// DefaultFile is used if it exists. envFile names a dotenv file, ".env"
// when empty; a missing dotenv file is not an error. Variables already in
// the environment win over the dotenv file.
func Load(path, envFile string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		var raw api.Config
		if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := c.apply(&raw); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) apply(raw *api.Config) error {
	if raw.Workers != 0 {
		c.Workers = raw.Workers
	}
	if raw.SkipNames != nil {
		c.SkipNames = raw.SkipNames
	}
	if raw.ImagingExtensions != nil {
		c.ImagingExtensions = raw.ImagingExtensions
	}
	if raw.CheckpointName != "" {
		c.CheckpointName = raw.CheckpointName
	}
	if raw.LogName != "" {
		c.LogName = raw.LogName
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.ExtractTimeout != "" {
		d, err := time.ParseDuration(raw.ExtractTimeout)
		if err != nil {
			return fmt.Errorf("extract_timeout: %w", err)
		}
		c.ExtractTimeout = d
	}
	if raw.ReconstructionSuffix != nil {
		c.ReconstructionSuffix = *raw.ReconstructionSuffix
	}
	if raw.FolderMetadataExtensions != nil {
		c.FolderMetadataExtensions = raw.FolderMetadataExtensions
	}
	if s := raw.Stack; s != nil {
		c.StackPattern = s.Pattern
		c.StackMinSize = s.MinSize
		if s.Mode != "" {
			c.StackMode = s.Mode
		}
	}
	if s := raw.Store; s != nil {
		if s.Path != "" {
			c.StorePath = s.Path
		}
		c.StoreCacheSize = s.CacheSize
	}
	if a := raw.Artifacts; a != nil {
		c.Artifacts.Endpoint = a.Endpoint
		c.Artifacts.Bucket = a.Bucket
		c.Artifacts.AccessKey = a.AccessKey
		c.Artifacts.SecretKey = a.SecretKey
		c.Artifacts.Prefix = a.Prefix
		if a.Region != "" {
			c.Artifacts.Region = a.Region
		}
		if a.UseSSL != nil {
			c.Artifacts.UseSSL = *a.UseSSL
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("RANGER_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RANGER_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v, ok := get("RANGER_STORE_PATH"); ok {
		c.StorePath = v
	}
	if v, ok := get("RANGER_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("RANGER_S3_ENDPOINT"); ok {
		c.Artifacts.Endpoint = v
	}
	if v, ok := get("RANGER_S3_BUCKET"); ok {
		c.Artifacts.Bucket = v
	}
	if v, ok := get("RANGER_S3_REGION"); ok {
		c.Artifacts.Region = v
	}
	if v, ok := get("RANGER_S3_ACCESS_KEY"); ok {
		c.Artifacts.AccessKey = v
	}
	if v, ok := get("RANGER_S3_SECRET_KEY"); ok {
		c.Artifacts.SecretKey = v
	}
	if v, ok := get("RANGER_S3_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RANGER_S3_USE_SSL: %w", err)
		}
		c.Artifacts.UseSSL = b
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.StackMinSize < 0 || c.StackMinSize == 1 {
		errs = append(errs, fmt.Errorf("stack min_size must be 0 (disabled) or at least 2, got %d", c.StackMinSize))
	}
	if c.StackMode != StackAll && c.StackMode != StackFirst {
		errs = append(errs, fmt.Errorf("stack mode must be %q or %q, got %q", StackAll, StackFirst, c.StackMode))
	}
	if c.StackPattern != "" {
		if _, err := stack.Compile(c.StackPattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("stack pattern: %w", err))
		}
	}
	if c.ExtractTimeout < 0 {
		errs = append(errs, fmt.Errorf("extract_timeout must not be negative"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// SurveyOptions returns the surveyor options.
func (c *Config) SurveyOptions() survey.Options {
	return survey.Options{
		Workers:           c.Workers,
		SkipNames:         c.SkipNames,
		IgnoreFiles:       []string{c.CheckpointName, c.LogName},
		ImagingExtensions: c.ImagingExtensions,
		Stack: survey.StackOptions{
			Pattern:   c.StackPattern,
			MinSize:   c.StackMinSize,
			FirstOnly: c.StackMode == StackFirst,
		},
		ReconstructionSuffix: c.ReconstructionSuffix,
	}
}

// Registry returns the default extractor registry with the configured
// timeout.
func (c *Config) Registry() *extract.Registry {
	return extract.DefaultRegistry(c.ExtractTimeout)
}
