package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dicom-deid/internal/anonymizer"
	"dicom-deid/internal/identity"
)

// Options holds CLI configuration options. The yaml tags define the
// --config file layout.
type Options struct {
	InputFolder     string   `yaml:"input"`
	OutputFolder    string   `yaml:"output"`
	Prefix          string   `yaml:"prefix"`
	Pseudonym       string   `yaml:"pseudonym"` // random, integer or file
	PseudonymFile   string   `yaml:"pseudonym-file"`
	PseudonymBase   int      `yaml:"pseudonym-base"`
	PseudonymLength int      `yaml:"pseudonym-length"`
	Retain          []string `yaml:"retain"`
	UIDRoot         string   `yaml:"uid-root"`
	Filenames       string   `yaml:"filenames"` // hex or modality-sop
	Workers         int      `yaml:"workers"`
	LogLevel        string   `yaml:"log-level"`
	LogFormat       string   `yaml:"log-format"` // text or json
}

// DefaultOutputFolder is used when no output folder is given.
const DefaultOutputFolder = "./anonymized_output"

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		OutputFolder:    DefaultOutputFolder,
		Pseudonym:       string(identity.StrategyRandom),
		PseudonymBase:   1,
		PseudonymLength: identity.DefaultRandomLength,
		UIDRoot:         identity.FNORoot,
		Filenames:       string(anonymizer.NamingHex),
		Workers:         1,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadConfigFile reads a YAML options file on top of base. Keys missing from
// the file keep their base values.
func LoadConfigFile(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return base, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return opts, nil
}

// AnonymizerConfig converts options into the engine configuration.
func (o Options) AnonymizerConfig(log *slog.Logger) (anonymizer.Config, error) {
	strategy, err := identity.ParseStrategy(o.Pseudonym)
	if err != nil {
		return anonymizer.Config{}, err
	}

	naming, err := anonymizer.ParseNamingMode(o.Filenames)
	if err != nil {
		return anonymizer.Config{}, err
	}

	var retained []anonymizer.Option
	for _, r := range o.Retain {
		opt, err := anonymizer.ParseOption(r)
		if err != nil {
			return anonymizer.Config{}, err
		}
		retained = append(retained, opt)
	}
	profile, err := anonymizer.NewProfile(retained...)
	if err != nil {
		return anonymizer.Config{}, err
	}

	return anonymizer.Config{
		InputFolder:  o.InputFolder,
		OutputFolder: o.OutputFolder,
		Profile:      profile,
		Pseudonym: identity.AllocatorConfig{
			Strategy:     strategy,
			Prefix:       o.Prefix,
			Base:         o.PseudonymBase,
			Length:       o.PseudonymLength,
			RegistryFile: o.PseudonymFile,
		},
		UIDRoot: o.UIDRoot,
		Naming:  naming,
		Workers: o.Workers,
		Logger:  log,
	}, nil
}

// NewLogger builds the process logger from level and format names.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}
