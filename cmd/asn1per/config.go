package main

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	flagConfig    = "config"
	flagSchema    = "schema"
	flagAligned   = "aligned"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

// Config is the optional TOML configuration file. Flags given on the
// command line override its values.
type Config struct {
	Schema    string `toml:"schema"`
	Aligned   bool   `toml:"aligned"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

type options struct {
	configFile string
	Config
}

func installFlags(opts *options, flags *pflag.FlagSet) {
	flags.StringVarP(&opts.configFile, flagConfig, "c", "", "TOML configuration file")
	flags.StringVarP(&opts.Schema, flagSchema, "s", "", "Type descriptor file (.json or .toml)")
	flags.BoolVarP(&opts.Aligned, flagAligned, "a", false, "Use the ALIGNED variant instead of UNALIGNED")
	flags.StringVarP(&opts.LogLevel, flagLogLevel, "l", "info", `Set the logging level ("trace"|"debug"|"info"|"warn"|"error"|"fatal")`)
	flags.StringVar(&opts.LogFormat, flagLogFormat, "text", `Set the logging format ("text"|"json")`)
}

// loadConfig merges the configuration file into opts, keeping every flag
// that was set explicitly.
func loadConfig(opts *options, flags *pflag.FlagSet) error {
	if opts.configFile == "" {
		return nil
	}
	data, err := os.ReadFile(opts.configFile)
	if err != nil {
		return errors.Wrapf(err, "reading config %s", opts.configFile)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "parsing config %s", opts.configFile)
	}

	if !flags.Changed(flagSchema) && cfg.Schema != "" {
		opts.Schema = cfg.Schema
	}
	if !flags.Changed(flagAligned) {
		opts.Aligned = cfg.Aligned
	}
	if !flags.Changed(flagLogLevel) && cfg.LogLevel != "" {
		opts.LogLevel = cfg.LogLevel
	}
	if !flags.Changed(flagLogFormat) && cfg.LogFormat != "" {
		opts.LogFormat = cfg.LogFormat
	}
	return nil
}

func setupLogging(opts *options) error {
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(level)

	switch opts.LogFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", opts.LogFormat)
	}
	return nil
}
