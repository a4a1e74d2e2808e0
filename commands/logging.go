package commands

import (
	"fmt"
	"io"
	"strings"

	"aethersecure/config"

	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.VaultConfig, opts *globalOptions, out io.Writer) (*logrus.Logger, error) {
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	format := cfg.LogFormat
	if opts.logFormat != "" {
		format = opts.logFormat
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(parsed)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case config.LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case config.LogFormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}
