package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile configures the optional rotating log file
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupLogging configures the logging system. Log lines go to stderr so
// command output on stdout stays clean; with a LogFile they are also written
// to a rotating file.
func SetupLogging(logLevel string, file *LogFile) *logrus.Logger {
	// Create a new logger
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("DBSIGHT_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	var out io.Writer = os.Stderr
	if file != nil && file.Path != "" {
		w, err := rotatingWriter(*file)
		if err != nil {
			logger.SetOutput(out)
			logger.Warnf("Log file disabled: %v", err)
			return logger
		}
		out = io.MultiWriter(os.Stderr, w)
	}
	logger.SetOutput(out)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

func rotatingWriter(f LogFile) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAgeDays,
		Compress:   true,
	}, nil
}

// NopLogger returns a logger that discards everything
func NopLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// EnvLoad is the outcome of reading a .env file. Environment variables are
// needed before logging is configured, so the diagnostics are kept and
// logged later with Log.
type EnvLoad struct {
	File        string
	Loaded      bool
	SampleFound bool
	Err         error
}

// ReadEnvFile loads envFile into the process environment without logging
func ReadEnvFile(envFile string) EnvLoad {
	res := EnvLoad{File: envFile}
	// Check if a sample .env file exists but not the actual .env file
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if _, err := os.Stat(envFile + ".sample"); err == nil {
			res.SampleFound = true
		}
		return res
	}
	if err := godotenv.Load(envFile); err != nil {
		res.Err = err
		return res
	}
	res.Loaded = true
	return res
}

// Log reports the load result and, at debug level, the DBSIGHT_ variables
// with passwords masked
func (e EnvLoad) Log(logger *logrus.Logger) {
	switch {
	case e.Err != nil:
		logger.Warnf("Error loading %s file: %v", e.File, e.Err)
		return
	case !e.Loaded:
		if e.SampleFound {
			sample := e.File + ".sample"
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				e.File, sample, sample, e.File)
		}
		logger.Debugf("No %s file found, using existing environment variables", e.File)
		return
	}
	logger.Debugf("Loaded environment variables from %s", e.File)

	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "DBSIGHT_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		// Mask secrets
		if strings.Contains(parts[0], "PASSWORD") {
			logger.Debugf("%s=********", parts[0])
		} else {
			logger.Debugf("%s=%s", parts[0], parts[1])
		}
	}
}
