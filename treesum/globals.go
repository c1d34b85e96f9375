package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for the config directory and env prefix
	DefaultAppName        = "treesum"
	DefaultAppCMDShortCut = "treesum"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultConfigName     = DefaultAppName

	// DefaultCacheDir is the process-wide scratch directory holding one cache file per scanned root
	DefaultCacheDir = filepath.Join(os.TempDir(), DefaultAppName+"_cache")

	// DefaultIgnoreFile is the ignore-rules document looked up inside the scanned root
	DefaultIgnoreFile = "." + DefaultAppName + "config"

	DefaultAlgorithm = "md5"
	DefaultLogLevel  = "warn"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using %s: %v", os.TempDir(), err)
			return os.TempDir()
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a zerolog logger writing to stderr at the given level.
// Unknown levels fall back to DefaultLogLevel.
func GetLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl, _ = zerolog.ParseLevel(DefaultLogLevel)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
