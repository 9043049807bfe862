package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

const appDirName = "baseline"

// GetDefaultConfigPaths returns the directories searched for config.yaml, most preferred first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
			".",
		}, nil
	}

	return []string{
		filepath.Join(homeDir, ".config", appDirName),
		".",
		filepath.Join("/etc", appDirName),
	}, nil
}
