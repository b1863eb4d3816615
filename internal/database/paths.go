package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDirName       = ".mileage-logger"
	SessionFileName  = "session.json"
	DistanceDBName   = "distances.db"
)

// GetAppDir returns ~/.mileage-logger, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	appDir := filepath.Join(homeDir, AppDirName)
	if err := os.MkdirAll(appDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return appDir, nil
}

// GetSessionFilePath returns ~/.mileage-logger/session.json
func GetSessionFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SessionFileName), nil
}

// GetDistanceDBPath returns ~/.mileage-logger/distances.db
func GetDistanceDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, DistanceDBName), nil
}
