package config

import (
	"errors"
	"time"
)

const (
	DefaultHome       = "~/.hf-mirror"
	DefaultEndpoint   = "https://hf-mirror.com"
	DefaultCacheDir   = "~/.cache/huggingface/hub"
	DefaultBinary     = "huggingface-cli"
	DefaultPython     = "python3"
	DefaultHost       = "localhost"
	DefaultPort       = 8990
	DefaultAttempts   = 3
	DefaultS3Folder   = "models"
	historyDBFilename = "history.db"
)

const (
	DefaultRetryDelay       = 5 * time.Second
	DefaultDowngradePause   = 5 * time.Second
	DefaultLockTimeout      = 30 * time.Second
	DefaultLockPollInterval = time.Second
)

var (
	ErrHomeNotSet          = errors.New("hf-mirror home directory is not set")
	ErrHomeExpandFailed    = errors.New("failed to expand hf-mirror home directory")
	ErrInvalidAttempts     = errors.New("downloader.attempts must be at least 1")
	ErrEndpointNotSet      = errors.New("mirror endpoint is not set")
	ErrInvalidFilesystem   = errors.New("invalid filesystem type")
	ErrConfigNotLoaded     = errors.New("config not loaded")
	ErrConfigAlreadyLoaded = errors.New("config already loaded")
)
