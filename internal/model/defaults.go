package model

import "time"

// Shared defaults used by the engine, the CLI and the live view.
const (
	DefaultWindow            = 10 * time.Second
	DefaultTopN              = 5
	DefaultRefreshInterval   = 200 * time.Millisecond
	DefaultSuppressThreshold = 20
	DefaultRootFolderName    = "GameData"
)
