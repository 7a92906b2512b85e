package ir

// Version constants for the record wire shape and the engine.
const (
	// IRVersion is the record wire shape version.
	IRVersion = "1"

	// EngineVersion is the marcshift engine version.
	EngineVersion = "0.1.0"
)
