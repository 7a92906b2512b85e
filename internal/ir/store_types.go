package ir

// NOTE: These are store-layer types, not part of the record model.

// Conversion represents one logged record conversion.
type Conversion struct {
	ID            string    `json:"id"`        // Content-addressed, see ConversionID
	RunToken      string    `json:"run_token"` // One token per CLI invocation
	Seq           int64     `json:"seq"`       // Position within the run
	Direction     Direction `json:"direction"`
	Input         *Record   `json:"input"`
	Output        *Record   `json:"output"`
	Missing       []string  `json:"missing,omitempty"` // Keys skipped for lack of a rule
	RulesHash     string    `json:"rules_hash"`        // Hash of the loaded rule set
	EngineVersion string    `json:"engine_version"`
	IRVersion     string    `json:"ir_version"`
}
