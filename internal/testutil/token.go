package testutil

// FixedRunToken generates the same run token every time.
//
// Unlike store.FixedGenerator, which returns tokens in sequence, this
// generator never runs out. The harness uses it so that every case of a
// scenario logs under the token the scenario declares, which keeps
// golden conversion logs byte-identical across runs.
type FixedRunToken struct {
	token string
}

// NewFixedRunToken creates a fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "test-run-0001"
//
// If token is empty, Generate() returns "test-run-default".
func NewFixedRunToken(token string) *FixedRunToken {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedRunToken{token: token}
}

// Generate returns the fixed run token.
func (g *FixedRunToken) Generate() string {
	return g.token
}
