package baseline

import "testing"

// ResetForTesting empties the engine's summary cache. It panics when called
// outside a test binary.
func ResetForTesting(e *Engine) {
	if !testing.Testing() {
		panic("baseline: ResetForTesting called outside of a test")
	}
	e.generations.bumpAll()
	if e.summaries != nil {
		e.summaries.Flush()
	}
}
