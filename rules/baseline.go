//go:build ruleguard

// Package gorules contains ruleguard checks run through golangci-lint.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// EngineClock flags direct wall clock reads in the baseline package. Decay is
// computed against the engine's Clock so tests can pin and step time.
//
//	now := time.Now()   // flagged
//	now := e.clock.Now()
func EngineClock(m dsl.Matcher) {
	m.Match(`time.Now()`, `time.Since($_)`, `time.Until($_)`).
		Where(m.File().PkgPath.Matches(`/internal/baseline$`) &&
			!m.File().Name.Matches(`^clock\.go$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("read time through the engine Clock, not the wall clock")
}

// DecayPow flags hand-written decay weights outside Config.Decay, which also
// applies the window cutoff and clamps negative elapsed time.
func DecayPow(m dsl.Matcher) {
	m.Match(`math.Pow($cfg.DecayFactor, $_)`).
		Where(!m.File().Name.Matches(`^config\.go$`)).
		Report("use Config.Decay instead of math.Pow on DecayFactor")
}
