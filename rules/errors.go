//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StdErrorsNew flags errors.New with a string argument. Application code
// imports the internal errors package, whose New wraps an error and whose
// NewStd declares sentinels.
//
//	var ErrX = errors.New("x")    // flagged
//	var ErrX = errors.NewStd("x")
func StdErrorsNew(m dsl.Matcher) {
	m.Match(`errors.New($s)`).
		Where(m["s"].Type.Is("string")).
		Report("use errors.NewStd($s) from the internal errors package")
}

// BareFmtErrorf flags errors built with fmt.Errorf and returned from the
// engine or datastore without category or component.
func BareFmtErrorf(m dsl.Matcher) {
	m.Match(`return fmt.Errorf($*_)`, `return $_, fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/(baseline|datastore)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("wrap with errors.New(...).Component(...).Category(...).Build() so the error is categorized")
}
