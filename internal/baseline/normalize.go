package baseline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizeClass trims a detection class label and, when configured, folds it
// to lower case so that "Person" and "person" share a baseline.
func (e *Engine) normalizeClass(class string) string {
	class = strings.TrimSpace(class)
	if !e.cfg.NormalizeClasses {
		return class
	}
	// a Caser holds state and must not be shared between goroutines
	return cases.Lower(language.Und).String(class)
}
