// Package detect guesses the language of a source file and maps it onto
// catalog ids.
package detect

import (
	"github.com/go-enry/go-enry/v2"

	"github.com/leapstack-labs/polylex/internal/registry"
)

// Language detects the language of a file from its name and, when the
// extension is ambiguous, its content. The result is normalized, so "C++"
// comes back as "cpp". ok is false when nothing could be detected.
func Language(filename string, content []byte) (registry.Canonical, bool) {
	name, safe := enry.GetLanguageByExtension(filename)
	if !safe || name == "" {
		name = enry.GetLanguage(filename, content)
	}
	if name == "" {
		return registry.Canonical{}, false
	}
	return registry.Normalize(name), true
}
