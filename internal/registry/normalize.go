// Package registry maintains the catalog of language definitions.
// It maps raw language identifiers (aliases, mixed case) to canonical ids and
// merges engine built-ins with user plugins into a single ordered view.
package registry

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical is the normalized form of a language identifier.
type Canonical struct {
	ID          string
	DisplayName string
}

// aliases maps case-folded identifiers to their canonical form.
var aliases = map[string]Canonical{
	"c":          {ID: "c", DisplayName: "C"},
	"cpp":        {ID: "cpp", DisplayName: "C++"},
	"c++":        {ID: "cpp", DisplayName: "C++"},
	"java":       {ID: "java", DisplayName: "Java"},
	"js":         {ID: "js", DisplayName: "JavaScript"},
	"javascript": {ID: "js", DisplayName: "JavaScript"},
	"py":         {ID: "python", DisplayName: "Python"},
	"python":     {ID: "python", DisplayName: "Python"},
}

// Normalize maps a raw identifier to its canonical id and display name.
// Lookup is case-insensitive. Unknown identifiers are lowercased and keep
// the raw text as display name.
func Normalize(rawID string) Canonical {
	// Casers are stateful, so build fresh ones per call.
	if c, ok := aliases[cases.Fold().String(rawID)]; ok {
		return c
	}
	return Canonical{
		ID:          cases.Lower(language.Und).String(rawID),
		DisplayName: rawID,
	}
}

// NormalizeID is Normalize(rawID).ID.
func NormalizeID(rawID string) string {
	return Normalize(rawID).ID
}

// IsAlias reports whether rawID matches an entry of the normalization table.
func IsAlias(rawID string) bool {
	_, ok := aliases[cases.Fold().String(rawID)]
	return ok
}
