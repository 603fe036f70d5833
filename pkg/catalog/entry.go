// Package catalog reads, deduplicates and rewrites the shared games.json list.
package catalog

import (
	"fmt"
	"strings"
)

// DefaultImage is the cover filename written next to each game's index.html
const DefaultImage = "cover.png"

// Entry is one game in games.json. Field order is the on-disk key order.
type Entry struct {
	Name      string `json:"name"`
	Directory string `json:"directory"`          // slug, unique case-insensitively
	Image     string `json:"image"`              // filename relative to the directory
	Source    string `json:"source"`             // origin tag, e.g. "non-semag"
	GameURL   string `json:"gameUrl,omitempty"` // remote page for externally hosted games
}

// Validate checks if the entry has required fields
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if strings.TrimSpace(e.Directory) == "" {
		return fmt.Errorf("entry directory cannot be empty")
	}
	if strings.ContainsAny(e.Directory, `/\`) {
		return fmt.Errorf("entry directory %q must be a single path segment", e.Directory)
	}
	return nil
}

// Candidate is a game discovered during a crawl that has not been accepted yet
type Candidate struct {
	DisplayName string
	SourceURL   string

	// FallbackID is a site-specific identifier (such as a gn-math zone id)
	// used when the display name yields no usable slug.
	FallbackID string

	// DerivedSlug is filled in by the Resolver
	DerivedSlug string
}

// NewEntry promotes an accepted candidate to a catalog entry
func NewEntry(c Candidate, source string) Entry {
	name := strings.TrimSpace(c.DisplayName)
	if name == "" {
		name = TitleFromSlug(c.DerivedSlug)
	}
	return Entry{
		Name:      name,
		Directory: c.DerivedSlug,
		Image:     DefaultImage,
		Source:    source,
	}
}

// TitleFromSlug turns "moto-x3m" into "Moto X3m"
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
