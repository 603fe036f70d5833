package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ParseError is returned when an existing catalog file cannot be decoded.
// Callers must abort instead of overwriting the file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse catalog %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// record keeps the original bytes of an entry so fields this package does
// not know about survive a rewrite.
type record struct {
	raw   json.RawMessage
	entry Entry
}

// Catalog is the in-memory games list for a single run
type Catalog struct {
	records []record
	dirs    map[string]struct{}
}

// DedupSets holds the normalized lookup keys of an existing catalog
type DedupSets struct {
	Names       map[string]struct{}
	Directories map[string]struct{}
	URLSlugs    map[string]struct{}
}

// New returns an empty catalog
func New() *Catalog {
	return &Catalog{dirs: make(map[string]struct{})}
}

// Load reads the catalog at path. A missing or empty file yields an empty
// catalog; malformed JSON yields a *ParseError.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes catalog bytes; path is only used in error messages
func Parse(path string, data []byte) (*Catalog, error) {
	c := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	c.records = make([]record, 0, len(raws))
	for i, raw := range raws {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		c.records = append(c.records, record{raw: raw, entry: e})
		if key := normalize(e.Directory); key != "" {
			c.dirs[key] = struct{}{}
		}
	}
	return c, nil
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.records)
}

// Entries returns a copy of the decoded entries in file order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.records))
	for i, r := range c.records {
		out[i] = r.entry
	}
	return out
}

// HasDirectory reports whether a directory slug is already taken
func (c *Catalog) HasDirectory(dir string) bool {
	_, ok := c.dirs[normalize(dir)]
	return ok
}

// Keys builds the three dedup sets: names, directory slugs, and the last
// path segment of every stored game URL.
func (c *Catalog) Keys() DedupSets {
	sets := NewDedupSets()
	for _, r := range c.records {
		sets.add(r.entry.Name, r.entry.Directory, URLSlug(r.entry.GameURL))
	}
	return sets
}

// NewDedupSets returns empty sets
func NewDedupSets() DedupSets {
	return DedupSets{
		Names:       make(map[string]struct{}),
		Directories: make(map[string]struct{}),
		URLSlugs:    make(map[string]struct{}),
	}
}

// Len returns the sizes of the three sets
func (s DedupSets) Len() (names, dirs, urls int) {
	return len(s.Names), len(s.Directories), len(s.URLSlugs)
}

func (s DedupSets) add(name, dir, urlSlug string) {
	if k := normalize(name); k != "" {
		s.Names[k] = struct{}{}
	}
	if k := normalize(dir); k != "" {
		s.Directories[k] = struct{}{}
	}
	if k := normalize(urlSlug); k != "" {
		s.URLSlugs[k] = struct{}{}
	}
}

// lookup reports which set, if any, contains the key
func (s DedupSets) lookup(key string) (string, bool) {
	key = normalize(key)
	if key == "" {
		return "", false
	}
	if _, ok := s.Names[key]; ok {
		return "name", true
	}
	if _, ok := s.Directories[key]; ok {
		return "directory", true
	}
	if _, ok := s.URLSlugs[key]; ok {
		return "url", true
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
