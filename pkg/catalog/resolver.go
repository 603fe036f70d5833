package catalog

import (
	"net/url"
	"strings"
	"sync"
)

// MinSlugLength is the shortest slug accepted before falling back to an id
const MinSlugLength = 2

// Slugify lower-cases s and collapses every run of characters outside
// [a-z0-9] into a single hyphen. Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// DeriveSlug slugifies name, falling back to "<prefix>-<id>" when the
// name produces fewer than MinSlugLength characters.
func DeriveSlug(name, fallbackPrefix, fallbackID string) string {
	slug := Slugify(name)
	if len(slug) >= MinSlugLength {
		return slug
	}
	id := Slugify(fallbackID)
	if id == "" {
		return slug
	}
	if fallbackPrefix == "" {
		return id
	}
	return Slugify(fallbackPrefix) + "-" + id
}

// URLSlug returns the lower-cased last non-empty path segment of rawURL
func URLSlug(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return strings.ToLower(seg)
		}
	}
	return ""
}

// Verdict is the outcome of checking a candidate against the catalog
type Verdict struct {
	Duplicate  bool
	MatchedKey string // the candidate key that collided
	MatchedSet string // "name", "directory" or "url"
}

// Resolver decides whether candidates are already in the catalog
type Resolver struct {
	mu             sync.Mutex
	sets           DedupSets
	fallbackPrefix string
}

// NewResolver creates a resolver over a snapshot of the catalog keys.
// fallbackPrefix is used by DeriveSlug for unusable names, e.g. "zone".
func NewResolver(sets DedupSets, fallbackPrefix string) *Resolver {
	if sets.Names == nil || sets.Directories == nil || sets.URLSlugs == nil {
		sets = NewDedupSets()
	}
	return &Resolver{sets: sets, fallbackPrefix: fallbackPrefix}
}

// Slug fills in and returns the candidate's derived slug
func (r *Resolver) Slug(c *Candidate) string {
	if c.DerivedSlug == "" {
		c.DerivedSlug = DeriveSlug(c.DisplayName, r.fallbackPrefix, c.FallbackID)
	}
	return c.DerivedSlug
}

// Check reports whether any key of the candidate (name, derived slug, URL
// slug) already appears in any of the catalog's key sets.
func (r *Resolver) Check(c *Candidate) Verdict {
	r.Slug(c)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check(c)
}

// Claim checks the candidate and, when it is novel, records its keys so a
// later candidate in the same run with an equivalent key is rejected.
func (r *Resolver) Claim(c *Candidate) Verdict {
	r.Slug(c)

	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.check(c)
	if !v.Duplicate {
		r.sets.add(c.DisplayName, c.DerivedSlug, URLSlug(c.SourceURL))
	}
	return v
}

func (r *Resolver) check(c *Candidate) Verdict {
	for _, key := range []string{c.DisplayName, c.DerivedSlug, URLSlug(c.SourceURL)} {
		if set, ok := r.sets.lookup(key); ok {
			return Verdict{Duplicate: true, MatchedKey: normalize(key), MatchedSet: set}
		}
	}
	return Verdict{}
}
