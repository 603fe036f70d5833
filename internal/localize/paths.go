package localize

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Allocator hands out kind/basename paths inside a game directory. A name
// already claimed by a different URL gets -N before its extension.
type Allocator struct {
	taken map[string]string // local path -> remote URL
}

// NewAllocator returns an empty allocator
func NewAllocator() *Allocator {
	return &Allocator{taken: make(map[string]string)}
}

// Reserve marks localPath as used by remote
func (a *Allocator) Reserve(localPath, remote string) {
	a.taken[localPath] = remote
}

// Release frees a path, e.g. after its download failed
func (a *Allocator) Release(localPath string) {
	delete(a.taken, localPath)
}

// Allocate returns the local path for u under kind. The same URL always
// gets the same path.
func (a *Allocator) Allocate(kind string, u *url.URL) string {
	remote := u.String()
	name := safeName(u)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := kind + "/" + name
	for i := 1; ; i++ {
		owner, used := a.taken[candidate]
		if !used || owner == remote {
			break
		}
		candidate = fmt.Sprintf("%s/%s-%d%s", kind, stem, i, ext)
	}
	a.taken[candidate] = remote
	return candidate
}

func safeName(u *url.URL) string {
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), ".")
	if name == "" || name == "_" {
		return "asset"
	}
	return name
}

// Excludes reports whether rawURL contains one of the Exclude substrings
func (o Options) Excludes(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, pattern := range o.Exclude {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
