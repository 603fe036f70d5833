package extractor

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Asset kinds double as the subdirectory a localized file is stored under
const (
	KindScripts     = "scripts"
	KindStylesheets = "stylesheets"
	KindImages      = "images"
	KindData        = "data"
	KindOther       = "other"
)

// AssetRef is a reference found inside inline script or style text.
// Start and End are byte offsets of the reference itself, without quotes.
type AssetRef struct {
	Value string
	Start int
	End   int
}

var (
	quotedAssetPattern = regexp.MustCompile(`["'\x60]([^"'\x60\s<>]+?\.(?:js|css|png|jpe?g|gif|webp|svg|json|wasm|data|br|woff2?|ttf|swf)(?:[?#][^"'\x60\s<>]*)?)["'\x60]`)
	cssURLPattern      = regexp.MustCompile(`url\(\s*["']?([^"')\s]+)["']?\s*\)`)
)

// ScanAssetRefs finds asset-looking references in JavaScript or CSS text:
// quoted strings ending in a known extension and every url(...) target.
// Results are ordered by offset and never overlap.
func ScanAssetRefs(text string) []AssetRef {
	var refs []AssetRef
	seen := make(map[int]bool)

	for _, pattern := range []*regexp.Regexp{quotedAssetPattern, cssURLPattern} {
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if start < 0 || seen[start] {
				continue
			}
			seen[start] = true
			refs = append(refs, AssetRef{Value: text[start:end], Start: start, End: end})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Start < refs[j].Start })

	// drop anything nested inside an earlier match
	out := refs[:0]
	lastEnd := -1
	for _, r := range refs {
		if r.Start < lastEnd {
			continue
		}
		out = append(out, r)
		lastEnd = r.End
	}
	return out
}

// KindForPath maps a URL path to an asset kind by extension
func KindForPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs":
		return KindScripts
	case ".css":
		return KindStylesheets
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico":
		return KindImages
	case ".json", ".wasm", ".data", ".br", ".swf", ".unityweb":
		return KindData
	default:
		return KindOther
	}
}

// KindForTag maps the element a reference was found on to an asset kind.
// An empty result means the kind is decided by extension.
func KindForTag(tag, rel string) string {
	switch tag {
	case "script":
		return KindScripts
	case "link":
		rel = strings.ToLower(rel)
		if strings.Contains(rel, "stylesheet") {
			return KindStylesheets
		}
		if strings.Contains(rel, "icon") {
			return KindImages
		}
	case "img":
		return KindImages
	case "iframe":
		return KindOther
	}
	return ""
}

// IsSkippableRef reports references that never point at a downloadable file
func IsSkippableRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return true
	}
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"data:", "blob:", "javascript:", "about:", "mailto:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
