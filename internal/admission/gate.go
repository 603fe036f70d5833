// Package admission decides whether a downloaded game directory is
// playable enough to be listed in the catalog.
package admission

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/semag-arcade/game-importer/pkg/config"
)

// EnginePattern matches files that make a directory self-contained
const EnginePattern = "**/*.{js,swf,wasm,data}"

// quotedEngineRef finds quoted references to engine files
var quotedEngineRef = regexp.MustCompile(`(?i)["']([^"'\s<>]+\.(?:js|swf|wasm|data))(?:[?#][^"'\s<>]*)?["']`)

// Verdict is the result of checking a game directory
type Verdict struct {
	Valid  bool
	Reason string
}

// Gate applies the admission rules to game directories
type Gate struct {
	portal []*regexp.Regexp
	cdn    []*regexp.Regexp
}

// NewGate compiles the portal and CDN patterns. Patterns are matched
// case-insensitively against index.html.
func NewGate(cfg *config.AdmissionConfig) (*Gate, error) {
	if cfg == nil {
		cfg = config.DefaultConfig().Admission
	}

	g := &Gate{}
	for _, p := range cfg.PortalPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid portal pattern %q: %w", p, err)
		}
		g.portal = append(g.portal, re)
	}
	for _, p := range cfg.CDNPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid cdn pattern %q: %w", p, err)
		}
		g.cdn = append(g.cdn, re)
	}
	return g, nil
}

// Check inspects dir and reports whether it holds a playable game
func (g *Gate) Check(dir string) Verdict {
	content, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Verdict{Reason: "no index.html"}
		}
		return Verdict{Reason: fmt.Sprintf("unreadable index.html: %v", err)}
	}

	for _, re := range g.portal {
		if re.Match(content) {
			return Verdict{Reason: "iframe to external portal"}
		}
	}

	matches, err := doublestar.Glob(os.DirFS(dir), EnginePattern, doublestar.WithFilesOnly())
	if err == nil && len(matches) > 0 {
		return Verdict{Valid: true, Reason: "has local game files: " + matches[0]}
	}

	if ref := relativeEngineRef(content); ref != "" {
		return Verdict{Valid: true, Reason: "references local game file: " + ref}
	}

	for _, re := range g.cdn {
		if re.Match(content) {
			return Verdict{Valid: true, Reason: "uses allowed CDN"}
		}
	}

	return Verdict{Reason: "no game files or allowed CDN"}
}

// relativeEngineRef returns the first quoted engine file reference that is
// not absolute
func relativeEngineRef(content []byte) string {
	for _, m := range quotedEngineRef.FindAllSubmatch(content, -1) {
		ref := string(m[1])
		if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
			continue
		}
		return ref
	}
	return ""
}
