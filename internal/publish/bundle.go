// Package publish copies the site into a deployable output directory,
// leaving out build tooling and files the host will not accept.
package publish

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// DefaultMaxFileSize is the largest file Cloudflare Pages accepts
const DefaultMaxFileSize = 25 * 1024 * 1024

// DefaultIgnore are top-level and nested names never copied
var DefaultIgnore = []string{"node_modules", ".git", "dist", "scripts"}

// Options controls a build
type Options struct {
	MaxFileSize int64    // zero means DefaultMaxFileSize
	Exclude     []string // doublestar globs relative to root, e.g. non-semag/EscapeRoad*/**
	Ignore      []string // directory and file names skipped at any depth
}

// DefaultOptions returns the options used by pages-build
func DefaultOptions() Options {
	return Options{
		MaxFileSize: DefaultMaxFileSize,
		Ignore:      append([]string(nil), DefaultIgnore...),
	}
}

// SkippedFile is a file left out because of its size
type SkippedFile struct {
	Path string
	Size int64
}

// Report lists what a build copied and what it left out
type Report struct {
	Copied   int
	Bytes    int64
	Oversize []SkippedFile
	Excluded []string
}

// Build replaces out with a copy of root filtered by opts
func Build(root, out string, opts Options) (*Report, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return nil, err
	}
	if absOut == absRoot || strings.HasPrefix(absRoot, absOut+string(filepath.Separator)) {
		return nil, fmt.Errorf("output %s would overwrite the site root", out)
	}

	if err := os.RemoveAll(absOut); err != nil {
		return nil, fmt.Errorf("clear output: %w", err)
	}
	if err := os.MkdirAll(absOut, 0755); err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	ignore := make(map[string]bool, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignore[name] = true
	}

	report := &Report{}
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == absRoot {
			return nil
		}
		if p == absOut {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		slashRel := filepath.ToSlash(rel)

		if ignore[d.Name()] || excluded(opts.Exclude, slashRel) {
			report.Excluded = append(report.Excluded, slashRel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(absOut, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			log.Warn().
				Str("path", slashRel).
				Int64("bytes", info.Size()).
				Msg("File too large for deploy, skipping")
			report.Oversize = append(report.Oversize, SkippedFile{Path: slashRel, Size: info.Size()})
			return nil
		}

		if err := copyFile(p, target, info.Mode().Perm()); err != nil {
			return err
		}
		report.Copied++
		report.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return report, err
	}

	log.Info().
		Str("out", out).
		Int("copied", report.Copied).
		Int("oversize", len(report.Oversize)).
		Int("excluded", len(report.Excluded)).
		Msg("Site bundle written")

	return report, nil
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
