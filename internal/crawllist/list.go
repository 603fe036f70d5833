// Package crawllist reads and writes the per-site crawl result files
// (for example lagged-games-list.json) that feed the setup commands.
package crawllist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Record is one crawled game page
type Record struct {
	URL     string `json:"url"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	PlayURL string `json:"play_url,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// OK reports whether the crawl of this page succeeded
func (r Record) OK() bool {
	return r.Status == StatusSuccess
}

// Summary counts records by status
type Summary struct {
	Success int `json:"success"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// Summarize counts records by status
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case StatusSuccess:
			s.Success++
		case StatusError:
			s.Error++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Successful returns the records whose crawl succeeded, in order
func Successful(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Load reads a crawl list file
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crawl list %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse crawl list %s: %w", path, err)
	}
	return records, nil
}

// Save writes records with two-space indentation
func Save(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	return WriteJSON(path, records)
}

// WriteJSON writes v as two-space indented JSON without HTML escaping,
// creating parent directories
func WriteJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
