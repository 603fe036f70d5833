package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDuplicateDirectory is returned by Add when the directory is already taken
var ErrDuplicateDirectory = errors.New("duplicate directory")

// Add appends entries in call order. Invalid or duplicate entries are left
// out and reported in the joined error; the rest are still added.
func (c *Catalog) Add(entries ...Entry) error {
	var errs []error
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if c.HasDirectory(e.Directory) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateDirectory, e.Directory))
			continue
		}
		c.dirs[normalize(e.Directory)] = struct{}{}
		c.records = append(c.records, record{entry: e})
	}
	return errors.Join(errs...)
}

// Marshal encodes the catalog with tab indentation and without HTML
// escaping. Records loaded from disk keep their original keys.
func (c *Catalog) Marshal() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(c.records))
	for _, r := range c.records {
		if r.raw != nil {
			items = append(items, r.raw)
			continue
		}
		raw, err := encode(r.entry)
		if err != nil {
			return nil, fmt.Errorf("encode entry %s: %w", r.entry.Directory, err)
		}
		items = append(items, raw)
	}

	data, err := encode(items)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "\t"); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Save writes the catalog to path through a temp file and rename
func (c *Catalog) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".games-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace catalog %s: %w", path, err)
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
