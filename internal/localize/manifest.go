package localize

import "sort"

// Asset is a remote file that was saved inside the game directory
type Asset struct {
	RemoteURL string `json:"remote_url"`
	LocalPath string `json:"local_path"` // relative to the game directory, forward slashes
	Kind      string `json:"kind"`
	Bytes     int64  `json:"bytes"`
}

// Failure is a reference that could not be downloaded and was left as is
type Failure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Manifest records what a Localize call did. It is informational only.
type Manifest struct {
	Assets   []Asset   `json:"assets"`
	External []string  `json:"external"` // allow-listed CDN references left untouched
	Failed   []Failure `json:"failed"`
}

// CountByKind returns the number of saved assets per kind
func (m *Manifest) CountByKind() map[string]int {
	counts := make(map[string]int)
	for _, a := range m.Assets {
		counts[a.Kind]++
	}
	return counts
}

// TotalBytes returns the size of everything downloaded
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for _, a := range m.Assets {
		total += a.Bytes
	}
	return total
}

// LocalPaths returns the saved paths in sorted order
func (m *Manifest) LocalPaths() []string {
	paths := make([]string, 0, len(m.Assets))
	for _, a := range m.Assets {
		paths = append(paths, a.LocalPath)
	}
	sort.Strings(paths)
	return paths
}

// HasExternal reports whether an allow-listed CDN dependency was seen
func (m *Manifest) HasExternal() bool {
	return len(m.External) > 0
}
