package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{
			name:  "valid entry",
			entry: Entry{Name: "Moto X3M", Directory: "moto-x3m", Image: DefaultImage, Source: "non-semag"},
		},
		{
			name:    "missing name",
			entry:   Entry{Directory: "moto-x3m"},
			wantErr: true,
		},
		{
			name:    "missing directory",
			entry:   Entry{Name: "Moto X3M"},
			wantErr: true,
		},
		{
			name:    "nested directory",
			entry:   Entry{Name: "Moto X3M", Directory: "a/b"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(Candidate{DerivedSlug: "moto-x3m"}, "non-semag")
	assert.Equal(t, "Moto X3m", e.Name)
	assert.Equal(t, "moto-x3m", e.Directory)
	assert.Equal(t, DefaultImage, e.Image)
	assert.Equal(t, "non-semag", e.Source)
}

func TestLoad_MissingAndEmpty(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{name: "missing file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{name: "empty file", path: func(t *testing.T) string { return writeFile(t, "") }},
		{name: "whitespace only", path: func(t *testing.T) string { return writeFile(t, " \n\t\n") }},
		{name: "empty array", path: func(t *testing.T) string { return writeFile(t, "[]") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(tt.path(t))
			require.NoError(t, err)
			assert.Equal(t, 0, c.Len())

			names, dirs, urls := c.Keys().Len()
			assert.Zero(t, names)
			assert.Zero(t, dirs)
			assert.Zero(t, urls)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	for _, content := range []string{`[{"name": "A",`, `{"name": "A"}`, `"games"`, `[{"name": 5}]`} {
		path := writeFile(t, content)
		_, err := Load(path)
		require.Error(t, err, content)

		var perr *ParseError
		require.True(t, errors.As(err, &perr), content)
		assert.Equal(t, path, perr.Path)
	}
}

func TestCatalog_Keys(t *testing.T) {
	path := writeFile(t, `[
	{"name": "Moto X3M", "directory": "moto-x3m", "image": "cover.png", "source": "non-semag"},
	{"name": "Slope", "directory": "Slope-Game", "image": "cover.png", "source": "non-semag", "gameUrl": "https://lagged.com/en/g/slope-run/"}
]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	keys := c.Keys()
	assert.Contains(t, keys.Names, "moto x3m")
	assert.Contains(t, keys.Names, "slope")
	assert.Contains(t, keys.Directories, "slope-game")
	assert.Contains(t, keys.URLSlugs, "slope-run")
	assert.Len(t, keys.URLSlugs, 1)
	assert.True(t, c.HasDirectory("MOTO-X3M"))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Moto X3M", "moto-x3m"},
		{"  Fireboy & Watergirl  ", "fireboy-watergirl"},
		{"--Already-a-slug--", "already-a-slug"},
		{"Café Tycoon 2!", "caf-tycoon-2"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Slugify(got), "slugify must be idempotent")
		})
	}
}

func TestDeriveSlug(t *testing.T) {
	assert.Equal(t, "moto-x3m", DeriveSlug("Moto X3M", "zone", "42"))
	assert.Equal(t, "zone-42", DeriveSlug("!", "zone", "42"))
	assert.Equal(t, "zone-42", DeriveSlug("", "zone", "42"))
	assert.Equal(t, "42", DeriveSlug("", "", "42"))
	assert.Equal(t, "a", DeriveSlug("A", "zone", ""))
}

func TestURLSlug(t *testing.T) {
	assert.Equal(t, "slope-run", URLSlug("https://lagged.com/en/g/Slope-Run/"))
	assert.Equal(t, "game", URLSlug("https://example.com/play/game?ref=1#top"))
	assert.Equal(t, "", URLSlug("https://example.com/"))
	assert.Equal(t, "", URLSlug(""))
}

func TestResolver_ThreeWayUnion(t *testing.T) {
	sets := NewDedupSets()
	sets.add("Moto X3M", "moto-x3m", "moto-x3m-online")
	sets.add("Slope", "slope", "")

	tests := []struct {
		name      string
		candidate Candidate
		duplicate bool
		set       string
	}{
		{
			name:      "name differs only in case",
			candidate: Candidate{DisplayName: "moto x3m"},
			duplicate: true,
			set:       "name",
		},
		{
			name:      "slug matches a directory",
			candidate: Candidate{DisplayName: "Moto-X3M!"},
			duplicate: true,
			set:       "directory",
		},
		{
			name:      "url slug matches a stored game url",
			candidate: Candidate{DisplayName: "Totally New", SourceURL: "https://lagged.com/en/g/moto-x3m-online"},
			duplicate: true,
			set:       "url",
		},
		{
			name:      "url slug matches a directory",
			candidate: Candidate{DisplayName: "Another Game", SourceURL: "https://lagged.com/en/g/slope"},
			duplicate: true,
		},
		{
			name:      "novel candidate",
			candidate: Candidate{DisplayName: "Drift Boss", SourceURL: "https://lagged.com/en/g/drift-boss"},
			duplicate: false,
		},
	}

	r := NewResolver(sets, "zone")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.candidate
			v := r.Check(&c)
			assert.Equal(t, tt.duplicate, v.Duplicate)
			if tt.set != "" {
				assert.Equal(t, tt.set, v.MatchedSet)
			}
			assert.NotEmpty(t, c.DerivedSlug)
		})
	}
}

func TestResolver_ClaimWithinRun(t *testing.T) {
	r := NewResolver(NewDedupSets(), "")

	first := Candidate{DisplayName: "Drift Boss"}
	second := Candidate{DisplayName: "DRIFT BOSS"}

	assert.False(t, r.Claim(&first).Duplicate)
	v := r.Claim(&second)
	assert.True(t, v.Duplicate)
	assert.Equal(t, "drift boss", v.MatchedKey)

	// Check does not record keys
	candidate := Candidate{DisplayName: "Stickman Hook"}
	assert.False(t, r.Check(&candidate).Duplicate)
	assert.False(t, r.Check(&candidate).Duplicate)
}

func TestCatalog_AddRejectsDuplicateDirectory(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Entry{Name: "A", Directory: "game-a", Image: DefaultImage, Source: "non-semag"}))

	err := c.Add(
		Entry{Name: "A again", Directory: "GAME-A", Image: DefaultImage, Source: "non-semag"},
		Entry{Name: "B", Directory: "game-b", Image: DefaultImage, Source: "non-semag"},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateDirectory))

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "game-a", entries[0].Directory)
	assert.Equal(t, "game-b", entries[1].Directory)
}

func TestCatalog_SaveRoundTrip(t *testing.T) {
	path := writeFile(t, `[{"name":"Ölspiel <3","directory":"olspiel","image":"cover.png","source":"non-semag","imagePath":"covers/x.png","rating":4.5}]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Add(Entry{Name: "Café & Co", Directory: "cafe-co", Image: DefaultImage, Source: "non-semag"}))
	require.NoError(t, c.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	// Tab indentation, no HTML escaping, no trailing newline
	assert.True(t, strings.HasPrefix(text, "[\n\t{\n\t\t\"name\": \"Ölspiel <3\""), text)
	assert.Contains(t, text, `"name": "Café & Co"`)
	assert.NotContains(t, text, `\u0026`)
	assert.NotContains(t, text, `\u003c`)
	assert.False(t, strings.HasSuffix(text, "\n"))

	// Unknown keys survive in their original order
	assert.Contains(t, text, "\"imagePath\": \"covers/x.png\",\n\t\t\"rating\": 4.5")

	// New entries use the fixed key order and omit an empty gameUrl
	assert.Regexp(t, `(?s)"name": "Café & Co",\s+"directory": "cafe-co",\s+"image": "cover.png",\s+"source": "non-semag"\s+}`, text)
	assert.NotContains(t, text, "gameUrl")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.Entries(), reloaded.Entries())

	// No temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
