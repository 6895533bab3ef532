package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Direction selects the traversal order of a migration run.
type Direction int

const (
	DirUp Direction = iota
	DirDown
)

func (d Direction) String() string {
	if d == DirDown {
		return "down"
	}
	return "up"
}

var (
	// ErrDiscovery wraps failures to enumerate the migrations directory.
	ErrDiscovery = errors.New("cannot read migrations directory")
	// ErrParse wraps filenames whose revision prefix is not numeric.
	ErrParse = errors.New("unparsable revision prefix")
	// ErrLoad wraps script bodies that cannot be read or parsed. It is
	// surfaced lazily, on first Load, so a broken file blocks a run
	// instead of being skipped during discovery.
	ErrLoad = errors.New("migration script failed to load")
)

// Migration is the parsed identity of one migration file. Identity fields
// are immutable after discovery; the script body is read and parsed lazily
// on first use and cached.
type Migration struct {
	Revision int64
	Name     string // filename without extension; key in the tracking store
	Filename string
	Path     string // display path

	fsys   fs.FS
	fsPath string

	loaded  bool
	raw     []byte
	script  *Script
	loadErr error
}

func (m *Migration) load() {
	if m.loaded {
		return
	}
	m.loaded = true
	b, err := fs.ReadFile(m.fsys, m.fsPath)
	if err != nil {
		m.loadErr = fmt.Errorf("%w: %s: %v", ErrLoad, m.Filename, err)
		return
	}
	m.raw = b
	s, err := parseScript(b)
	if err != nil {
		m.loadErr = fmt.Errorf("%w: %s: %v", ErrLoad, m.Filename, err)
		return
	}
	m.script = s
}

// Load returns the parsed script body, reading the file on first call.
func (m *Migration) Load() (*Script, error) {
	m.load()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.script, nil
}

// Raw returns the unparsed script bytes. Unlike Load it succeeds even when
// the body has no valid sections, as long as the file itself is readable.
func (m *Migration) Raw() ([]byte, error) {
	m.load()
	if m.raw == nil {
		return nil, m.loadErr
	}
	return m.raw, nil
}

// Catalog holds all discovered migrations, sorted ascending by revision
// with filename as the tie-break.
type Catalog struct {
	migrations []*Migration
}

// Load scans a directory on disk for migration files.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	return build(entries, os.DirFS(dir), func(name string) (string, string) {
		return name, filepath.Join(dir, name)
	})
}

// LoadFS scans a logical root inside an fs.FS, e.g. an embed.FS shipped
// with the application binary.
func LoadFS(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	return build(entries, fsys, func(name string) (string, string) {
		p := path.Join(root, name)
		return p, p
	})
}

func build(entries []fs.DirEntry, fsys fs.FS, paths func(name string) (fsPath, display string)) (*Catalog, error) {
	var migs []*Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".sql") {
			continue
		}
		base := strings.TrimSuffix(name, ".sql")
		head, _, _ := strings.Cut(base, "-")
		rev, err := strconv.ParseInt(head, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrParse, name)
		}
		fsPath, display := paths(name)
		migs = append(migs, &Migration{
			Revision: rev,
			Name:     base,
			Filename: name,
			Path:     display,
			fsys:     fsys,
			fsPath:   fsPath,
		})
	}
	sort.SliceStable(migs, func(i, j int) bool {
		if migs[i].Revision != migs[j].Revision {
			return migs[i].Revision < migs[j].Revision
		}
		return migs[i].Filename < migs[j].Filename
	})
	return &Catalog{migrations: migs}, nil
}

// Ordered returns the migrations in execution order for the given
// direction: ascending by revision for up, descending for down.
func (c *Catalog) Ordered(dir Direction) []*Migration {
	out := make([]*Migration, len(c.migrations))
	copy(out, c.migrations)
	if dir == DirDown {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// ByRevision returns the first migration with the exact revision, or nil.
func (c *Catalog) ByRevision(rev int64) *Migration {
	for _, m := range c.migrations {
		if m.Revision == rev {
			return m
		}
	}
	return nil
}

// ByName returns the migration with the given name, or nil.
func (c *Catalog) ByName(name string) *Migration {
	for _, m := range c.migrations {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Len reports the number of discovered migrations.
func (c *Catalog) Len() int { return len(c.migrations) }
