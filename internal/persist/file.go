// Package persist reads and writes the single JSON document that survives
// restarts: the listen port, the last version, and the match state.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fgcaster/overlay/internal/match"
)

const DefaultPort = 8008

// ErrCorruptState marks a data file that exists but does not parse. The
// caller gets defaults alongside it and decides whether to carry on.
var ErrCorruptState = errors.New("corrupt state file")

// Document is the on-disk shape. Port lives here rather than in match.State
// because it configures the process, not the broadcast.
type Document struct {
	Port    int         `json:"port"`
	Version int         `json:"version"`
	State   match.State `json:"state"`
}

func DefaultDocument() Document {
	return Document{Port: DefaultPort, State: match.DefaultState()}
}

// File loads and saves one Document at a fixed path.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads the document. A missing file is a normal first run and returns
// defaults with no error. A file that will not parse returns defaults and
// ErrCorruptState; the next save overwrites it.
//
// Unmarshalling into a default document means fields absent from older files
// keep their default values.
func (f *File) Load() (Document, error) {
	doc := DefaultDocument()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading %s: %w", f.path, err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return DefaultDocument(), fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if doc.Port < 1 || doc.Port > 65535 {
		doc.Port = DefaultPort
	}
	if doc.Version < 0 {
		doc.Version = 0
	}
	if doc.State.ActiveTemplate == "" {
		doc.State.ActiveTemplate = match.DefaultTemplateID
	}
	return doc, nil
}

// Save writes the document atomically: temp file in the same directory,
// fsync, then rename over the target. A crash mid-save leaves the previous
// file intact.
func (f *File) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
