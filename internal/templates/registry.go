// Package templates discovers overlay templates on disk and answers
// validation questions about them.
//
// A template is a folder directly under the templates root:
//
//	templates/
//	  default/
//	    template.html   required markup
//	    style.css       required stylesheet
//	    characters.json optional {"characters": [...]} selection list
//	    ...             free-form asset subfolders
//
// The folder name is the template's identifier. This layout is the contract
// template authors depend on.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"
)

const (
	markupFile     = "template.html"
	styleFile      = "style.css"
	charactersFile = "characters.json"
)

var ErrNotFound = errors.New("template not found")

// Descriptor is the immutable metadata for one discovered template.
type Descriptor struct {
	ID         string   `json:"id"`
	Dir        string   `json:"-"`
	Markup     string   `json:"-"`
	Style      string   `json:"-"`
	Characters []string `json:"characters"`
}

// Registry scans the templates root and caches descriptors. Scans replace
// the whole cache atomically; readers always see a consistent set.
type Registry struct {
	root string
	log  *zap.Logger

	mu   sync.RWMutex
	byID map[string]Descriptor
	ids  []string
}

func NewRegistry(root string, logger *zap.Logger) *Registry {
	return &Registry{
		root: root,
		log:  logger,
		byID: map[string]Descriptor{},
	}
}

// Rescan walks the root one level deep and rebuilds the descriptor set.
// Folders missing a required file are skipped: half-finished templates are
// normal while authors iterate. A missing root yields an empty registry so
// the engine still starts.
func (r *Registry) Rescan() error {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("templates root missing", zap.String("root", r.root))
			r.swap(map[string]Descriptor{})
			return nil
		}
		return fmt.Errorf("reading templates root: %w", err)
	}

	found := map[string]Descriptor{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc, err := r.loadDescriptor(entry.Name())
		if err != nil {
			r.log.Debug("skipping template folder",
				zap.String("template", entry.Name()),
				zap.Error(err))
			continue
		}
		found[desc.ID] = desc
	}

	r.swap(found)
	r.log.Info("templates scanned",
		zap.Int("count", len(found)),
		zap.Strings("templates", r.List()))
	return nil
}

func (r *Registry) loadDescriptor(name string) (Descriptor, error) {
	dir := filepath.Join(r.root, name)
	markup := filepath.Join(dir, markupFile)
	style := filepath.Join(dir, styleFile)

	for _, required := range []string{markup, style} {
		if _, err := os.Stat(required); err != nil {
			return Descriptor{}, fmt.Errorf("missing %s", filepath.Base(required))
		}
	}

	chars, err := readCharacters(filepath.Join(dir, charactersFile))
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		ID:         name,
		Dir:        dir,
		Markup:     markup,
		Style:      style,
		Characters: chars,
	}, nil
}

// readCharacters parses the optional character list. Absence is fine (a
// plain scoreboard has no roster); a file that exists but does not parse
// marks the whole template malformed.
func readCharacters(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", charactersFile, err)
	}

	var doc struct {
		Characters []string `json:"characters"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", charactersFile, err)
	}
	return doc.Characters, nil
}

func (r *Registry) swap(found map[string]Descriptor) {
	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	r.mu.Lock()
	r.byID = found
	r.ids = ids
	r.mu.Unlock()
}

// List returns the discovered template ids sorted by folder name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}

// Descriptors returns all descriptors sorted by folder name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Get looks up one descriptor by id.
func (r *Registry) Get(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.byID[id]
	if !ok {
		return Descriptor{}, ErrNotFound
	}
	return desc, nil
}

// HasTemplate implements match.Catalog.
func (r *Registry) HasTemplate(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// HasCharacter implements match.Catalog.
func (r *Registry) HasCharacter(templateID, characterID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.byID[templateID]
	if !ok {
		return false
	}
	return slices.Contains(desc.Characters, characterID)
}
