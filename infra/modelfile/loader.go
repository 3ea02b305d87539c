package modelfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/utilcast/core/logger"
	"github.com/kilianp07/utilcast/core/registry"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Config locates the artifact directory.
type Config struct {
	Dir string `json:"dir"`
}

func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "models"
	}
}

// Loader reads artifacts from a directory.
type Loader struct {
	fsys fs.FS
	dir  string
	log  logger.Logger
}

// NewLoader returns a Loader reading from dir.
func NewLoader(dir string, log logger.Logger) *Loader {
	return NewFSLoader(os.DirFS(dir), dir, log)
}

// NewFSLoader returns a Loader reading from fsys. dir is only used in messages.
func NewFSLoader(fsys fs.FS, dir string, log logger.Logger) *Loader {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Loader{fsys: fsys, dir: dir, log: log}
}

// Load parses and validates the artifact called name.
func (l *Loader) Load(_ context.Context, name string) (registry.Handle, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", registry.ErrModelNotFound, name)
	}
	for _, ext := range extensions {
		data, err := fs.ReadFile(l.fsys, name+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read model %s: %w", name, err)
		}
		var a Artifact
		if ext == ".json" {
			err = json.Unmarshal(data, &a)
		} else {
			err = yaml.Unmarshal(data, &a)
		}
		if err != nil {
			return nil, fmt.Errorf("decode model %s: %w", name, err)
		}
		m, err := a.build(name)
		if err != nil {
			return nil, err
		}
		l.log.Debugf("loaded %s model %s from %s", a.Kind, name, filepath.Join(l.dir, name+ext))
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrModelNotFound, filepath.Join(l.dir, name))
}

// List returns the artifact names found in the directory.
func (l *Loader) List(context.Context) ([]string, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list models in %s: %w", l.dir, err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(extensions, ext) {
			continue
		}
		n := strings.TrimSuffix(e.Name(), ext)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names, nil
}
