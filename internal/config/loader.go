package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

// Source records where a config value came from.
type Source struct {
	Kind   SourceKind
	Name   string // env variable or default name
	File   string
	Line   int
	Column int
}

func (s Source) position() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

type LoadResult struct {
	Config *Config
	// Sources maps a dotted YAML path to the layer that last set it.
	Sources map[string]Source
	// Files lists every file read, includes before their parent.
	Files []string
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "focusmute", "config.yaml"), nil
}

// Load reads ~/.config/focusmute/config.yaml plus environment overrides and
// returns the validated effective config.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources is Load with per-path source information for `config explain`.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath layers defaults, path with its includes, and FOCUSMUTE_*
// variables, in that order. A missing path is not an error.
func LoadFromPath(path string) (*LoadResult, error) {
	fl := &fileLoader{
		done:    make(map[string]bool),
		sources: make(map[string]Source),
	}

	var raw RawConfig
	switch _, err := os.Stat(path); {
	case err == nil:
		if raw, err = fl.load(path); err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	envRaw, envSources, err := loadEnv()
	if err != nil {
		return nil, err
	}
	raw = raw.merge(envRaw)
	for key, src := range envSources {
		fl.sources[key] = src
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, withSource(err, fl.sources)
	}

	return &LoadResult{Config: cfg, Sources: fl.sources, Files: fl.files}, nil
}

// fileLoader walks a config file and its includes depth first.
type fileLoader struct {
	done    map[string]bool
	chain   []string
	sources map[string]Source
	files   []string
}

func (fl *fileLoader) load(path string) (RawConfig, error) {
	file := resolveFile(path)
	if slices.Contains(fl.chain, file) {
		return RawConfig{}, fmt.Errorf("include cycle detected: %s -> %s", strings.Join(fl.chain, " -> "), file)
	}
	if fl.done[file] {
		return RawConfig{}, nil
	}
	fl.done[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return RawConfig{}, fmt.Errorf("%s: failed to read: %w", file, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawConfig{}, fmt.Errorf("%s: failed to parse yaml: %w", file, err)
	}
	var own RawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&own); err != nil && err != io.EOF {
		return RawConfig{}, fmt.Errorf("%s: %w", file, err)
	}

	root := documentRoot(&doc)
	fl.chain = append(fl.chain, file)
	defer func() { fl.chain = fl.chain[:len(fl.chain)-1] }()

	// Included files are applied first so the including file wins.
	var merged RawConfig
	for _, inc := range includeNodes(root) {
		src := fileSource(file, inc)
		targets, err := includeTargets(file, inc.Value)
		if err != nil {
			return RawConfig{}, fmt.Errorf("%s: include %q: %w", src.position(), inc.Value, err)
		}
		for _, target := range targets {
			incRaw, err := fl.load(target)
			if err != nil {
				return RawConfig{}, err
			}
			merged = merged.merge(incRaw)
		}
	}

	recordSources(root, file, "", fl.sources)
	fl.files = append(fl.files, file)
	return merged.merge(own), nil
}

// resolveFile returns the absolute, symlink-free form of path when it can be
// determined, and the absolute form otherwise.
func resolveFile(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// includeTargets expands one include entry. A directory yields its *.yaml
// and *.yml files in lexical order.
func includeTargets(fromFile, include string) ([]string, error) {
	if include == "" {
		return nil, errors.New("path is empty")
	}
	path := expandHome(include)
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(fromFile), path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			if !ent.IsDir() {
				out = append(out, filepath.Join(path, ent.Name()))
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// includeNodes returns the scalar entries of a top-level include key.
func includeNodes(root *yaml.Node) []*yaml.Node {
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return []*yaml.Node{val}
		case yaml.SequenceNode:
			var out []*yaml.Node
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					out = append(out, item)
				}
			}
			return out
		}
		return nil
	}
	return nil
}

func fileSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

// recordSources stores the position of every mapping value under its dotted
// path. Sequences are recorded as a whole.
func recordSources(n *yaml.Node, file, prefix string, out map[string]Source) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		path := n.Content[i].Value
		if prefix != "" {
			path = prefix + "." + path
		}
		val := n.Content[i+1]
		out[path] = fileSource(file, val)
		recordSources(val, file, path, out)
	}
}

func withSource(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
