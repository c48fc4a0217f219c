// Package prompts holds the model prompt templates used by the pipeline.
// Templates live in embedded YAML files keyed by prompt name and use
// {{.Field}} placeholders.
package prompts

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Embedded prompt files
const (
	ClassificationFile = "classification.yaml"
	ExtractionFile     = "extraction.yaml"
)

//go:embed *.yaml
var files embed.FS

var placeholder = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Set is the parsed contents of one prompt file
type Set struct {
	file    string
	entries map[string]string
}

var (
	sets   = map[string]*Set{}
	setsMu sync.Mutex
)

// MissingFieldsError is returned by Render when a template references
// fields that were not supplied
type MissingFieldsError struct {
	File   string
	Key    string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("prompt %s/%s: missing fields %s", e.File, e.Key, strings.Join(e.Fields, ", "))
}

// Open returns the prompt set for file, parsing it on first use
func Open(file string) (*Set, error) {
	setsMu.Lock()
	defer setsMu.Unlock()

	if s, ok := sets[file]; ok {
		return s, nil
	}

	raw, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("prompt file %s: %w", file, err)
	}
	entries := map[string]string{}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("prompt file %s: %w", file, err)
	}

	s := &Set{file: file, entries: entries}
	sets[file] = s
	return s, nil
}

// Template returns the raw template stored under key
func (s *Set) Template(key string) (string, error) {
	t, ok := s.entries[key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in %s", key, s.file)
	}
	return t, nil
}

// Keys lists the prompt names in the set, sorted
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render fills the template stored under key. Every placeholder must have
// a value in data; values are inserted verbatim and never re-expanded.
func (s *Set) Render(key string, data map[string]string) (string, error) {
	t, err := s.Template(key)
	if err != nil {
		return "", err
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(t, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := data[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", &MissingFieldsError{File: s.file, Key: key, Fields: missing}
	}
	return out, nil
}

// Render opens file and renders key in one step
func Render(file, key string, data map[string]string) (string, error) {
	s, err := Open(file)
	if err != nil {
		return "", err
	}
	return s.Render(key, data)
}
