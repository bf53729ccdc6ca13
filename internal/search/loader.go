package search

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "sjsage522/listingwatcher/pkg/errors"

	"gopkg.in/yaml.v3"
)

// ReloadPolicy decides what a failed mid-run reload yields.
type ReloadPolicy string

const (
	// KeepPrevious keeps serving the last successfully loaded list
	KeepPrevious ReloadPolicy = "keep"
	// TreatAsEmpty makes the cycle run with no searches
	TreatAsEmpty ReloadPolicy = "empty"
)

// Document is the on-disk shape of the search file.
type Document struct {
	Searches []Spec `json:"searches" yaml:"searches"`
}

// LoadFile reads the search document at path. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON.
func LoadFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfiguration(path, "cannot read search document", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, apperrors.NewConfiguration(path, "malformed search document", err)
	}

	return doc.Searches, nil
}

// Loader re-reads the search document each cycle and applies the reload
// failure policy.
type Loader struct {
	Path   string
	Policy ReloadPolicy

	mu     sync.Mutex
	last   []Spec
	loaded bool
}

// NewLoader creates a loader for path
func NewLoader(path string, policy ReloadPolicy) *Loader {
	if policy != TreatAsEmpty {
		policy = KeepPrevious
	}
	return &Loader{Path: path, Policy: policy}
}

// Load reads the document. A missing or malformed document returns an error
// and no specs; the caller decides whether that is fatal.
func (l *Loader) Load() ([]Spec, error) {
	specs, err := LoadFile(l.Path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.last = specs
	l.loaded = true
	l.mu.Unlock()

	return specs, nil
}

// Reload reads the document again. On failure it returns the list chosen by
// the policy together with the error, so the caller can log it and carry on.
func (l *Loader) Reload() ([]Spec, error) {
	specs, err := LoadFile(l.Path)
	if err == nil {
		l.mu.Lock()
		l.last = specs
		l.loaded = true
		l.mu.Unlock()
		return specs, nil
	}

	if l.Policy == TreatAsEmpty {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return nil, err
	}
	return l.last, err
}
