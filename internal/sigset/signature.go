package sigset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// HashSignatureDoc is the YAML source form of one KindHash entry, declaring
// an explicit digest. Path is parsed but no builder reads it: compile-raw
// mode hashes the files of its directory directly.
type HashSignatureDoc struct {
	Description string `yaml:"description"`
	SHA256      string `yaml:"sha256,omitempty"`
	Path        string `yaml:"path,omitempty"`
}

// ImportSignatureDoc is the YAML source form of one KindImport entry: an
// ordered list of "library+symbol" tokens (§3).
type ImportSignatureDoc struct {
	Description string   `yaml:"description"`
	Imports     []string `yaml:"imports"`
}

// flatten splits each "library+symbol" token into an ImportEntry.
func (d *ImportSignatureDoc) flatten() []ImportEntry {
	out := make([]ImportEntry, 0, len(d.Imports))
	for _, tok := range d.Imports {
		lib, sym := splitToken(tok)
		out = append(out, ImportEntry{Library: lib, Symbol: sym})
	}
	return out
}

// DynamicSignatureDoc is the YAML source form of one KindDynamic entry.
type DynamicSignatureDoc struct {
	Description string   `yaml:"description"`
	Calls       []string `yaml:"calls"`
}

// BehavioralSignatureDoc is the YAML source form of one KindBehavioral
// entry: an event type plus the attribute values that must all be present.
type BehavioralSignatureDoc struct {
	Description string            `yaml:"description"`
	EventType   string            `yaml:"event_type"`
	Attributes  map[string]string `yaml:"attributes"`
}

// loadYAMLDir reads every *.yaml/*.yml file in dir (non-recursive, sorted
// by name), unmarshals each into a fresh *T via decode, and returns the
// exact bytes each file was read from alongside it — some kinds (KindHash)
// need the verbatim document text to round-trip through unpack unchanged.
func loadYAMLDir[T any](dir string, decode func([]byte, *T) error) (docs map[string]*T, raws map[string][]byte, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read signature dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs = make(map[string]*T, len(names))
	raws = make(map[string][]byte, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc := new(T)
		if err := decode(raw, doc); err != nil {
			return nil, nil, &BuildError{Kind: MalformedSignature, Detail: path, Err: err}
		}
		docs[name] = doc
		raws[name] = raw
	}
	return docs, raws, nil
}

func decodeYAML[T any](raw []byte, doc *T) error {
	return yaml.Unmarshal(raw, doc)
}
