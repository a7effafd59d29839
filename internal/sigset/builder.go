package sigset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sfi-go/sfi/internal/digest"
	"gopkg.in/yaml.v3"
)

// CompileHashDir builds a KindHash Set from a directory of YAML documents,
// each declaring an explicit sha256 digest (§4.4).
func CompileHashDir(dir string) (*Set, error) {
	docs, raws, err := loadYAMLDir(dir, decodeYAML[HashSignatureDoc])
	if err != nil {
		return nil, err
	}
	names := sortedKeys(docs)
	if len(names) > MaxSignatures {
		return nil, &BuildError{Kind: TooManySignatures, Detail: dir}
	}

	hs := NewHashSet()
	for i, name := range names {
		doc := docs[name]
		if doc.SHA256 == "" {
			return nil, &BuildError{Kind: UnknownProperty, Detail: "sha256"}
		}
		d, err := digest.HexDecode(doc.SHA256)
		if err != nil {
			return nil, &BuildError{Kind: MalformedSignature, Detail: name, Err: err}
		}
		if err := hs.Add(SignatureID(i), d, doc.SHA256, doc.Description, raws[name]); err != nil {
			return nil, err
		}
	}
	return &Set{Kind: KindHash, Hash: hs}, nil
}

// CompileHashDirRaw builds a KindHash Set by hashing the raw contents of
// every file in dir directly, bypassing YAML entirely — "compile-raw"
// mode, for turning a folder of known-bad samples straight into a set
// without hand-writing digests.
func CompileHashDirRaw(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw sample dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) > MaxSignatures {
		return nil, &BuildError{Kind: TooManySignatures, Detail: dir}
	}

	hs := NewHashSet()
	for i, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sample %s: %w", path, err)
		}
		d, err := digest.OfFile(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("hash sample %s: %w", path, err)
		}
		text := digest.HexEncodeUpper(d)
		rawDoc, err := yaml.Marshal(&HashSignatureDoc{Description: name, SHA256: text})
		if err != nil {
			return nil, fmt.Errorf("render synthetic document for %s: %w", name, err)
		}
		if err := hs.Add(SignatureID(i), d, text, name, rawDoc); err != nil {
			return nil, err
		}
	}
	return &Set{Kind: KindHash, Hash: hs}, nil
}

// CompileImportDir builds a KindImport Set from a directory of YAML
// documents, each declaring a required library+symbol import list.
func CompileImportDir(dir string) (*Set, error) {
	docs, _, err := loadYAMLDir(dir, decodeYAML[ImportSignatureDoc])
	if err != nil {
		return nil, err
	}
	names := sortedKeys(docs)
	if len(names) > MaxSignatures {
		return nil, &BuildError{Kind: TooManySignatures, Detail: dir}
	}

	is := NewImportSet()
	for i, name := range names {
		doc := docs[name]
		if len(doc.Imports) == 0 {
			return nil, &BuildError{Kind: UnknownProperty, Detail: "imports"}
		}
		if err := is.AddSignature(SignatureID(i), doc.Description, doc.flatten()); err != nil {
			return nil, err
		}
	}
	return &Set{Kind: KindImport, Import: is}, nil
}

// CompileDynamicDir builds a KindDynamic Set from a directory of YAML
// documents, each declaring a required API-call list.
func CompileDynamicDir(dir string) (*Set, error) {
	docs, _, err := loadYAMLDir(dir, decodeYAML[DynamicSignatureDoc])
	if err != nil {
		return nil, err
	}
	names := sortedKeys(docs)
	if len(names) > MaxSignatures {
		return nil, &BuildError{Kind: TooManySignatures, Detail: dir}
	}

	ds := NewDynamicSet()
	for i, name := range names {
		doc := docs[name]
		if len(doc.Calls) == 0 {
			return nil, &BuildError{Kind: UnknownProperty, Detail: "calls"}
		}
		if err := ds.AddSignature(SignatureID(i), doc.Description, doc.Calls); err != nil {
			return nil, err
		}
	}
	return &Set{Kind: KindDynamic, Dynamic: ds}, nil
}

// CompileBehavioralDir builds a KindBehavioral Set from a directory of
// YAML documents, each declaring an event type and the attribute values
// that must all be present.
func CompileBehavioralDir(dir string) (*Set, error) {
	docs, _, err := loadYAMLDir(dir, decodeYAML[BehavioralSignatureDoc])
	if err != nil {
		return nil, err
	}
	names := sortedKeys(docs)
	if len(names) > MaxSignatures {
		return nil, &BuildError{Kind: TooManySignatures, Detail: dir}
	}

	bs := NewBehavioralSet()
	for i, name := range names {
		doc := docs[name]
		if doc.EventType == "" || len(doc.Attributes) == 0 {
			return nil, &BuildError{Kind: UnknownProperty, Detail: "event_type/attributes"}
		}
		attrs := behavioralDocAttrs(doc)
		if err := bs.AddSignature(SignatureID(i), doc.Description, attrs); err != nil {
			return nil, err
		}
		bs.SetTokens(SignatureID(i), behavioralDocTokens(doc))
	}
	return &Set{Kind: KindBehavioral, Behavioral: bs}, nil
}

// behavioralDocTokens renders a BehavioralSignatureDoc as "key=value"
// tokens, event type first, so a compiled signature can be unpacked back
// to a document (§6 signature unpack) without recomputing attribute
// digests, which are one-way.
func behavioralDocTokens(doc *BehavioralSignatureDoc) []string {
	keys := make([]string, 0, len(doc.Attributes))
	for k := range doc.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, 0, len(keys)+1)
	tokens = append(tokens, "event_type="+doc.EventType)
	for _, k := range keys {
		tokens = append(tokens, k+"="+doc.Attributes[k])
	}
	return tokens
}

// behavioralDocAttrs composes a BehavioralSignatureDoc's attribute map
// into digests, sorted by key for deterministic ordering.
func behavioralDocAttrs(doc *BehavioralSignatureDoc) []digest.Digest {
	keys := make([]string, 0, len(doc.Attributes))
	for k := range doc.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]digest.Digest, len(keys))
	for i, k := range keys {
		attrs[i] = digest.AttributeString(doc.EventType, k, doc.Attributes[k])
	}
	return attrs
}

func sortedKeys[T any](m map[string]*T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
