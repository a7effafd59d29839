package sigset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sfi-go/sfi/internal/digest"
	"gopkg.in/yaml.v3"
)

// Unpack writes set back out as a directory of YAML signature documents,
// the inverse of the Compile*Dir builders (§6 "signature unpack"). For
// KindHash, each file is named by its digest's uppercase hex text and its
// contents are the exact bytes compiled in, byte-for-byte, mirroring the
// original `sha_set.rs::unpack_to_dir`'s renaming convention — the only
// form the original implements. The three bitmap kinds have no stable
// original filename left after compilation, so they are named by
// signature id instead, and their documents are re-rendered from the
// fields recorded at compile time rather than replayed verbatim.
func Unpack(set *Set, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("sigset: create unpack dir %s: %w", outDir, err)
	}

	switch set.Kind {
	case KindHash:
		return unpackHash(set.Hash, outDir)
	case KindImport:
		return unpackImport(set.Import, outDir)
	case KindDynamic:
		return unpackDynamic(set.Dynamic, outDir)
	case KindBehavioral:
		return unpackBehavioral(set.Behavioral, outDir)
	default:
		return fmt.Errorf("sigset: unpack: unknown kind %d", set.Kind)
	}
}

func writeYAML(outDir, name string, doc any) error {
	text, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sigset: marshal %s: %w", name, err)
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return fmt.Errorf("sigset: write %s: %w", path, err)
	}
	return nil
}

func unpackHash(hs *HashSet, outDir string) error {
	var err error
	hs.Ascend(func(d digest.Digest, _ SignatureID, text, description string, rawDoc []byte) bool {
		name := d.String() + ".yaml"
		path := filepath.Join(outDir, name)
		if writeErr := os.WriteFile(path, rawDoc, 0o644); writeErr != nil {
			err = fmt.Errorf("sigset: write %s: %w", path, writeErr)
			return false
		}
		return true
	})
	return err
}

func unpackImport(is *ImportSet, outDir string) error {
	records := matcherToRecords(is.matcher, is.descriptions)
	for id := range records {
		records[id].Tokens = importTokens(is.imports[SignatureID(id)])
	}
	for _, rec := range records {
		id := sigIDFromDigest(rec.IDDigest)
		doc := &ImportSignatureDoc{Description: rec.Description, Imports: rec.Tokens}
		if err := writeYAML(outDir, sigFileName(id), doc); err != nil {
			return err
		}
	}
	return nil
}

func unpackDynamic(ds *DynamicSet, outDir string) error {
	records := matcherToRecords(ds.matcher, ds.descriptions)
	for id := range records {
		records[id].Tokens = ds.calls[SignatureID(id)]
	}
	for _, rec := range records {
		id := sigIDFromDigest(rec.IDDigest)
		doc := &DynamicSignatureDoc{Description: rec.Description, Calls: rec.Tokens}
		if err := writeYAML(outDir, sigFileName(id), doc); err != nil {
			return err
		}
	}
	return nil
}

func unpackBehavioral(bs *BehavioralSet, outDir string) error {
	records := matcherToRecords(bs.matcher, bs.descriptions)
	for _, rec := range records {
		id := sigIDFromDigest(rec.IDDigest)
		doc, err := behavioralDocFromTokens(rec.Description, bs.Tokens(id))
		if err != nil {
			return err
		}
		if err := writeYAML(outDir, sigFileName(id), doc); err != nil {
			return err
		}
	}
	return nil
}

// behavioralDocFromTokens rebuilds a BehavioralSignatureDoc from the
// "event_type=..."/"key=value" tokens recorded at compile time — the
// attribute digests themselves are one-way and cannot be inverted.
func behavioralDocFromTokens(description string, tokens []string) (*BehavioralSignatureDoc, error) {
	doc := &BehavioralSignatureDoc{Description: description, Attributes: map[string]string{}}
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, fmt.Errorf("sigset: malformed behavioral token %q", tok)
		}
		if key == "event_type" {
			doc.EventType = value
			continue
		}
		doc.Attributes[key] = value
	}
	return doc, nil
}

// sigFileName names a non-hash-kind signature's unpacked file by its id,
// since no other stable name survives compilation (§4's Open Question
// decision on non-hash-kind unpack naming).
func sigFileName(id SignatureID) string {
	return fmt.Sprintf("sig_%04d.yaml", id)
}
