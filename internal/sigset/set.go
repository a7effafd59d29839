package sigset

import (
	"fmt"
	"io"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/event"
	"github.com/sfi-go/sfi/internal/report"
)

// Set is the polymorphic compiled signature set: exactly one of its four
// kind-specific fields is populated, selected by Kind. It is the unit the
// scan loop, sandbox runner, and behavioral ingress loop load and dispatch
// against, per §9's "dynamic dispatch over four set kinds".
type Set struct {
	Kind Kind

	Hash       *HashSet
	Import     *ImportSet
	Dynamic    *DynamicSet
	Behavioral *BehavioralSet
}

// EvalFile evaluates a whole-file digest against a KindHash set. It
// returns ok=false when called against any other kind, since a file
// digest has nothing to say to the other three.
func (s *Set) EvalFile(d digest.Digest) (report.Report, bool) {
	if s.Kind != KindHash {
		return report.Report{}, false
	}
	_, text, description, ok := s.Hash.Match(d)
	if !ok {
		return report.Report{}, false
	}
	return report.Hash(description, text), true
}

// EvalImports evaluates an observed PE import table against a KindImport set.
func (s *Set) EvalImports(observed []ImportEntry) (report.Report, bool) {
	if s.Kind != KindImport {
		return report.Report{}, false
	}
	_, description, imports, ok := s.Import.Match(observed)
	if !ok {
		return report.Report{}, false
	}
	matched := make([]report.ImportMatch, len(imports))
	for i, im := range imports {
		matched[i] = report.ImportMatch{Library: im.Library, Symbol: im.Symbol}
	}
	return report.Import(description, matched), true
}

// EvalCalls evaluates an observed API-call trace against a KindDynamic set.
func (s *Set) EvalCalls(calls []string) (report.Report, bool) {
	if s.Kind != KindDynamic {
		return report.Report{}, false
	}
	_, description, declared, ok := s.Dynamic.Match(calls)
	if !ok {
		return report.Report{}, false
	}
	return report.Dynamic(description, declared), true
}

// EvalEvent evaluates one behavioral event against a KindBehavioral set.
func (s *Set) EvalEvent(e event.Event) (report.Report, bool) {
	if s.Kind != KindBehavioral {
		return report.Report{}, false
	}
	_, description, ok := s.Behavioral.MatchEvent(e)
	if !ok {
		return report.Report{}, false
	}
	return report.Behavioral(description, e.Name(), e.AttributeMap()), true
}

// Len reports how many signatures this set holds, regardless of kind.
func (s *Set) Len() int {
	switch s.Kind {
	case KindHash:
		return s.Hash.Len()
	case KindImport:
		return s.Import.matcher.SigCount()
	case KindDynamic:
		return s.Dynamic.matcher.SigCount()
	case KindBehavioral:
		return s.Behavioral.matcher.SigCount()
	default:
		return 0
	}
}

// importTokens renders an ImportEntry list as "library+symbol" tokens.
func importTokens(entries []ImportEntry) []string {
	tokens := make([]string, len(entries))
	for i, e := range entries {
		tokens[i] = fmt.Sprintf("%s+%s", e.Library, e.Symbol)
	}
	return tokens
}

// toRecords flattens s into the container's on-disk SigRecord form (§4.6).
func (s *Set) toRecords() []SigRecord {
	var records []SigRecord
	switch s.Kind {
	case KindHash:
		s.Hash.Ascend(func(d digest.Digest, id SignatureID, text, description string, rawDoc []byte) bool {
			records = append(records, SigRecord{IDDigest: d, Description: description, HashText: text, RawDoc: rawDoc})
			return true
		})
	case KindImport:
		records = matcherToRecords(s.Import.matcher, s.Import.descriptions)
		for id := range records {
			records[id].Tokens = importTokens(s.Import.imports[SignatureID(id)])
		}
	case KindDynamic:
		records = matcherToRecords(s.Dynamic.matcher, s.Dynamic.descriptions)
		for id := range records {
			records[id].Tokens = s.Dynamic.calls[SignatureID(id)]
		}
	case KindBehavioral:
		records = matcherToRecords(s.Behavioral.matcher, s.Behavioral.descriptions)
		for id := range records {
			records[id].Tokens = s.Behavioral.Tokens(SignatureID(id))
		}
	}
	return records
}

// matcherToRecords reconstructs, for each signature id known to matcher,
// the full attribute list it was built from by scanning the attr_index for
// every slot whose bit is set — the inverse of AppendSignature.
func matcherToRecords(m *Matcher, descriptions map[SignatureID]string) []SigRecord {
	type slotAttr struct {
		slot uint32
		d    digest.Digest
	}
	var slots []slotAttr
	m.AscendAttrIndex(func(d digest.Digest, slot uint32) bool {
		slots = append(slots, slotAttr{slot: slot, d: d})
		return true
	})

	records := make([]SigRecord, m.SigCount())
	for id := range records {
		bit := uint32(1) << uint(id)
		var attrs []digest.Digest
		for _, sa := range slots {
			if m.attrBitmap[sa.slot]&bit != 0 {
				attrs = append(attrs, sa.d)
			}
		}
		records[id] = SigRecord{
			IDDigest:    sigIDToDigest(SignatureID(id)),
			Description: descriptions[SignatureID(id)],
			Attrs:       attrs,
		}
	}
	return records
}

// Save writes the compiled set to w as a container (§4.6).
func (s *Set) Save(w io.Writer) error {
	return WriteContainer(w, s.Kind, s.toRecords())
}

// Load reads a container from r and reconstructs the in-memory Set,
// rebuilding the bitmap matcher for the three bitmap kinds: KindImport and
// KindDynamic recompute their digests from the recorded token lists,
// KindBehavioral replays the recorded attribute digests.
func Load(r io.Reader) (*Set, error) {
	kind, records, err := ReadContainer(r)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindHash:
		hs := NewHashSet()
		for i, rec := range records {
			if err := hs.Add(SignatureID(i), rec.IDDigest, rec.HashText, rec.Description, rec.RawDoc); err != nil {
				return nil, err
			}
		}
		return &Set{Kind: KindHash, Hash: hs}, nil

	case KindImport:
		is := NewImportSet()
		for _, rec := range records {
			id := sigIDFromDigest(rec.IDDigest)
			imports := make([]ImportEntry, 0, len(rec.Tokens))
			for _, t := range rec.Tokens {
				lib, sym := splitToken(t)
				imports = append(imports, ImportEntry{Library: lib, Symbol: sym})
			}
			if err := is.AddSignature(id, rec.Description, imports); err != nil {
				return nil, err
			}
		}
		return &Set{Kind: KindImport, Import: is}, nil

	case KindDynamic:
		ds := NewDynamicSet()
		for _, rec := range records {
			id := sigIDFromDigest(rec.IDDigest)
			if err := ds.AddSignature(id, rec.Description, rec.Tokens); err != nil {
				return nil, err
			}
		}
		return &Set{Kind: KindDynamic, Dynamic: ds}, nil

	case KindBehavioral:
		bs := NewBehavioralSet()
		if err := loadBitmapRecords(bs.matcher, bs.descriptions, records); err != nil {
			return nil, err
		}
		for _, rec := range records {
			id := sigIDFromDigest(rec.IDDigest)
			bs.SetTokens(id, rec.Tokens)
		}
		return &Set{Kind: KindBehavioral, Behavioral: bs}, nil

	default:
		return nil, fmt.Errorf("sigset: unreachable kind %d", kind)
	}
}

func loadBitmapRecords(m *Matcher, descriptions map[SignatureID]string, records []SigRecord) error {
	for _, rec := range records {
		id := sigIDFromDigest(rec.IDDigest)
		if err := m.AppendSignature(id, rec.Attrs); err != nil {
			return err
		}
		descriptions[id] = rec.Description
	}
	return nil
}

// splitToken reverses importTokens' "library+symbol" formatting.
func splitToken(token string) (library, symbol string) {
	for i := 0; i < len(token); i++ {
		if token[i] == '+' {
			return token[:i], token[i+1:]
		}
	}
	return token, ""
}
