package sigset

import (
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
)

func attr(s string) digest.Digest { return digest.OfBytes([]byte(s)) }

func TestMatcherConjunctiveSemantics(t *testing.T) {
	m := NewMatcher()
	if err := m.AppendSignature(0, []digest.Digest{attr("a"), attr("b")}); err != nil {
		t.Fatalf("AppendSignature: %v", err)
	}
	if err := m.AppendSignature(1, []digest.Digest{attr("c")}); err != nil {
		t.Fatalf("AppendSignature: %v", err)
	}

	if _, ok := m.Match([]digest.Digest{attr("a")}); ok {
		t.Fatalf("partial attribute set should not match")
	}
	id, ok := m.Match([]digest.Digest{attr("a"), attr("b")})
	if !ok || id != 0 {
		t.Fatalf("Match = %d, %v; want 0, true", id, ok)
	}
	id, ok = m.Match([]digest.Digest{attr("c")})
	if !ok || id != 1 {
		t.Fatalf("Match = %d, %v; want 1, true", id, ok)
	}
}

func TestMatcherLowestIDWins(t *testing.T) {
	m := NewMatcher()
	must(t, m.AppendSignature(0, []digest.Digest{attr("x")}))
	must(t, m.AppendSignature(1, []digest.Digest{attr("x")}))

	id, ok := m.Match([]digest.Digest{attr("x")})
	if !ok || id != 0 {
		t.Fatalf("Match = %d, %v; want 0, true", id, ok)
	}
}

func TestMatcherMonotonicity(t *testing.T) {
	m := NewMatcher()
	must(t, m.AppendSignature(0, []digest.Digest{attr("a"), attr("b")}))
	must(t, m.AppendSignature(1, []digest.Digest{attr("a")}))

	_, ok := m.Match([]digest.Digest{attr("a")})
	if !ok {
		t.Fatalf("expected sig 1 to match on {a}")
	}
	idSuper, okSuper := m.Match([]digest.Digest{attr("a"), attr("b"), attr("z")})
	if !okSuper {
		t.Fatalf("expected a superset match to still match")
	}
	if idSuper > 1 {
		t.Fatalf("superset match id %d should not exceed the subset match's id", idSuper)
	}
}

func TestMatcherDisjointSignatures(t *testing.T) {
	m := NewMatcher()
	must(t, m.AppendSignature(0, []digest.Digest{attr("a")}))
	must(t, m.AppendSignature(1, []digest.Digest{attr("b")}))

	id, ok := m.Match([]digest.Digest{attr("b")})
	if !ok || id != 1 {
		t.Fatalf("Match = %d, %v; want 1, true", id, ok)
	}
}

func TestMatcherNoSignatures(t *testing.T) {
	m := NewMatcher()
	if _, ok := m.Match([]digest.Digest{attr("a")}); ok {
		t.Fatalf("empty matcher must never match")
	}
}

func TestMatcherTooManySignatures(t *testing.T) {
	m := NewMatcher()
	err := m.AppendSignature(MaxSignatures, []digest.Digest{attr("a")})
	if err == nil {
		t.Fatalf("expected error appending signature id >= MaxSignatures")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
