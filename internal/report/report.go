// Package report implements the detection report produced by a
// successful match against any of the four signature kinds: a
// human-readable description paired with a kind-specific cause string
// (§5 DetectionReport).
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Report is the result of a successful signature match.
type Report struct {
	Desc  string
	Cause string
}

// Hash builds the cause string for a KindHash match: the matched file's
// digest, rendered exactly as it appeared in the signature document.
func Hash(desc, sha256Text string) Report {
	return Report{Desc: desc, Cause: fmt.Sprintf("Known sha: %s", quote(sha256Text))}
}

// ImportMatch is one (library, symbol) pair used to explain an import
// match.
type ImportMatch struct {
	Library string
	Symbol  string
}

// Import builds the cause string for a KindImport match: the full set of
// imports the matched signature required, sorted for determinism.
func Import(desc string, matched []ImportMatch) Report {
	tokens := make([]string, len(matched))
	for i, m := range matched {
		tokens[i] = fmt.Sprintf("%s+%s", m.Library, m.Symbol)
	}
	sort.Strings(tokens)

	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quote(t)
	}
	return Report{Desc: desc, Cause: fmt.Sprintf("Used Imports: [%s]", strings.Join(quoted, ", "))}
}

// Dynamic builds the cause string for a KindDynamic match: the full set of
// API calls the matched signature required, sorted for determinism.
func Dynamic(desc string, calls []string) Report {
	sorted := append([]string(nil), calls...)
	sort.Strings(sorted)

	quoted := make([]string, len(sorted))
	for i, c := range sorted {
		quoted[i] = quote(c)
	}
	return Report{Desc: desc, Cause: fmt.Sprintf("Used Calls: [%s]", strings.Join(quoted, ", "))}
}

// Behavioral builds the cause string for a KindBehavioral match: the
// matched event's identifying attribute map (pid/tid excluded), rendered
// as a sorted-key debug map.
func Behavioral(desc, eventName string, attrs map[string]string) Report {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s: %s", quote(k), quote(attrs[k]))
	}
	inner := "{" + strings.Join(pairs, ", ") + "}"
	return Report{Desc: desc, Cause: fmt.Sprintf("Detected Event: %s: { %s }", eventName, inner)}
}

// quote renders s as a double-quoted, backslash-escaped string literal,
// matching the Rust {:?} Debug formatting the original cause strings were
// generated with.
func quote(s string) string {
	return strconv.Quote(s)
}
