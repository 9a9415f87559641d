package intent

import "testing"

func TestPreservedHostnameExactMatch(t *testing.T) {
	p := PreservedHostname{Pattern: "keep.example.com"}
	if !p.Matches("keep.example.com") {
		t.Fatal("expected exact match")
	}
	if p.Matches("other.example.com") {
		t.Fatal("expected no match for a different hostname")
	}
}

func TestPreservedHostnameWildcardSuffix(t *testing.T) {
	p := PreservedHostname{Pattern: "*.foo.example.com"}
	if !p.Matches("bar.foo.example.com") {
		t.Fatal("expected suffix match")
	}
	if !p.Matches("foo.example.com") {
		t.Fatal("expected the bare suffix itself to match")
	}
	if p.Matches("foo.example.org") {
		t.Fatal("expected no match across a different domain")
	}
}

func TestMatchAnyReturnsReason(t *testing.T) {
	list := []PreservedHostname{{Pattern: "legacy.example.com", Reason: "decommission pending"}}
	ok, reason := MatchAny(list, "legacy.example.com")
	if !ok || reason != "decommission pending" {
		t.Fatalf("got (%v, %q)", ok, reason)
	}
}
