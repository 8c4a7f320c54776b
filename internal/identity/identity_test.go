package identity

import "testing"

func TestContentHashStability(t *testing.T) {
	a := ContentHash([]byte("class Auth: pass"))
	b := ContentHash([]byte("class Auth: pass"))
	c := ContentHash([]byte("class Auth: pass  "))
	if a != b {
		t.Fatal("identical content must hash identically")
	}
	if a == c {
		t.Fatal("different content must hash differently")
	}
}

func TestDecisionIDDeterministic(t *testing.T) {
	id1 := DecisionID("database", "Which database?", "SQLite")
	id2 := DecisionID("database", "Which database?", "SQLite")
	id3 := DecisionID("database", "Which database?", "Postgres")
	if id1 != id2 {
		t.Fatal("same inputs must produce same decision id")
	}
	if id1 == id3 {
		t.Fatal("different choice must produce different decision id")
	}
}

func TestSlugifyDisambiguates(t *testing.T) {
	ResetSlugCounters()
	a := Slugify("My Writer Lens")
	b := Slugify("My Writer Lens")
	if a != "my-writer-lens" {
		t.Fatalf("unexpected base slug: %s", a)
	}
	if b != "my-writer-lens~1" {
		t.Fatalf("expected disambiguated slug, got %s", b)
	}
}

func TestURIRoundTrip(t *testing.T) {
	ResetSlugCounters()
	u := URI{Kind: KindBinding, Namespace: "myproject", Slug: Slugify("Writer")}
	parsed, err := ParseURI(u.String())
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if parsed != u {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, u)
	}
}

func TestParseURIRejectsBadSlug(t *testing.T) {
	if _, err := ParseURI("sunwell:lens/global/Not_Valid!"); err == nil {
		t.Fatal("expected error for invalid slug")
	}
}
