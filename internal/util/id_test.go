package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("story")
	if !strings.HasPrefix(id, "story_") || len(id) != len("story_")+32 {
		t.Fatalf("unexpected id %q", id)
	}
	if NewID("") == NewID("") {
		t.Fatal("ids should not repeat")
	}
}

func TestShortID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := ShortID(10)
		if len(id) != 10 {
			t.Fatalf("len(%q) = %d", id, len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune(shortIDAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewToken(t *testing.T) {
	token := NewToken("owner")
	if !strings.HasPrefix(token, "owner-") || len(token) != len("owner-")+36 {
		t.Fatalf("unexpected token %q", token)
	}
}
