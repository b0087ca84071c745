package words

import (
	"strings"
	"testing"
)

func TestInitEmbeddedList(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if Count() == 0 {
		t.Fatal("embedded list is empty")
	}
	for i := 0; i < 20; i++ {
		w := Random()
		if len(w) != Length || !IsUpperAlpha(w) {
			t.Fatalf("random word %q is not %d uppercase letters", w, Length)
		}
		if !Contains(w) {
			t.Fatalf("random word %q not in list", w)
		}
	}
}

func TestContainsCaseInsensitive(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !Contains("class") {
		t.Fatal("lowercase lookup should match")
	}
	if Contains("ZZZZZ") {
		t.Fatal("ZZZZZ should not be a word")
	}
}

func TestIsUpperAlpha(t *testing.T) {
	for _, tc := range []struct {
		in string
		ok bool
	}{
		{"CLASS", true},
		{"class", false},
		{"CLAS1", false},
		{"CLAS ", false},
		{"ÉCLAT", false},
	} {
		if got := IsUpperAlpha(tc.in); got != tc.ok {
			t.Errorf("IsUpperAlpha(%q) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}

func TestNormalizeLines(t *testing.T) {
	words := normalizeLines("class\n  TOKEN  \nshort\ntoolong\n12345\n\nQUERY")
	want := []string{"CLASS", "TOKEN", "QUERY"}
	if len(words) != len(want) {
		t.Fatalf("normalized = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("normalized = %v, want %v", words, want)
		}
	}
	if strings.Join(words, ",") != "CLASS,TOKEN,QUERY" {
		t.Fatalf("normalized = %v", words)
	}
}
