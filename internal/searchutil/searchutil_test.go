package searchutil

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Solo Leveling":             "solo-leveling",
		"  A Lenda do Caçador!! ":   "a-lenda-do-cacador",
		"Capítulo 12.5 -- Especial": "capitulo-12-5-especial",
		"Ação & Fantasia":           "acao-fantasia",
		"???":                       "",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Fatalf("slugify %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Tôwer-of_GOD: Parte 2 "); got != "tower of god parte 2" {
		t.Fatalf("unexpected normalized value %q", got)
	}
	if got := Normalize("   "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestUniqueNonEmpty(t *testing.T) {
	got := UniqueNonEmpty([]string{" Ação ", "", "ação", "Drama", "drama", "Comédia"})
	if len(got) != 3 || got[0] != "Ação" || got[1] != "Drama" || got[2] != "Comédia" {
		t.Fatalf("unexpected values %v", got)
	}
}
