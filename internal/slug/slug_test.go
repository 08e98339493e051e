package slug

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Cost Center":       "cost_center",
		"  ERP  code  ":     "erp_code",
		"report--label!":    "report_label",
		"__already_slug__":  "already_slug",
		"Receita Líquida 2": "receita_l_quida_2",
		"":                  "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slugify(strings.Repeat("a", MaxLen+10)); len(got) != MaxLen {
		t.Fatalf("expected %d bytes, got %d", MaxLen, len(got))
	}
}

func TestIsSlug(t *testing.T) {
	for _, s := range []string{"k", "cost_center", "a1_b2"} {
		if !IsSlug(s) {
			t.Fatalf("IsSlug(%q) = false", s)
		}
	}
	for _, s := range []string{"", "Cost", "a-b", "a b", strings.Repeat("x", MaxLen+1)} {
		if IsSlug(s) {
			t.Fatalf("IsSlug(%q) = true", s)
		}
	}
}
