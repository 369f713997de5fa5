package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalizeTurkishCaseFolding(t *testing.T) {
	n := New()

	if got := n.Normalize("İLAÇ Kullanımı"); got != "ilaç kullanımı" {
		t.Fatalf("dotted capital İ should fold to i, got %q", got)
	}
	if got := n.Normalize("ILIK"); got != "ılık" {
		t.Fatalf("dotless capital I should fold to ı, got %q", got)
	}
}

func TestNormalizeCollapsesWhitespaceAndDropsNoise(t *testing.T) {
	n := New()

	got := n.Normalize("doz:  500 mg\t(günde   iki kez)\n")
	want := "doz: 500 mg (günde iki kez)"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestTokenizeKeepsDoseNotationTogether(t *testing.T) {
	n := New()

	got := n.Tokenize("500 mg/kg dozda 10-15 dakika")
	want := []string{"500", "mg/kg", "dozda", "10-15", "dakika"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeTrimsTrailingHyphen(t *testing.T) {
	n := New()

	got := n.Tokenize("doz- verilir")
	want := []string{"doz", "verilir"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestSpansSliceBackToTokens(t *testing.T) {
	n := New()

	text := "parasetamol 500 mg/kg günde"
	tokens := n.Tokenize(text)
	spans := n.Spans(text)
	if len(tokens) != len(spans) {
		t.Fatalf("got %d tokens but %d spans", len(tokens), len(spans))
	}
	for i, s := range spans {
		if text[s.Start:s.End] != tokens[i] {
			t.Fatalf("span %d slices to %q, token is %q", i, text[s.Start:s.End], tokens[i])
		}
	}
}

func TestStripStopwordsIsDiacriticsInsensitive(t *testing.T) {
	n := New()

	got := n.StripStopwords([]string{"parasetamol", "ve", "icin", "için", "doz"})
	want := []string{"parasetamol", "doz"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("StripStopwords() = %v, want %v", got, want)
	}
}

func TestContentTokensDropsShortTokens(t *testing.T) {
	n := New()

	got := n.ContentTokens("Parasetamol ve mg doz aşımı")
	want := []string{"parasetamol", "doz", "aşımı"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ContentTokens() = %v, want %v", got, want)
	}
}
