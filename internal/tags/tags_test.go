package tags

import (
	"reflect"
	"testing"
)

func TestSetAddOrder(t *testing.T) {
	s := NewSet("b", "a", "b", "c")
	got := s.Slice()
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Slice() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestSetIgnoresEmpty(t *testing.T) {
	s := NewSet("", "a", "")
	if got := s.Slice(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Slice() = %v, want [a]", got)
	}
}

func TestSetRemove(t *testing.T) {
	s := NewSet("a", "b", "c")
	s.Remove("b")
	s.Remove("missing")
	if got := s.Slice(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Slice() = %v, want [a c]", got)
	}
	if s.Has("b") {
		t.Error("Has(b) = true after Remove")
	}
}

func TestSetReAddKeepsNewPosition(t *testing.T) {
	s := NewSet("a", "b")
	s.Remove("a")
	s.Add("a")
	if got := s.Slice(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Slice() = %v, want [b a]", got)
	}
}

func TestSetOmit(t *testing.T) {
	s := NewSet("keep", "drop1", "drop2")
	s.Omit([]string{"drop1", "drop2", "absent"})
	if got := s.Slice(); !reflect.DeepEqual(got, []string{"keep"}) {
		t.Errorf("Slice() = %v, want [keep]", got)
	}
}

func TestSetZeroValue(t *testing.T) {
	var s Set
	if s.Has("x") {
		t.Error("zero set Has(x) = true")
	}
	s.Add("x")
	if !s.Has("x") {
		t.Error("Has(x) = false after Add on zero set")
	}
}

func TestAutotag(t *testing.T) {
	mapping := map[string]string{
		"golang":  "Programming",
		"cooking": "Food",
		"GO":      "Programming2",
	}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single match", "notes on Cooking tonight", []string{"Food"}},
		{"case insensitive", "I love GOLANG a lot", []string{"Programming2", "Programming"}},
		{"no match", "nothing relevant here", nil},
		{"empty text", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Autotag(mapping, tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Autotag(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAutotagSortedKeyOrder(t *testing.T) {
	mapping := map[string]string{"zeta": "Z", "alpha": "A"}
	got := Autotag(mapping, "alpha and zeta both appear")
	if !reflect.DeepEqual(got, []string{"A", "Z"}) {
		t.Errorf("Autotag = %v, want [A Z]", got)
	}
}

func TestSplitNamespace(t *testing.T) {
	mapping := map[string]string{"Book": "Books", "Person": "People"}

	tests := []struct {
		title    string
		wantName string
		wantTags []string
	}{
		{"Book/Project X/A Book", "A Book", []string{"Books"}},
		{"Person/Jane Doe", "Jane Doe", []string{"People"}},
		{"Plain Title", "Plain Title", nil},
		{"Unknown/Leaf", "Leaf", nil},
		{"Book/Person/Leaf", "Leaf", []string{"Books", "People"}},
	}
	for _, tt := range tests {
		name, matched := SplitNamespace(tt.title, mapping)
		if name != tt.wantName {
			t.Errorf("SplitNamespace(%q) name = %q, want %q", tt.title, name, tt.wantName)
		}
		if !reflect.DeepEqual(matched, tt.wantTags) {
			t.Errorf("SplitNamespace(%q) tags = %v, want %v", tt.title, matched, tt.wantTags)
		}
	}
}
