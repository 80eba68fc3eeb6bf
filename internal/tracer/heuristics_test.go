package tracer

import "testing"

func TestLeftAlignmentDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", MaxCharDistance},
		{"", "a", MaxCharDistance},
		{"a", "c", 2},
	}
	for _, c := range cases {
		if got := LeftAlignmentDistance(c.a, c.b); got != c.want {
			t.Fatalf("LeftAlignmentDistance(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestEqualityDistance(t *testing.T) {
	toTrue, toFalse := EqualityDistance("token", "token")
	if toTrue != 0 || toFalse != 1 {
		t.Fatalf("equal strings: got (%v, %v)", toTrue, toFalse)
	}

	near, _ := EqualityDistance("token", "tokem")
	far, toFalse := EqualityDistance("token", "zzzzzzzz")
	if toFalse != 0 {
		t.Fatalf("different strings must cover the false branch, got %v", toFalse)
	}
	if !(near > 0 && near < far && far < 1) {
		t.Fatalf("expected 0 < near(%v) < far(%v) < 1", near, far)
	}
}

func TestContainsDistance(t *testing.T) {
	toTrue, toFalse := ContainsDistance([]string{"a", "b"}, "b")
	if toTrue != 0 || toFalse != 1 {
		t.Fatalf("present: got (%v, %v)", toTrue, toFalse)
	}

	toTrue, toFalse = ContainsDistance(nil, "b")
	if toTrue != 1 || toFalse != 0 {
		t.Fatalf("empty: got (%v, %v)", toTrue, toFalse)
	}

	closer, _ := ContainsDistance([]string{"zzz", "abd"}, "abc")
	farther, _ := ContainsDistance([]string{"zzz"}, "abc")
	if !(closer < farther) {
		t.Fatalf("expected closest candidate to win: %v vs %v", closer, farther)
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(-1) != 0 || Normalize(0) != 0 {
		t.Fatalf("non-positive distances normalize to 0")
	}
	if n := Normalize(1); n != 0.5 {
		t.Fatalf("Normalize(1) = %v", n)
	}
}
