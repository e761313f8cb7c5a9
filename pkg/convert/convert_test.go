// Copyright (c) 2026 AetherCore contributors.

package convert

import "testing"

func TestToInt(t *testing.T) {
	cases := map[string]int{"": 0, "42": 42, "not-a-number": 0, "-7": -7}
	for in, want := range cases {
		if got := ToInt(in); got != want {
			t.Errorf("ToInt(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestToIntD(t *testing.T) {
	if got := ToIntD("", 9); got != 9 {
		t.Errorf("ToIntD empty = %d, want 9", got)
	}
	if got := ToIntD("bad", 9); got != 9 {
		t.Errorf("ToIntD invalid = %d, want 9", got)
	}
	if got := ToIntD("12", 9); got != 12 {
		t.Errorf("ToIntD valid = %d, want 12", got)
	}
}

func TestToBool(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"", false},
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"garbage", false},
	} {
		if got := ToBool(tc.in); got != tc.want {
			t.Errorf("ToBool(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestToFloat64(t *testing.T) {
	if got := ToFloat64(""); got != 0 {
		t.Errorf("ToFloat64 empty = %v, want 0", got)
	}
	if got := ToFloat64("bad"); got != 0 {
		t.Errorf("ToFloat64 invalid = %v, want 0", got)
	}
	if got := ToFloat64("3.5"); got != 3.5 {
		t.Errorf("ToFloat64 valid = %v, want 3.5", got)
	}
}
