package courseschema

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseDurationToMinutes(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{name: "hours and minutes", input: "1h 20m", want: 80, ok: true},
		{name: "min suffix", input: "45 min", want: 45, ok: true},
		{name: "hours only", input: "2 hours", want: 120, ok: true},
		{name: "upper case", input: "1H 5M", want: 65, ok: true},
		{name: "bare integer", input: "45", want: 45, ok: true},
		{name: "explicit zero", input: "0h", want: 0, ok: true},
		{name: "empty string", input: "", ok: false},
		{name: "no digits", input: "soon", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "float rounds", input: 12.6, want: 13, ok: true},
		{name: "int", input: 30, want: 30, ok: true},
		{name: "json number", input: json.Number("15"), want: 15, ok: true},
		{name: "negative", input: -5.0, ok: false},
		{name: "infinite", input: math.Inf(1), ok: false},
		{name: "unsupported type", input: true, ok: false},
		{name: "too large float", input: 1e19, ok: false},
		{name: "too large string", input: "99999999999", ok: false},
		{name: "too many hours", input: "9999999999h", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDurationToMinutes(tc.input)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (value %d)", tc.ok, ok, got)
			}
			if ok && got != tc.want {
				t.Fatalf("expected %d minutes, got %d", tc.want, got)
			}
		})
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{
		-1:  "",
		0:   "",
		1:   "1 min",
		45:  "45 min",
		60:  "1h",
		80:  "1h 20m",
		120: "2h",
	}
	for minutes, want := range cases {
		if got := FormatMinutes(minutes); got != want {
			t.Fatalf("FormatMinutes(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestDurationRoundTrip(t *testing.T) {
	for _, display := range []string{"1h 20m", "45 min", "3h"} {
		minutes, ok := ParseDurationToMinutes(display)
		if !ok {
			t.Fatalf("expected %q to parse", display)
		}
		if got := FormatMinutes(minutes); got != display {
			t.Fatalf("expected %q after round trip, got %q", display, got)
		}
	}
}
