package capture

import "testing"

func TestAccumulator_Snapshot(t *testing.T) {
	type seg struct {
		text  string
		final bool
	}
	cases := []struct {
		name string
		segs []seg
		want string
	}{
		{"interim_only", []seg{{"hel", false}, {"hello", false}}, "hello"},
		{"finals_join_in_order", []seg{{"hello", true}, {"world", true}}, "hello world"},
		{"final_clears_interim", []seg{{"hello", true}, {"wor", false}}, "hello"},
		{"interim_then_final", []seg{{"hello", true}, {"world", false}, {"world", true}}, "hello world"},
		{"empty_final_skipped", []seg{{"   ", true}, {"hi", true}}, "hi"},
		{"whitespace_trimmed", []seg{{"  hello  ", true}}, "hello"},
		{"nothing", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := NewAccumulator()
			for _, s := range tc.segs {
				acc.Add(s.text, s.final)
			}
			if got := acc.Snapshot(); got != tc.want {
				t.Fatalf("snapshot: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestAccumulator_Reset(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("hello", true)
	acc.Add("wor", false)
	acc.Reset()
	if got := acc.Snapshot(); got != "" {
		t.Fatalf("expected empty snapshot after reset, got %q", got)
	}
}
