package lyrics

import (
	"fmt"
	"reflect"
	"testing"
)

func TestParseLRC_Example(t *testing.T) {
	input := "[00:12.50]Hello\n[00:15.00]World\nNo tag here\n[00:20.00]   \n[00:25.10]Done"
	want := Sequence{
		{Time: 12.5, Text: "Hello"},
		{Time: 15.0, Text: "World"},
		{Time: 25.1, Text: "Done"},
	}

	got := ParseLRC(input)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLRC() = %+v, want %+v", got, want)
	}
}

func TestParseLRC_Lines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Sequence
	}{
		{"empty input", "", nil},
		{"metadata only", "[ar:Artist]\n[ti:Title]\n[offset:+100]", nil},
		{"tag only", "[01:02.03]", nil},
		{"single digit fields", "[1:02.03]x\n[01:2.03]y\n[01:02.3]z", nil},
		{"three digit hundredths", "[01:02.345]x", nil},
		{"minutes and hundredths", "[01:02.50]x", Sequence{{Time: 62.5, Text: "x"}}},
		{"surrounding spaces", "[00:01.00]   spaced out   ", Sequence{{Time: 1, Text: "spaced out"}}},
		{"windows line endings", "[00:01.00]a\r\n[00:02.00]b\r\n", Sequence{{Time: 1, Text: "a"}, {Time: 2, Text: "b"}}},
		{"tag in the middle", "intro [00:03.00] outro", Sequence{{Time: 3, Text: "intro  outro"}}},
		{"only first tag used", "[00:05.00][00:10.00]chorus", Sequence{{Time: 5, Text: "[00:10.00]chorus"}}},
		{"keeps source order", "[00:10.00]b\n[00:05.00]a", Sequence{{Time: 10, Text: "b"}, {Time: 5, Text: "a"}}},
		{"keeps duplicates", "[00:05.00]a\n[00:05.00]a", Sequence{{Time: 5, Text: "a"}, {Time: 5, Text: "a"}}},
		{"large minutes", "[99:59.50]end", Sequence{{Time: 5999.5, Text: "end"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLRC(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLRC(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLRC_RecoversTime(t *testing.T) {
	for mm := 0; mm < 100; mm += 7 {
		for ss := 0; ss < 60; ss += 13 {
			for hh := 0; hh < 100; hh += 11 {
				line := fmt.Sprintf("[%02d:%02d.%02d] line %d ", mm, ss, hh, hh)
				got := ParseLRC(line)
				if len(got) != 1 {
					t.Fatalf("ParseLRC(%q) returned %d lines", line, len(got))
				}
				want := float64(mm*60+ss) + float64(hh)/100
				if got[0].Time != want {
					t.Errorf("ParseLRC(%q).Time = %v, want %v", line, got[0].Time, want)
				}
				if got[0].Text != fmt.Sprintf("line %d", hh) {
					t.Errorf("ParseLRC(%q).Text = %q", line, got[0].Text)
				}
			}
		}
	}
}

func TestParseLRC_Idempotent(t *testing.T) {
	input := "[ti:x]\n[00:01.00]a\n\n[00:00.50]b\nnoise\n[00:02.00]  c  "
	first := ParseLRC(input)
	second := ParseLRC(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing twice differs: %+v vs %+v", first, second)
	}
	for _, l := range first {
		if l.Text == "" {
			t.Errorf("empty text in output: %+v", first)
		}
	}
}

func TestSequence_IsSorted(t *testing.T) {
	seq := Sequence{{Time: 1, Text: "a"}, {Time: 1, Text: "b"}, {Time: 3, Text: "c"}}
	if !seq.IsSorted() {
		t.Error("non-decreasing sequence reported unsorted")
	}
	if (Sequence{{Time: 2}, {Time: 1}}).IsSorted() {
		t.Error("decreasing sequence reported sorted")
	}
}
