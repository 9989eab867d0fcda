package temporal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Wednesday, 2026-08-19.
var wednesday = time.Date(2026, 8, 19, 14, 30, 0, 0, time.UTC)

func TestInterpretFixedPhrases(t *testing.T) {
	tests := []struct {
		term string
		want map[string]any
	}{
		{
			term: "next week",
			want: map[string]any{
				"original": "next week", "grain": GrainWeek,
				"start_date": "2026-08-31", "end_date": "2026-09-06",
			},
		},
		{
			term: "sometime next week I think",
			want: map[string]any{
				"original": "sometime next week I think", "grain": GrainWeek,
				"start_date": "2026-08-31", "end_date": "2026-09-06",
			},
		},
		{
			term: "tomorrow",
			want: map[string]any{"original": "tomorrow", "grain": GrainDay, "date": "2026-08-20"},
		},
		{
			term: "Today",
			want: map[string]any{"original": "Today", "grain": GrainDay, "date": "2026-08-19"},
		},
		{
			term: "yesterday",
			want: map[string]any{"original": "yesterday", "grain": GrainDay, "date": "2026-08-18"},
		},
		{
			term: "last weekend",
			want: map[string]any{
				"original": "last weekend", "grain": GrainWeekend,
				"start_date": "2026-08-15", "end_date": "2026-08-16",
			},
		},
		{
			term: "this weekend",
			want: map[string]any{
				"original": "this weekend", "grain": GrainWeekend,
				"start_date": "2026-08-22", "end_date": "2026-08-23",
			},
		},
		{
			term: "in a month",
			want: map[string]any{"original": "in a month", "grain": GrainMonthApprox, "date": "2026-09-19"},
		},
		{
			term: "next month",
			want: map[string]any{
				"original": "next month", "grain": GrainMonth,
				"start_date": "2026-09-01", "end_date": "2026-09-30",
			},
		},
		{
			term: "last month",
			want: map[string]any{
				"original": "last month", "grain": GrainMonth,
				"start_date": "2026-07-01", "end_date": "2026-07-31",
			},
		},
		{
			term: "for two weeks",
			want: map[string]any{
				"original": "for two weeks", "grain": GrainDuration,
				"duration_term": "2 weeks", "start_date": "2026-08-19", "end_date": "2026-09-02",
			},
		},
		{
			term: "for a month",
			want: map[string]any{
				"original": "for a month", "grain": GrainDuration,
				"duration_term": "1 month", "start_date": "2026-08-19", "end_date": "2026-09-19",
			},
		},
		{
			term: "in 3 days",
			want: map[string]any{
				"original": "in 3 days", "grain": GrainDaySpecific,
				"date": "2026-08-22", "parser_used": "relative",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := Interpret(tt.term, wednesday)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Interpret(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestInterpretWeekdays(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"friday", "2026-08-21"},
		{"this Friday", "2026-08-21"},
		{"coming Friday", "2026-08-21"},
		{"next Friday", "2026-08-28"},
		{"wednesday", "2026-08-19"}, // today counts
		{"next Wednesday", "2026-08-26"},
	}

	for _, tt := range tests {
		got := Interpret(tt.term, wednesday)
		if got["date"] != tt.want {
			t.Errorf("Interpret(%q) date = %v, want %s", tt.term, got["date"], tt.want)
		}
		if got["grain"] != GrainDaySpecific {
			t.Errorf("Interpret(%q) grain = %v, want %s", tt.term, got["grain"], GrainDaySpecific)
		}
	}
}

func TestInterpretConcreteDates(t *testing.T) {
	got := Interpret("August 15th", wednesday)
	if got["date"] != "2026-08-15" {
		t.Errorf(`Interpret("August 15th") date = %v, want 2026-08-15`, got["date"])
	}
	if got["grain"] != GrainDaySpecific {
		t.Errorf("grain = %v, want %s", got["grain"], GrainDaySpecific)
	}

	got = Interpret("2027-01-05", wednesday)
	if got["date"] != "2027-01-05" {
		t.Errorf(`Interpret("2027-01-05") date = %v`, got["date"])
	}
}

func TestInterpretAlwaysKeepsOriginal(t *testing.T) {
	terms := []string{"next week", "complete gibberish zzz", "", "when the stars align"}
	for _, term := range terms {
		got := Interpret(term, wednesday)
		if got["original"] != term {
			t.Errorf("Interpret(%q) original = %v", term, got["original"])
		}
	}
}

func TestInterpretUnparseableIsNotAnError(t *testing.T) {
	got := Interpret("when pigs fly", wednesday)
	want := map[string]any{"original": "when pigs fly"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unparseable phrase should carry only the original (-want +got):\n%s", diff)
	}
}

func TestAddMonthsClamps(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	got := addMonths(jan31, 1)
	if got.Format("2006-01-02") != "2026-02-28" {
		t.Errorf("addMonths(Jan 31, 1) = %s, want 2026-02-28", got.Format("2006-01-02"))
	}
}

func TestOnOrAfterStaysOnMatch(t *testing.T) {
	sat := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	if got := onOrAfter(sat, time.Saturday); !got.Equal(sat) {
		t.Errorf("onOrAfter(sat, Saturday) = %v, want same day", got)
	}
}
