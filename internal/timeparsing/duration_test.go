package timeparsing

import (
	"testing"
	"time"
)

func TestParseCompactDuration(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	at := func(y int, m time.Month, d, h int) time.Time { return time.Date(y, m, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "+6h", want: at(2025, 6, 15, 18)},
		{input: "+1d", want: at(2025, 6, 16, 12)},
		{input: "+2w", want: at(2025, 6, 29, 12)},
		{input: "+3m", want: at(2025, 9, 15, 12)},
		{input: "+1y", want: at(2026, 6, 15, 12)},
		{input: "-1d", want: at(2025, 6, 14, 12)},
		{input: "-2w", want: at(2025, 6, 1, 12)},
		{input: "-6h", want: at(2025, 6, 15, 6)},
		{input: "3m", want: at(2025, 9, 15, 12)},
		{input: "6h", want: at(2025, 6, 15, 18)},
		{input: "+365d", want: at(2026, 6, 15, 12)},
		{input: "6h+", wantErr: true},
		{input: "++1d", wantErr: true},
		{input: "1x", wantErr: true},
		{input: "", wantErr: true},
		{input: "6", wantErr: true},
		{input: "+ 6h", wantErr: true},
		{input: "2025-01-15", wantErr: true},
		{input: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCompactDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if IsCompactDuration(tt.input) == tt.wantErr {
				t.Errorf("IsCompactDuration(%q) disagrees with the parser", tt.input)
			}
		})
	}
}

func TestParseCompactDurationLeapYear(t *testing.T) {
	got, err := ParseCompactDuration("+1d", time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Feb 28, 2024 + 1d = %v, want %v", got, want)
	}
}

func TestParseCompactDurationKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("timezone America/New_York not available")
	}
	got, err := ParseCompactDuration("-1w", time.Date(2025, 6, 15, 12, 0, 0, 0, loc))
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != loc {
		t.Errorf("location not preserved: got %v, want %v", got.Location(), loc)
	}
}
