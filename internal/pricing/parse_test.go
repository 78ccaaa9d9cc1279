package pricing

import "testing"

func TestParseAbbreviatedNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{name: "plain-integer", in: "42", want: 42, wantOK: true},
		{name: "decimal", in: "0.125", want: 0.125, wantOK: true},
		{name: "negative", in: "-3.5", want: -3.5, wantOK: true},
		{name: "thousands-suffix", in: "1.5K", want: 1500, wantOK: true},
		{name: "lowercase-suffix", in: "2m", want: 2_000_000, wantOK: true},
		{name: "billions-suffix", in: "0.5B", want: 500_000_000, wantOK: true},
		{name: "comma-separators", in: "1,234,567.8", want: 1234567.8, wantOK: true},
		{name: "space-separators", in: "12 345", want: 12345, wantOK: true},
		{name: "surrounding-whitespace", in: "  99K ", want: 99000, wantOK: true},
		{name: "empty", in: "", wantOK: false},
		{name: "suffix-only", in: "K", wantOK: false},
		{name: "unknown-suffix", in: "10T", wantOK: false},
		{name: "not-a-number", in: "abc", wantOK: false},
		{name: "double-sign", in: "--5", wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseAbbreviatedNumber(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
