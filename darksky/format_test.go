package darksky

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestURI(t *testing.T) {
	expected := "https://api.darksky.net/forecast/abc/-7.3,8.17?units=auto"
	if got := URI("abc", -7.3, 8.17); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestURIEndsWithAutoUnits(t *testing.T) {
	coords := [][2]float64{{0, 0}, {90, -180}, {37.8267, -122.4233}, {1e-7, 10}}

	for _, c := range coords {
		got := URI("token", c[0], c[1])
		if !strings.HasSuffix(got, "?units=auto") {
			t.Errorf("URI(%v, %v) = %q, expected ?units=auto suffix", c[0], c[1], got)
		}
		if strings.HasSuffix(got, "&") {
			t.Errorf("URI(%v, %v) = %q has a trailing &", c[0], c[1], got)
		}
	}
}

func TestFormatAutoURL(t *testing.T) {
	got, err := FormatAutoURL("http://127.0.0.1:8080", "key", 1.5, -2)
	if err != nil {
		t.Fatalf("FormatAutoURL failed: %v", err)
	}
	expected := "http://127.0.0.1:8080/forecast/key/1.5,-2?units=auto"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestFormatURL(t *testing.T) {
	tests := []struct {
		name     string
		lat      float64
		long     float64
		at       string
		opts     Options
		expected string
	}{
		{
			name:     "no options",
			lat:      -7.3,
			long:     8.17,
			expected: "https://api.example.com/forecast/abc/-7.3,8.17?",
		},
		{
			name:     "empty exclude",
			lat:      1,
			long:     2,
			opts:     Options{}.Exclude(),
			expected: "https://api.example.com/forecast/abc/1,2?exclude=&",
		},
		{
			name:     "exclude two blocks",
			lat:      1,
			long:     2,
			opts:     Options{}.Exclude(BlockHourly, BlockDaily),
			expected: "https://api.example.com/forecast/abc/1,2?exclude=hourly,daily&",
		},
		{
			name: "all typed options",
			lat:  37.8267,
			long: -122.4233,
			opts: Options{}.Unit(UnitSI).Language(ChineseTraditional).ExtendHourly().Exclude(BlockMinutely),
			expected: "https://api.example.com/forecast/abc/37.8267,-122.4233?" +
				"exclude=minutely&extend=hourly&lang=zh-tw&units=si&",
		},
		{
			name:     "time machine",
			lat:      10,
			long:     20,
			at:       "2015-12-13T09:46:40Z",
			opts:     Options{}.Unit(UnitUS),
			expected: "https://api.example.com/forecast/abc/10,20,2015-12-13T09:46:40Z?units=us&",
		},
		{
			name:     "extra parameters are escaped",
			lat:      0,
			long:     0,
			opts:     Options{}.Set("note", "a b&c"),
			expected: "https://api.example.com/forecast/abc/0,0?note=a+b%26c&",
		},
		{
			name:     "no exponent notation",
			lat:      0.0000001,
			long:     100000000,
			expected: "https://api.example.com/forecast/abc/0.0000001,100000000?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatURL("https://api.example.com", "abc", tt.lat, tt.long, tt.at, tt.opts)
			if err != nil {
				t.Fatalf("FormatURL failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormatURLParamCount(t *testing.T) {
	optionSets := []Options{
		{},
		Options{}.Unit(UnitSI),
		Options{}.Unit(UnitSI).Language(English),
		Options{}.Unit(UnitSI).Language(English).ExtendHourly(),
		Options{}.Unit(UnitSI).Language(English).ExtendHourly().Exclude(BlockFlags),
		Options{}.Set("x", "1").Set("y", "2").Set("z", "3"),
	}

	for _, opts := range optionSets {
		got, err := URIWithOptions("t", 1, 2, opts)
		if err != nil {
			t.Fatalf("URIWithOptions failed: %v", err)
		}
		query := got[strings.Index(got, "?")+1:]
		if n := strings.Count(query, "&"); n != opts.Len() {
			t.Errorf("%q: expected %d groups, got %d", got, opts.Len(), n)
		}
		_, hasUnits := opts.Get(ParamUnits)
		if present := strings.Contains(query, "units="); present != hasUnits {
			t.Errorf("%q: units present = %v, expected %v", got, present, hasUnits)
		}
	}
}

func TestURITimeMachine(t *testing.T) {
	got, err := URITimeMachine("abc", 1, 2, "1450000000", Options{})
	if err != nil {
		t.Fatalf("URITimeMachine failed: %v", err)
	}
	expected := "https://api.darksky.net/forecast/abc/1,2,1450000000?"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestFormatURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		lat     float64
		long    float64
		kind    error
	}{
		{name: "NaN latitude", baseURL: DefaultBaseURL, lat: math.NaN(), long: 0, kind: ErrFormat},
		{name: "infinite longitude", baseURL: DefaultBaseURL, lat: 0, long: math.Inf(-1), kind: ErrFormat},
		{name: "relative base url", baseURL: "api.darksky.net", lat: 1, long: 2, kind: ErrInvalidURI},
		{name: "unparsable base url", baseURL: "http://[::1", lat: 1, long: 2, kind: ErrInvalidURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatURL(tt.baseURL, "abc", tt.lat, tt.long, "", Options{})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{10, "10"},
		{8.17, "8.17"},
		{-7.3, "-7.3"},
		{59.9139, "59.9139"},
		{1e-7, "0.0000001"},
		{1e21, "1000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatFloat(tt.input); got != tt.expected {
				t.Errorf("formatFloat(%v) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
