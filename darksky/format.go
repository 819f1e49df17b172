package darksky

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the root of the DarkSky API.
const DefaultBaseURL = "https://api.darksky.net"

// URI formats a request URL without options. The API is asked to choose
// units from the location, so the URL always ends in "?units=auto".
//
//	darksky.URI("abc", -7.3, 8.17)
//	// https://api.darksky.net/forecast/abc/-7.3,8.17?units=auto
func URI(token string, lat, long float64) string {
	return autoUnitsURL(DefaultBaseURL, token, lat, long)
}

// FormatAutoURL is the checked form of URI against an arbitrary base URL.
func FormatAutoURL(baseURL, token string, lat, long float64) (string, error) {
	if err := checkCoordinate("latitude", lat); err != nil {
		return "", err
	}
	if err := checkCoordinate("longitude", long); err != nil {
		return "", err
	}
	uri := autoUnitsURL(baseURL, token, lat, long)
	if err := checkURL(uri, baseURL); err != nil {
		return "", err
	}
	return uri, nil
}

func autoUnitsURL(baseURL, token string, lat, long float64) string {
	var b strings.Builder
	writePath(&b, baseURL, token, lat, long, "")
	b.WriteString("?units=auto")
	return b.String()
}

// URIWithOptions formats a request URL against DefaultBaseURL.
func URIWithOptions(token string, lat, long float64, opts Options) (string, error) {
	return FormatURL(DefaultBaseURL, token, lat, long, "", opts)
}

// URITimeMachine formats a Time Machine request URL against DefaultBaseURL.
// See FormatURL for the accepted forms of at.
func URITimeMachine(token string, lat, long float64, at string, opts Options) (string, error) {
	return FormatURL(DefaultBaseURL, token, lat, long, at, opts)
}

// FormatURL builds
//
//	{baseURL}/forecast/{token}/{lat},{long}[,{at}]?{key}={value}&...
//
// at is empty for a regular forecast, or a Time Machine time: either a Unix
// timestamp or [YYYY]-[MM]-[DD]T[HH]:[MM]:[SS] with an optional "Z" or
// "-HHMM" zone suffix (see the utils package). It is inserted as-is.
//
// Every parameter is followed by "&", including the last one. No default
// unit is added: only the parameters present in opts are written.
func FormatURL(baseURL, token string, lat, long float64, at string, opts Options) (string, error) {
	if err := checkCoordinate("latitude", lat); err != nil {
		return "", err
	}
	if err := checkCoordinate("longitude", long); err != nil {
		return "", err
	}

	var b strings.Builder
	writePath(&b, baseURL, token, lat, long, at)
	b.WriteByte('?')

	for _, p := range opts.Params() {
		if p.Raw {
			b.WriteString(p.Key)
			b.WriteByte('=')
			b.WriteString(p.Value)
		} else {
			b.WriteString(url.QueryEscape(p.Key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(p.Value))
		}
		b.WriteByte('&')
	}

	uri := b.String()
	if err := checkURL(uri, baseURL); err != nil {
		return "", err
	}
	return uri, nil
}

func checkURL(uri, baseURL string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return newError(KindInvalidURI, "format url", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return newError(KindInvalidURI, "format url", fmt.Errorf("base url %q is not absolute", baseURL))
	}
	return nil
}

func writePath(b *strings.Builder, baseURL, token string, lat, long float64, at string) {
	b.WriteString(baseURL)
	b.WriteString("/forecast/")
	b.WriteString(token)
	b.WriteByte('/')
	b.WriteString(formatFloat(lat))
	b.WriteByte(',')
	b.WriteString(formatFloat(long))
	if at != "" {
		b.WriteByte(',')
		b.WriteString(at)
	}
}

// formatFloat renders the shortest decimal that round-trips, never in
// exponent form: 8.17 -> "8.17", 10.0 -> "10", 1e-7 -> "0.0000001".
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func checkCoordinate(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newError(KindFormat, "format "+name, fmt.Errorf("%s %v cannot be written as a decimal", name, v))
	}
	return nil
}
