package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueEncodeParse(t *testing.T) {
	tok := Issue("https://example.com/report.xlsx", "Sheet1", "a1:d100", 200, 100)
	require.Equal(t, "A1:D100", tok.Span)

	s, err := tok.Encode()
	require.NoError(t, err)
	require.False(t, strings.ContainsAny(s, "+/="), "token must be url-safe: %q", s)
	require.NotContains(t, s, "example.com")

	got, err := Parse(s)
	require.NoError(t, err)
	require.Equal(t, tok, got)
}

func TestResumes(t *testing.T) {
	tok := Issue("report.xlsx", "Data", "A1:C10", 5, 5)
	require.True(t, tok.Resumes("report.xlsx", "Data", "a1:c10", 0))
	require.True(t, tok.Resumes("report.xlsx", "Data", "A1:C10", 5))
	require.False(t, tok.Resumes("report.xlsx", "Data", "A1:C10", 6))
	require.False(t, tok.Resumes("other.xlsx", "Data", "A1:C10", 0))
	require.False(t, tok.Resumes("report.xlsx", "Other", "A1:C10", 0))
	require.False(t, tok.Resumes("report.xlsx", "Data", "A1:C11", 0))
	require.False(t, tok.Resumes("report.xlsx", "Data", "A1", 0))
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not base64":  "!!!",
		"not json":    b64(`not-json`),
		"old version": b64(`{"v":1,"src":"x","sheet":"S","span":"A1","off":0,"size":10}`),
		"no source":   b64(`{"v":2,"src":"","sheet":"S","span":"A1","off":0,"size":10}`),
		"no sheet":    b64(`{"v":2,"src":"x","sheet":"","span":"A1","off":0,"size":10}`),
		"no span":     b64(`{"v":2,"src":"x","sheet":"S","span":"","off":0,"size":10}`),
		"negative":    b64(`{"v":2,"src":"x","sheet":"S","span":"A1","off":-1,"size":10}`),
		"zero size":   b64(`{"v":2,"src":"x","sheet":"S","span":"A1","off":0,"size":0}`),
	}
	for name, s := range cases {
		_, err := Parse(s)
		require.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestNext(t *testing.T) {
	next, ok := Next(0, 10, 25)
	require.True(t, ok)
	require.Equal(t, 10, next)

	next, ok = Next(20, 5, 25)
	require.False(t, ok)
	require.Equal(t, 25, next)

	_, ok = Next(5, 0, 25)
	require.False(t, ok)
}

func FuzzParse(f *testing.F) {
	for _, s := range []string{"", "abc", b64(`{"v":2}`), b64(`{"v":2,"src":"ab","sheet":"S","span":"A1","off":0,"size":1}`)} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		tok, err := Parse(s)
		if err != nil {
			return
		}
		_, err = tok.Encode()
		require.NoError(t, err)
	})
}

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
