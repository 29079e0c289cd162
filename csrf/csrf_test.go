package csrf_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/fittrack-server/csrf"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIssueOrGet_ReturnsSameTokenUntilRotated(t *testing.T) {
	m := csrf.NewManager()
	s := &sessions.Session{ID: "s-1"}

	first, issued, err := m.IssueOrGet(s)
	require.NoError(t, err)
	require.True(t, issued)
	require.Len(t, first, 43)

	second, issued, err := m.IssueOrGet(s)
	require.NoError(t, err)
	require.False(t, issued)
	require.Equal(t, first, second)
}

func TestRotate_AlwaysChangesToken(t *testing.T) {
	m := csrf.NewManager()
	s := &sessions.Session{ID: "s-1"}

	prev, err := m.Rotate(s)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := m.Rotate(s)
		require.NoError(t, err)
		require.NotEqual(t, prev, next)
		require.Equal(t, next, s.CSRFToken)
		prev = next
	}
}

func TestValidate(t *testing.T) {
	m := csrf.NewManager()
	s := &sessions.Session{ID: "s-1"}
	other := &sessions.Session{ID: "s-2"}

	require.False(t, m.Validate(s, ""), "no live token")
	require.False(t, m.Validate(s, "anything"), "no live token")

	token, _, err := m.IssueOrGet(s)
	require.NoError(t, err)
	otherToken, _, err := m.IssueOrGet(other)
	require.NoError(t, err)

	require.True(t, m.Validate(s, token))
	require.False(t, m.Validate(s, ""))
	require.False(t, m.Validate(s, token[:10]))
	require.False(t, m.Validate(s, otherToken), "token from a different session")
	require.False(t, m.Validate(nil, token))
}

func TestRotate_RandomFailure(t *testing.T) {
	m := csrf.NewManager(csrf.WithRandom(bytes.NewReader(nil)))
	s := &sessions.Session{ID: "s-1"}

	_, _, err := m.IssueOrGet(s)
	require.Error(t, err)
	require.Empty(t, s.CSRFToken)
}

func TestRotate_UsesEntropySource(t *testing.T) {
	m := csrf.NewManager(csrf.WithRandom(failingReader{}))
	_, err := m.Rotate(&sessions.Session{})
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestIsSafeMethod(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		require.True(t, csrf.IsSafeMethod(method), method)
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		require.False(t, csrf.IsSafeMethod(method), method)
	}
}

func TestPresentedToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.Header.Set(csrf.HeaderName, "from-header")
	require.Equal(t, "from-header", csrf.PresentedToken(r))

	form := url.Values{csrf.FormField: {"from-form"}}
	r = httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, "from-form", csrf.PresentedToken(r))
}

func TestProperty_TokensAreUniqueAcrossSessions(t *testing.T) {
	m := csrf.NewManager()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 50).Draw(t, "sessions")
		seen := make(map[string]struct{}, n)
		for i := 0; i < n; i++ {
			token, _, err := m.IssueOrGet(&sessions.Session{})
			if err != nil {
				t.Fatal(err)
			}
			if _, dup := seen[token]; dup {
				t.Fatalf("duplicate token %q", token)
			}
			seen[token] = struct{}{}
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}
