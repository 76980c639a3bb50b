package security_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructlink/security"
	"constructlink/session"
	"constructlink/testfixtures"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := security.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, security.VerifyPassword(hash, "s3cret-pass"))
	assert.False(t, security.VerifyPassword(hash, "wrong"))
	assert.False(t, security.VerifyPassword("", "s3cret-pass"))
	assert.False(t, security.VerifyPassword("not-a-bcrypt-hash", "s3cret-pass"))
}

func TestRandomToken(t *testing.T) {
	a, err := security.RandomToken(32)
	require.NoError(t, err)
	b, err := security.RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func newSession() *sessions.Session {
	return sessions.NewSession(nil, session.CookieName)
}

func TestCSRF(t *testing.T) {
	sess := newSession()

	tok, err := security.CSRFToken(sess)
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	again, err := security.CSRFToken(sess)
	require.NoError(t, err)
	assert.Equal(t, tok, again, "token is stable for the session")

	assert.NoError(t, security.ValidateCSRF(sess, tok))

	cases := map[string]string{
		"missing":   "",
		"different": strings.Repeat("a", 64),
		"prefix":    tok[:10],
	}
	for name, submitted := range cases {
		t.Run(name, func(t *testing.T) {
			err := security.ValidateCSRF(sess, submitted)
			assert.ErrorIs(t, err, security.ErrCSRF)
			assert.True(t, security.IsSecurityError(err))
		})
	}
}

func TestCSRFWithoutSessionToken(t *testing.T) {
	assert.ErrorIs(t, security.ValidateCSRF(newSession(), ""), security.ErrCSRF)
	assert.ErrorIs(t, security.ValidateCSRF(newSession(), "anything"), security.ErrCSRF)
}

func TestTokenFromRequest(t *testing.T) {
	form := url.Values{security.FormField: {"from-form"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(security.Header, "from-header")
	assert.Equal(t, "from-form", security.TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(security.Header, "from-header")
	assert.Equal(t, "from-header", security.TokenFromRequest(req))
}

func TestRateLimiterWindow(t *testing.T) {
	rdb, _ := testfixtures.Redis(t)
	l := security.NewRateLimiter(rdb)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Check(ctx, "login:10.0.0.1", 5, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
		now = now.Add(time.Second)
	}

	ok, err := l.Check(ctx, "login:10.0.0.1", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "sixth attempt within the window is rejected")

	ok, err = l.Check(ctx, "login:10.0.0.2", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	now = now.Add(15 * time.Minute)
	ok, err = l.Check(ctx, "login:10.0.0.1", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "old attempts fall out of the rolling window")
}

func TestRateLimiterReset(t *testing.T) {
	rdb, _ := testfixtures.Redis(t)
	l := security.NewRateLimiter(rdb)
	ctx := context.Background()

	ok, err := l.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = l.Check(ctx, "k", 1, time.Minute)
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "k"))
	ok, err = l.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rdb, mr := testfixtures.Redis(t)
	l := security.NewRateLimiter(rdb)
	mr.Close()

	ok, err := l.Check(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRateLimiterAllow(t *testing.T) {
	rdb, mr := testfixtures.Redis(t)
	l := security.NewRateLimiter(rdb)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "forgot_password:10.0.0.1", 1, time.Minute))
	err := l.Allow(ctx, "forgot_password:10.0.0.1", 1, time.Minute)
	assert.ErrorIs(t, err, security.ErrRateLimited)
	assert.True(t, security.IsSecurityError(err))

	mr.Close()
	err = l.Allow(ctx, "forgot_password:10.0.0.2", 1, time.Minute)
	require.Error(t, err)
	assert.False(t, security.IsSecurityError(err), "an unavailable limiter is not a rejection")
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Acme Builders  ", "Acme Builders"},
		{"<b>Acme</b> & Sons\x00", "Acme & Sons"},
		{"<script>alert(1)</script>Depot", "Depot"},
		{"line one\nline two", "line one\nline two"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;Depot", "Depot"},
		{"&amp;lt;b&amp;gt;Bold&amp;lt;/b&amp;gt; Co", "Bold Co"},
		{"Tools &amp; Hardware", "Tools & Hardware"},
		{"1 < 2", "1 < 2"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, security.Sanitize(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeStruct(t *testing.T) {
	note := "  <i>note</i> "
	form := struct {
		Name     string
		Note     *string
		Password string `sanitize:"-"`
		Count    int
		hidden   string
	}{
		Name:     " <b>Name</b> ",
		Note:     &note,
		Password: " <keep> ",
		hidden:   " x ",
	}
	security.SanitizeStruct(&form)

	assert.Equal(t, "Name", form.Name)
	assert.Equal(t, "note", *form.Note)
	assert.Equal(t, " <keep> ", form.Password)
	assert.Equal(t, " x ", form.hidden)
}
