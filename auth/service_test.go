package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"constructlink/auth"
	"constructlink/config"
	"constructlink/db"
	"constructlink/models"
	"constructlink/security"
	"constructlink/session"
	"constructlink/testfixtures"
)

type sentMail struct{ to, subject, body string }

type fakeMailer struct{ sent []sentMail }

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type ServiceSuite struct {
	suite.Suite
	svc   *auth.Service
	store *session.RedisStore
	mail  *fakeMailer
	repo  *db.Repo
	now   time.Time
	user  models.User
}

func TestServiceSuite(t *testing.T) { suite.Run(t, new(ServiceSuite)) }

func (s *ServiceSuite) SetupTest() {
	gdb := testfixtures.DB(s.T())
	rdb, _ := testfixtures.Redis(s.T())

	cfg := config.Load()
	cfg.WebOrigin = "https://cl.example.com"
	cfg.Security.PasswordMinLength = 8
	cfg.Security.PasswordResetTTL = time.Hour

	s.store = session.NewRedisStore(rdb, time.Hour, sessions.Options{Path: "/"}, []byte("0123456789abcdef0123456789abcdef"))
	s.mail = &fakeMailer{}
	s.repo = db.NewRepo(gdb)
	s.svc = auth.NewService(s.repo, s.store, s.mail, cfg)
	s.now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	s.svc.Now = func() time.Time { return s.now }

	s.user = testfixtures.CreateUser(s.T(), gdb, "maria", models.RoleProcurementOfficer, "correct-horse")
}

func newSession() *sessions.Session {
	return sessions.NewSession(nil, session.CookieName)
}

func (s *ServiceSuite) TestLoginGenericFailure() {
	ctx := context.Background()
	for name, creds := range map[string][2]string{
		"unknown user":   {"nobody", "correct-horse"},
		"wrong password": {"maria", "nope"},
		"empty":          {"", ""},
	} {
		s.Run(name, func() {
			sess := newSession()
			res, err := s.svc.Login(ctx, sess, creds[0], creds[1], false)
			s.Require().NoError(err)
			s.False(res.Success)
			s.Equal(auth.MsgInvalidCredentials, res.Message)
			_, ok := session.UserID(sess)
			s.False(ok)
		})
	}
}

func (s *ServiceSuite) TestLoginInactiveUser() {
	testfixtures.Deactivate(s.T(), s.repo.DB, s.user.ID)
	res, err := s.svc.Login(context.Background(), newSession(), "maria", "correct-horse", false)
	s.Require().NoError(err)
	s.False(res.Success)
	s.Equal(auth.MsgInvalidCredentials, res.Message)
}

func (s *ServiceSuite) TestLoginEstablishesSession() {
	sess := newSession()
	sess.Values[session.KeyCSRFToken] = "pre-login-token"

	res, err := s.svc.Login(context.Background(), sess, "maria", "correct-horse", false)
	s.Require().NoError(err)
	s.True(res.Success)

	uid, ok := session.UserID(sess)
	s.True(ok)
	s.Equal(s.user.ID, uid)
	s.Equal(models.RoleProcurementOfficer, session.String(sess, session.KeyRole))
	s.Empty(session.String(sess, session.KeyCSRFToken), "csrf token rotates on login")
	s.Equal(int((8 * time.Hour).Seconds()), sess.Options.MaxAge)

	u, err := s.repo.FindUserByID(context.Background(), s.user.ID)
	s.Require().NoError(err)
	s.NotNil(u.LastLoginAt)
}

func (s *ServiceSuite) TestRememberMeExtendsLifetime() {
	sess := newSession()
	res, err := s.svc.Login(context.Background(), sess, "maria", "correct-horse", true)
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal(int((720 * time.Hour).Seconds()), sess.Options.MaxAge)
}

func (s *ServiceSuite) TestResolve() {
	ctx := context.Background()
	id, err := s.svc.Resolve(ctx, newSession())
	s.Require().NoError(err)
	s.Nil(id)

	sess := newSession()
	sess.Values[session.KeyUserID] = s.user.ID
	id, err = s.svc.Resolve(ctx, sess)
	s.Require().NoError(err)
	s.Require().NotNil(id)
	s.Equal("maria", id.Username)

	testfixtures.Deactivate(s.T(), s.repo.DB, s.user.ID)
	id, err = s.svc.Resolve(ctx, sess)
	s.Require().NoError(err)
	s.Nil(id)
	s.Equal(-1, sess.Options.MaxAge)
}

func (s *ServiceSuite) TestChangePassword() {
	ctx := context.Background()

	res, err := s.svc.ChangePassword(ctx, s.user.ID, "wrong", "new-password", "new-password")
	s.Require().NoError(err)
	s.Contains(res.Errors, "current_password")

	res, err = s.svc.ChangePassword(ctx, s.user.ID, "correct-horse", "short", "short")
	s.Require().NoError(err)
	s.Contains(res.Errors, "new_password")

	res, err = s.svc.ChangePassword(ctx, s.user.ID, "correct-horse", "new-password", "other-password")
	s.Require().NoError(err)
	s.Contains(res.Errors, "confirm_password")

	res, err = s.svc.ChangePassword(ctx, s.user.ID, "correct-horse", "correct-horse", "correct-horse")
	s.Require().NoError(err)
	s.Contains(res.Errors, "new_password")

	res, err = s.svc.ChangePassword(ctx, s.user.ID, "correct-horse", "new-password", "new-password")
	s.Require().NoError(err)
	s.True(res.Success)

	login, err := s.svc.Login(ctx, newSession(), "maria", "new-password", false)
	s.Require().NoError(err)
	s.True(login.Success)
}

func (s *ServiceSuite) TestPasswordResetFlow() {
	ctx := context.Background()
	sess := newSession()

	res, err := s.svc.RequestPasswordReset(ctx, sess, "MARIA@example.com")
	s.Require().NoError(err)
	s.Equal(auth.MsgResetRequested, res.Message)
	s.Require().Len(s.mail.sent, 1)
	s.Equal("maria@example.com", s.mail.sent[0].to)

	token := session.String(sess, session.KeyResetToken)
	s.Len(token, 64)
	s.Contains(s.mail.sent[0].body, "route=auth/reset-password&amp;token="+token)

	s.True(s.svc.ValidResetToken(sess, token))
	s.False(s.svc.ValidResetToken(sess, strings.ToUpper(token)))

	res, err = s.svc.ResetPassword(ctx, sess, token, "brand-new-pass", "brand-new-pass")
	s.Require().NoError(err)
	s.True(res.Success)
	s.Empty(session.String(sess, session.KeyResetToken))

	res, err = s.svc.ResetPassword(ctx, sess, token, "another-pass", "another-pass")
	s.Require().NoError(err)
	s.False(res.Success, "tokens are single use")
	s.Equal(auth.MsgInvalidResetToken, res.Message)

	u, err := s.repo.FindUserByID(ctx, s.user.ID)
	s.Require().NoError(err)
	s.True(security.VerifyPassword(u.PasswordHash, "brand-new-pass"))
}

func (s *ServiceSuite) TestPasswordResetUnknownEmailLooksTheSame() {
	sess := newSession()
	res, err := s.svc.RequestPasswordReset(context.Background(), sess, "ghost@example.com")
	s.Require().NoError(err)
	s.Equal(auth.MsgResetRequested, res.Message)
	s.Empty(s.mail.sent)
	s.Empty(session.String(sess, session.KeyResetToken))
}

func (s *ServiceSuite) TestPasswordResetRejectsBadTokens() {
	ctx := context.Background()

	cases := map[string]func(sess *sessions.Session) string{
		"no token in session": func(*sessions.Session) string { return "abc" },
		"mismatch": func(sess *sessions.Session) string {
			_, err := s.svc.RequestPasswordReset(ctx, sess, "maria@example.com")
			s.Require().NoError(err)
			return strings.Repeat("0", 64)
		},
		"expired": func(sess *sessions.Session) string {
			_, err := s.svc.RequestPasswordReset(ctx, sess, "maria@example.com")
			s.Require().NoError(err)
			s.now = s.now.Add(time.Hour)
			return session.String(sess, session.KeyResetToken)
		},
		"empty": func(sess *sessions.Session) string {
			_, err := s.svc.RequestPasswordReset(ctx, sess, "maria@example.com")
			s.Require().NoError(err)
			return ""
		},
	}
	for name, setup := range cases {
		s.Run(name, func() {
			sess := newSession()
			token := setup(sess)
			res, err := s.svc.ResetPassword(ctx, sess, token, "brand-new-pass", "brand-new-pass")
			s.Require().NoError(err)
			s.False(res.Success)
			s.Equal(auth.MsgInvalidResetToken, res.Message)
		})
	}
}

func TestIdentityVisibility(t *testing.T) {
	pid := uint(7)
	cases := []struct {
		role    string
		project *uint
		want    db.Visibility
	}{
		{models.RoleSystemAdmin, nil, db.Visibility{All: true}},
		{models.RoleAssetDirector, &pid, db.Visibility{All: true}},
		{models.RoleFinanceDirector, nil, db.Visibility{All: true}},
		{models.RoleWarehouseman, &pid, db.Visibility{ProjectID: &pid}},
		{models.RoleProjectManager, nil, db.Visibility{}},
	}
	for _, tc := range cases {
		id := &auth.Identity{Role: tc.role, ProjectID: tc.project}
		assert.Equal(t, tc.want, id.Visibility(), tc.role)
	}

	var none *auth.Identity
	assert.False(t, none.HasRole(models.RoleSystemAdmin))
	assert.Equal(t, db.Visibility{}, none.Visibility())
	require.True(t, (&auth.Identity{Role: models.RoleWarehouseman}).HasRole(models.RoleAssetDirector, models.RoleWarehouseman))
}
