package auth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"constructlink/config"
	"constructlink/db"
	"constructlink/models"
	"constructlink/security"
	"constructlink/session"
)

// User-facing messages. They never reveal which part of a credential failed.
const (
	MsgInvalidCredentials = "Invalid username or password."
	MsgInvalidResetToken  = "Invalid or expired reset token."
	MsgResetRequested     = "If an account exists for that email, a password reset link has been sent."
)

const resetTokenBytes = 32

// Mailer delivers HTML mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sessions is the part of the session store the service needs.
type Sessions interface {
	Regenerate(ctx context.Context, sess *sessions.Session) error
	RevokeAllForUser(ctx context.Context, userID uint) error
}

type LoginResult struct {
	Success bool
	Message string
	User    *models.User
}

type Service struct {
	Users    *db.Repo
	Sessions Sessions
	Mail     Mailer
	Cfg      config.Config
	Now      func() time.Time
}

func NewService(users *db.Repo, store Sessions, mail Mailer, cfg config.Config) *Service {
	return &Service{Users: users, Sessions: store, Mail: mail, Cfg: cfg, Now: time.Now}
}

// Login checks the credentials and, on success, binds the user to sess.
func (s *Service) Login(ctx context.Context, sess *sessions.Session, username, password string, rememberMe bool) (LoginResult, error) {
	u, err := s.Users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		// 仍然计算一次 bcrypt，避免通过耗时区分用户是否存在
		security.VerifyPassword(dummyHash(), password)
		return LoginResult{Message: MsgInvalidCredentials}, nil
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("login lookup: %w", err)
	}
	if !security.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return LoginResult{Message: MsgInvalidCredentials}, nil
	}
	if err := s.Establish(ctx, sess, u, rememberMe); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Success: true, Message: "Login successful.", User: u}, nil
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := security.HashPassword("constructlink-no-such-user")
	return h
})

// Establish rotates the session id and stores the identity in it. The CSRF
// token is dropped so a fresh one is issued for the new session.
func (s *Service) Establish(ctx context.Context, sess *sessions.Session, u *models.User, rememberMe bool) error {
	if err := s.Sessions.Regenerate(ctx, sess); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	delete(sess.Values, session.KeyCSRFToken)
	sess.Values[session.KeyUserID] = u.ID
	sess.Values[session.KeyRole] = u.Role
	sess.Values[session.KeyRememberMe] = rememberMe

	ttl := s.Cfg.Session.TTL
	if rememberMe {
		ttl = s.Cfg.Session.RememberTTL
	}
	sess.Options.MaxAge = int(ttl / time.Second)

	if err := s.Users.TouchUserLogin(ctx, u.ID, s.Now()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", u.ID).Msg("touch login failed")
	}
	return nil
}

// Logout marks the session for deletion on the next save.
func (s *Service) Logout(sess *sessions.Session) {
	session.Clear(sess)
	sess.Options.MaxAge = -1
}

// Resolve loads the identity bound to sess. A session pointing at a missing
// or inactive user is cleared and resolves to nil.
func (s *Service) Resolve(ctx context.Context, sess *sessions.Session) (*Identity, error) {
	uid, ok := session.UserID(sess)
	if !ok {
		return nil, nil
	}
	u, err := s.Users.FindUserByID(ctx, uid)
	if errors.Is(err, db.ErrNotFound) {
		s.Logout(sess)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		s.Logout(sess)
		return nil, nil
	}
	return NewIdentity(u), nil
}

// CheckNewPassword returns field errors for a proposed password.
func (s *Service) CheckNewPassword(newPassword, confirm string) map[string]string {
	errs := map[string]string{}
	if len(newPassword) < s.Cfg.Security.PasswordMinLength {
		errs["new_password"] = fmt.Sprintf("Password must be at least %d characters.", s.Cfg.Security.PasswordMinLength)
	}
	if newPassword != confirm {
		errs["confirm_password"] = "Passwords do not match."
	}
	return errs
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, current, newPassword, confirm string) (db.Result, error) {
	u, err := s.Users.FindUserByID(ctx, userID)
	if err != nil {
		return db.Result{}, err
	}
	if !security.VerifyPassword(u.PasswordHash, current) {
		return db.Invalid("current_password", "Current password is incorrect."), nil
	}
	if errs := s.CheckNewPassword(newPassword, confirm); len(errs) > 0 {
		return db.Result{Errors: errs}, nil
	}
	if current == newPassword {
		return db.Invalid("new_password", "New password must differ from the current password."), nil
	}
	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return db.Result{}, err
	}
	return db.OK("Password changed successfully."), nil
}

func (s *Service) setPassword(ctx context.Context, userID uint, plain string) error {
	hash, err := security.HashPassword(plain)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	// 修改密码后撤销该用户的所有会话
	if err := s.Sessions.RevokeAllForUser(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", userID).Msg("revoke sessions failed")
	}
	return nil
}

var resetMail = template.Must(template.New("reset").Parse(
	`<p>Hello {{.Name}},</p>
<p>A password reset was requested for your {{.App}} account. The link below is valid for {{.Valid}}:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not request this, you can ignore this email.</p>`))

// RequestPasswordReset stores a reset token in sess and mails the link. The
// message is the same whether or not the email is known.
func (s *Service) RequestPasswordReset(ctx context.Context, sess *sessions.Session, email string) (db.Result, error) {
	generic := db.OK(MsgResetRequested)

	u, err := s.Users.FindUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return generic, nil
	}
	if err != nil {
		return db.Result{}, err
	}
	if !u.IsActive {
		return generic, nil
	}

	token, err := security.RandomToken(resetTokenBytes)
	if err != nil {
		return db.Result{}, err
	}
	sess.Values[session.KeyResetToken] = token
	sess.Values[session.KeyResetEmail] = u.Email
	sess.Values[session.KeyResetExpires] = s.Now().Add(s.Cfg.Security.PasswordResetTTL).Unix()

	var body strings.Builder
	link := strings.TrimRight(s.Cfg.WebOrigin, "/") + "/?route=auth/reset-password&token=" + token
	if err := resetMail.Execute(&body, map[string]string{
		"Name":  u.FullName,
		"App":   s.Cfg.AppName,
		"Valid": s.Cfg.Security.PasswordResetTTL.String(),
		"Link":  link,
	}); err != nil {
		return db.Result{}, err
	}
	if err := s.Mail.Send(ctx, u.Email, s.Cfg.AppName+" password reset", body.String()); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Uint("user_id", u.ID).Msg("send reset mail failed")
	}
	return generic, nil
}

// ValidResetToken reports whether token matches the unexpired token in sess.
func (s *Service) ValidResetToken(sess *sessions.Session, token string) bool {
	want := session.String(sess, session.KeyResetToken)
	if want == "" || token == "" {
		return false
	}
	if !security.ConstantTimeEqual(want, token) {
		return false
	}
	exp, ok := sess.Values[session.KeyResetExpires].(int64)
	return ok && s.Now().Unix() < exp
}

// ResetPassword sets a new password for the email bound to a valid token.
// The reset fields are cleared once used.
func (s *Service) ResetPassword(ctx context.Context, sess *sessions.Session, token, newPassword, confirm string) (db.Result, error) {
	if !s.ValidResetToken(sess, token) {
		return db.Fail(MsgInvalidResetToken), nil
	}
	if errs := s.CheckNewPassword(newPassword, confirm); len(errs) > 0 {
		return db.Result{Errors: errs}, nil
	}
	u, err := s.Users.FindUserByEmail(ctx, session.String(sess, session.KeyResetEmail))
	if errors.Is(err, db.ErrNotFound) {
		clearReset(sess)
		return db.Fail(MsgInvalidResetToken), nil
	}
	if err != nil {
		return db.Result{}, err
	}
	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return db.Result{}, err
	}
	clearReset(sess)
	return db.OK("Your password has been reset. Please log in."), nil
}

func clearReset(sess *sessions.Session) {
	delete(sess.Values, session.KeyResetToken)
	delete(sess.Values, session.KeyResetEmail)
	delete(sess.Values, session.KeyResetExpires)
}
