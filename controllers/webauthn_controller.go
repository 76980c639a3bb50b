// controllers/webauthn_controller.go
package controllers

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"constructlink/app"
	"constructlink/db"
	"constructlink/models"
	"constructlink/security"
)

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

// user handle 为 8 字节大端整数 id
func userHandle(id uint) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (u *waUser) WebAuthnID() []byte                         { return userHandle(u.user.ID) }
func (u *waUser) WebAuthnName() string                       { return u.user.Username }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.FullName }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	var transports []protocol.AuthenticatorTransport
	if c.TransportsJSON != "" {
		_ = json.Unmarshal([]byte(c.TransportsJSON), &transports)
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(userID uint, cred *webauthn.Credential) *models.Credential {
	transports, _ := json.Marshal(cred.Transport)
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
		TransportsJSON:  string(transports),
	}
}

type PasskeyController struct{ *Srv }

func NewPasskeyController(s *Srv) *PasskeyController { return &PasskeyController{s} }

func (pc *PasskeyController) loadWAUser(ctx context.Context, id uint) (*waUser, error) {
	u, err := pc.Users.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cs, err := pc.Users.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}

// precheck 未启用时 404；所有 POST 都需要 CSRF
func (pc *PasskeyController) precheck(c *gin.Context) bool {
	if pc.WA == nil {
		pc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Passkeys are not enabled."})
		return false
	}
	if err := pc.checkCSRF(c); err != nil {
		pc.json(c, http.StatusForbidden, app.H{"success": false, "message": MsgSecurity})
		return false
	}
	return true
}

// ===== 注册（已登录用户添加 passkey） =====

// POST auth/passkey/register/begin
func (pc *PasskeyController) BeginRegistration(c *gin.Context) {
	if !pc.precheck(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := pc.loadWAUser(ctx, app.IdentityFrom(c).UserID)
	if err != nil {
		pc.serverError(c, err)
		return
	}
	exclude := make([]protocol.CredentialDescriptor, 0, len(wUser.creds))
	for _, cr := range wUser.creds {
		exclude = append(exclude, cr.Descriptor())
	}
	opts, sd, err := pc.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithExclusions(exclude),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
	)
	if err != nil {
		pc.serverError(c, err)
		return
	}
	if err := pc.Ceremonies.SaveRegistration(ctx, wUser.user.ID, sd); err != nil {
		pc.serverError(c, err)
		return
	}
	pc.json(c, http.StatusOK, app.H{"success": true, "options": opts})
}

// POST auth/passkey/register/finish
func (pc *PasskeyController) FinishRegistration(c *gin.Context) {
	if !pc.precheck(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := pc.loadWAUser(ctx, app.IdentityFrom(c).UserID)
	if err != nil {
		pc.serverError(c, err)
		return
	}
	sd, err := pc.Ceremonies.TakeRegistration(ctx, wUser.user.ID)
	if err != nil {
		pc.json(c, http.StatusBadRequest, app.H{"success": false, "message": "Registration expired. Please try again."})
		return
	}
	cred, err := pc.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", wUser.user.ID).Msg("passkey registration rejected")
		pc.json(c, http.StatusBadRequest, app.H{"success": false, "message": "Passkey registration failed."})
		return
	}
	if err := pc.Users.AddCredential(ctx, fromWaCred(wUser.user.ID, cred)); err != nil {
		pc.serverError(c, err)
		return
	}
	pc.json(c, http.StatusOK, app.H{"success": true, "message": "Passkey added."})
}

// ===== 登录（discoverable） =====

// POST auth/passkey/login/begin
func (pc *PasskeyController) BeginLogin(c *gin.Context) {
	if pc.WA == nil {
		pc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Passkeys are not enabled."})
		return
	}
	ctx := c.Request.Context()
	if !pc.allow(c, security.LoginKey(c.ClientIP())) {
		pc.Metrics.Login("passkey", app.LoginRateLimited)
		pc.Metrics.RateLimited("login")
		pc.json(c, http.StatusTooManyRequests, app.H{"success": false, "message": msgTooManyLogins})
		return
	}
	if !pc.precheck(c) {
		return
	}

	opts, sd, err := pc.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	if err != nil {
		pc.serverError(c, err)
		return
	}
	ceremony := uuid.NewString()
	if err := pc.Ceremonies.SaveLogin(ctx, ceremony, sd); err != nil {
		pc.serverError(c, err)
		return
	}
	pc.json(c, http.StatusOK, app.H{"success": true, "options": opts, "ceremony": ceremony})
}

// POST auth/passkey/login/finish?ceremony=
func (pc *PasskeyController) FinishLogin(c *gin.Context) {
	if !pc.precheck(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	sd, err := pc.Ceremonies.TakeLogin(ctx, c.Query("ceremony"))
	if err != nil {
		pc.json(c, http.StatusBadRequest, app.H{"success": false, "message": "Login expired. Please try again."})
		return
	}

	handler := func(rawID, _ []byte) (webauthn.User, error) {
		u, _, err := pc.Users.FindUserByCredentialID(ctx, rawID)
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("credential not found")
		}
		return pc.loadWAUser(ctx, u.ID)
	}
	user, cred, err := pc.WA.FinishPasskeyLogin(handler, *sd, c.Request)
	if err != nil {
		pc.Metrics.Login("passkey", app.LoginFailed)
		zerolog.Ctx(ctx).Warn().Err(err).Msg("passkey login rejected")
		pc.json(c, http.StatusUnauthorized, app.H{"success": false, "message": "Passkey sign-in failed."})
		return
	}
	wUser, ok := user.(*waUser)
	if !ok || !wUser.user.IsActive {
		pc.Metrics.Login("passkey", app.LoginFailed)
		pc.json(c, http.StatusUnauthorized, app.H{"success": false, "message": "Passkey sign-in failed."})
		return
	}
	if err := pc.Users.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning, pc.Now()); err != nil && !errors.Is(err, db.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("update credential counter")
	}

	sess := app.SessionFrom(c)
	if err := pc.Auth.Establish(ctx, sess, &wUser.user, false); err != nil {
		pc.serverError(c, err)
		return
	}
	pc.Metrics.Login("passkey", app.LoginSuccess)
	pc.json(c, http.StatusOK, app.H{"success": true, "redirect": popIntended(sess)})
}
