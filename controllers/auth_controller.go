package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"constructlink/app"
	"constructlink/security"
	"constructlink/session"
)

const (
	msgTooManyLogins = "Too many login attempts. Please try again later."
	msgTooManyResets = "Too many password reset requests. Please try again later."
)

// login page notices keyed by query parameter
var loginNotices = map[string]string{
	"installed": "Installation complete. Please log in with the administrator account.",
	"reset":     "Your password has been reset. Please log in.",
	"changed":   "Your password has been changed. Please log in again.",
	"logout":    "You have been logged out.",
}

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{s} }

type loginForm struct {
	Username   string `form:"username" binding:"required,max=100"`
	Password   string `form:"password" binding:"required" sanitize:"-"`
	RememberMe bool   `form:"remember_me"`
}

func (ac *AuthController) loginPage(c *gin.Context, status int, form loginForm, errMsg string) {
	data := app.H{"Username": form.Username, "Error": errMsg, "Passkeys": ac.WA != nil}
	for k, msg := range loginNotices {
		if c.Query(k) == "1" {
			data["Flash"] = msg
		}
	}
	ac.render(c, status, "login", data)
}

// GET auth/login
func (ac *AuthController) LoginForm(c *gin.Context) {
	if app.IdentityFrom(c) != nil {
		c.Redirect(http.StatusSeeOther, DashboardURL)
		return
	}
	ac.loginPage(c, http.StatusOK, loginForm{}, "")
}

// POST auth/login 顺序：限流 -> CSRF -> 校验凭据
func (ac *AuthController) Login(c *gin.Context) {
	ctx := c.Request.Context()
	if !ac.allow(c, security.LoginKey(c.ClientIP())) {
		ac.Metrics.Login("password", app.LoginRateLimited)
		ac.Metrics.RateLimited("login")
		ac.loginPage(c, http.StatusTooManyRequests, loginForm{}, msgTooManyLogins)
		return
	}

	csrfErr := ac.checkCSRF(c)
	var form loginForm
	errs := bindForm(c, &form)
	if csrfErr != nil {
		ac.Metrics.Login("password", app.LoginBadCSRF)
		ac.loginPage(c, http.StatusOK, form, MsgSecurity)
		return
	}
	if len(errs) > 0 {
		ac.Metrics.Login("password", app.LoginFailed)
		ac.loginPage(c, http.StatusOK, form, "Please enter your username and password.")
		return
	}

	sess := app.SessionFrom(c)
	res, err := ac.Auth.Login(ctx, sess, form.Username, form.Password, form.RememberMe)
	if err != nil {
		ac.serverError(c, err)
		return
	}
	if !res.Success {
		ac.Metrics.Login("password", app.LoginFailed)
		ac.loginPage(c, http.StatusOK, form, res.Message)
		return
	}
	ac.Metrics.Login("password", app.LoginSuccess)
	ac.redirect(c, popIntended(sess))
}

// popIntended 取出登录前访问的地址，只接受站内路径
func popIntended(sess *sessions.Session) string {
	target := session.String(sess, session.KeyIntendedURL)
	delete(sess.Values, session.KeyIntendedURL)
	if target == "" || !localPath(target) {
		return DashboardURL
	}
	return target
}

// GET|POST auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	if sess := app.SessionFrom(c); sess != nil {
		ac.Auth.Logout(sess)
	}
	ac.redirect(c, app.LoginURL+"&logout=1")
}

// GET auth/check
func (ac *AuthController) Check(c *gin.Context) {
	out := app.H{"success": true, "authenticated": false}
	if id := app.IdentityFrom(c); id != nil {
		out["authenticated"] = true
		out["user"] = id
	}
	if sess := app.SessionFrom(c); sess != nil {
		tok, err := security.CSRFToken(sess)
		if err != nil {
			ac.serverError(c, err)
			return
		}
		out["csrf_token"] = tok
	}
	ac.json(c, http.StatusOK, out)
}

type changePasswordForm struct {
	CurrentPassword string `form:"current_password" binding:"required" sanitize:"-"`
	NewPassword     string `form:"new_password" binding:"required" sanitize:"-"`
	ConfirmPassword string `form:"confirm_password" binding:"required" sanitize:"-"`
}

// GET|POST auth/change-password
func (ac *AuthController) ChangePassword(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		ac.render(c, http.StatusOK, "change_password", nil)
		return
	}
	csrfErr := ac.checkCSRF(c)
	var form changePasswordForm
	errs := bindForm(c, &form)
	if csrfErr != nil {
		ac.render(c, http.StatusOK, "change_password", app.H{"Errors": FieldErrors{formErrorKey: MsgSecurity}})
		return
	}
	if len(errs) > 0 {
		ac.render(c, http.StatusOK, "change_password", app.H{"Errors": errs})
		return
	}

	id := app.IdentityFrom(c)
	res, err := ac.Auth.ChangePassword(c.Request.Context(), id.UserID, form.CurrentPassword, form.NewPassword, form.ConfirmPassword)
	if err != nil {
		ac.serverError(c, err)
		return
	}
	if !res.Success {
		ac.render(c, http.StatusOK, "change_password", app.H{"Errors": resultErrors(res)})
		return
	}
	// 其他会话已被撤销，当前会话也要求重新登录
	ac.Auth.Logout(app.SessionFrom(c))
	ac.redirect(c, app.LoginURL+"&changed=1")
}

type forgotPasswordForm struct {
	Email string `form:"email" binding:"required,email,max=255"`
}

// GET|POST auth/forgot-password
func (ac *AuthController) ForgotPassword(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		ac.render(c, http.StatusOK, "forgot_password", nil)
		return
	}
	ctx := c.Request.Context()
	if !ac.allow(c, security.ForgotPasswordKey(c.ClientIP())) {
		ac.Metrics.RateLimited("forgot_password")
		ac.render(c, http.StatusTooManyRequests, "forgot_password", app.H{"Errors": FieldErrors{formErrorKey: msgTooManyResets}})
		return
	}

	csrfErr := ac.checkCSRF(c)
	var form forgotPasswordForm
	errs := bindForm(c, &form)
	if csrfErr != nil {
		errs = FieldErrors{formErrorKey: MsgSecurity}
	}
	if len(errs) > 0 {
		ac.render(c, http.StatusOK, "forgot_password", app.H{"Errors": errs, "Email": form.Email})
		return
	}

	res, err := ac.Auth.RequestPasswordReset(ctx, app.SessionFrom(c), form.Email)
	if err != nil {
		ac.serverError(c, err)
		return
	}
	ac.render(c, http.StatusOK, "forgot_password", app.H{"Flash": res.Message})
}

type resetPasswordForm struct {
	Token           string `form:"token" sanitize:"-"`
	NewPassword     string `form:"new_password" binding:"required" sanitize:"-"`
	ConfirmPassword string `form:"confirm_password" binding:"required" sanitize:"-"`
}

// GET|POST auth/reset-password?token=
func (ac *AuthController) ResetPassword(c *gin.Context) {
	sess := app.SessionFrom(c)
	if c.Request.Method == http.MethodGet {
		token := c.Query("token")
		data := app.H{"Token": token}
		if !ac.Auth.ValidResetToken(sess, token) {
			data["Invalid"] = true
			data["Errors"] = FieldErrors{formErrorKey: "Invalid or expired reset token."}
		}
		ac.render(c, http.StatusOK, "reset_password", data)
		return
	}

	csrfErr := ac.checkCSRF(c)
	var form resetPasswordForm
	errs := bindForm(c, &form)
	if form.Token == "" {
		form.Token = c.Query("token")
	}
	if csrfErr != nil {
		ac.render(c, http.StatusOK, "reset_password", app.H{"Token": form.Token, "Errors": FieldErrors{formErrorKey: MsgSecurity}})
		return
	}
	if len(errs) > 0 {
		ac.render(c, http.StatusOK, "reset_password", app.H{"Token": form.Token, "Errors": errs})
		return
	}

	res, err := ac.Auth.ResetPassword(c.Request.Context(), sess, form.Token, form.NewPassword, form.ConfirmPassword)
	if err != nil {
		ac.serverError(c, err)
		return
	}
	if !res.Success {
		ac.render(c, http.StatusOK, "reset_password", app.H{"Token": form.Token, "Errors": resultErrors(res)})
		return
	}
	ac.Auth.Logout(sess)
	ac.redirect(c, app.LoginURL+"&reset=1")
}
