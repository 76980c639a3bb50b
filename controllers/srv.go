// controllers/srv.go
package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/rs/zerolog"

	"constructlink/app"
	"constructlink/auth"
	"constructlink/config"
	"constructlink/db"
	"constructlink/install"
	"constructlink/security"
	"constructlink/session"
)

// MsgSecurity is the form error shown when the CSRF check fails.
const MsgSecurity = "Security validation failed. Please refresh and try again."

const msgServerError = "An unexpected error occurred. Please try again later."

// Srv 汇总控制器依赖
type Srv struct {
	Auth           *auth.Service
	Users          *db.Repo
	Clients        *db.ClientRepo
	Brands         *db.BrandRepo
	Disciplines    *db.DisciplineRepo
	EquipmentTypes *db.EquipmentTypeRepo
	Batches        *db.BatchRepo
	Limiter        *security.RateLimiter
	Gate           *install.Gate
	WA             *webauthn.WebAuthn
	Ceremonies     *session.CeremonyStore
	Metrics        *app.Metrics
	Cfg            config.Config
	Now            func() time.Time
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Auth:           a.Auth,
		Users:          a.Users,
		Clients:        db.NewClientRepo(a.DB),
		Brands:         db.NewBrandRepo(a.DB),
		Disciplines:    db.NewDisciplineRepo(a.DB),
		EquipmentTypes: db.NewEquipmentTypeRepo(a.DB),
		Batches:        db.NewBatchRepo(a.DB),
		Limiter:        a.Limiter,
		Gate:           a.Gate,
		WA:             a.WA,
		Ceremonies:     a.Ceremonies,
		Metrics:        a.Metrics,
		Cfg:            a.Config,
		Now:            time.Now,
	}
}

// --- helpers ---

// flash messages selected by the ?message= query parameter
var flashes = map[string]string{
	"created": "Record created successfully.",
	"updated": "Record updated successfully.",
	"deleted": "Record deleted successfully.",
}

// render merges the data every page needs and writes the template. The
// session is saved first because the CSRF token may be new.
func (s *Srv) render(c *gin.Context, status int, page string, data app.H) {
	if data == nil {
		data = app.H{}
	}
	data["AppName"] = s.Cfg.AppName
	data["Identity"] = app.IdentityFrom(c)
	if sess := app.SessionFrom(c); sess != nil {
		tok, err := security.CSRFToken(sess)
		if err != nil {
			s.serverError(c, err)
			return
		}
		data["CSRFToken"] = tok
		if err := app.SaveSession(c); err != nil {
			s.serverError(c, err)
			return
		}
	}
	if _, ok := data["Flash"]; !ok {
		if msg := flashes[c.Query("message")]; msg != "" {
			data["Flash"] = msg
		}
	}
	c.HTML(status, page, data)
}

func (s *Srv) redirect(c *gin.Context, location string) {
	if err := app.SaveSession(c); err != nil {
		s.serverError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

func (s *Srv) json(c *gin.Context, status int, obj any) {
	if err := app.SaveSession(c); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("save session")
	}
	c.JSON(status, obj)
}

func (s *Srv) errorPage(c *gin.Context, status int, title, message string) {
	if app.IsAJAX(c) {
		c.AbortWithStatusJSON(status, app.H{"success": false, "message": message})
		return
	}
	c.HTML(status, "error", app.H{
		"AppName":  s.Cfg.AppName,
		"Identity": app.IdentityFrom(c),
		"Code":     status,
		"Title":    title,
		"Message":  message,
	})
	c.Abort()
}

func (s *Srv) notFound(c *gin.Context) {
	s.errorPage(c, http.StatusNotFound, "Not found", "The requested record was not found.")
}

// serverError 记录错误，对用户只返回通用信息
func (s *Srv) serverError(c *gin.Context, err error) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
	s.errorPage(c, http.StatusInternalServerError, "Server error", msgServerError)
}

// checkCSRF validates the submitted token against the session.
func (s *Srv) checkCSRF(c *gin.Context) error {
	sess := app.SessionFrom(c)
	if sess == nil {
		return security.ErrCSRF
	}
	return security.ValidateCSRF(sess, security.TokenFromRequest(c.Request))
}

// allow 记录一次尝试；限流器不可用时放行
func (s *Srv) allow(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	err := s.Limiter.Allow(ctx, key, s.Cfg.Security.LoginMaxAttempts, s.Cfg.Security.LoginWindow)
	if security.IsSecurityError(err) {
		return false
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
	}
	return true
}

// parseID reads a positive integer id from the query string, then the form.
func parseID(c *gin.Context) (uint, bool) {
	raw := c.Query("id")
	if raw == "" {
		raw = c.PostForm("id")
	}
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// localPath 仅允许站内跳转
func localPath(u string) bool {
	return strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") && !strings.HasPrefix(u, `/\`)
}

const DashboardURL = "/?route=dashboard"
