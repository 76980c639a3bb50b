package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"constructlink/auth"
	"constructlink/session"
)

const (
	ctxSession  = "cl.session"
	ctxIdentity = "cl.identity"
	ctxUserID   = "cl.user_id"
)

// LoginURL is where unauthenticated page requests are sent.
const LoginURL = "/?route=auth/login"

// LoadSession 读取业务会话，放入 gin.Context
func LoadSession(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, session.CookieName)
		if err != nil {
			// 签名错误等情况 store 仍返回一个新会话
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("load session")
		}
		c.Set(ctxSession, sess)
		c.Next()
	}
}

// SessionFrom returns the request session loaded by LoadSession.
func SessionFrom(c *gin.Context) *sessions.Session {
	v, _ := c.Get(ctxSession)
	sess, _ := v.(*sessions.Session)
	return sess
}

// SaveSession persists every session touched during the request. It must run
// before the response body is written.
func SaveSession(c *gin.Context) error {
	return sessions.Save(c.Request, c.Writer)
}

// LoadIdentity resolves the signed-in user once per request. Anonymous
// requests carry a nil identity.
func LoadIdentity(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			c.Next()
			return
		}
		id, err := svc.Resolve(c.Request.Context(), sess)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("resolve identity")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if id != nil {
			c.Set(ctxIdentity, id)
			c.Set(ctxUserID, id.UserID)
		}
		c.Next()
	}
}

// IdentityFrom returns the signed-in user or nil.
func IdentityFrom(c *gin.Context) *auth.Identity {
	v, _ := c.Get(ctxIdentity)
	id, _ := v.(*auth.Identity)
	return id
}

// IsAJAX reports whether the caller expects JSON rather than a page.
func IsAJAX(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// RequireAuth 未登录：页面请求记住原地址并跳转登录，AJAX 返回 401
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) != nil {
			c.Next()
			return
		}
		if IsAJAX(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"success": false, "message": "Authentication required."})
			return
		}
		if sess := SessionFrom(c); sess != nil && c.Request.Method == http.MethodGet {
			sess.Values[session.KeyIntendedURL] = OriginalURI(c)
			if err := SaveSession(c); err != nil {
				zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("save session")
			}
		}
		c.Redirect(http.StatusSeeOther, LoginURL)
		c.Abort()
	}
}

// RequireRoles is a coarse allow-list guard for routes outside the generic
// resource handler.
func (a *App) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).HasRole(roles...) {
			a.Forbidden(c)
			return
		}
		c.Next()
	}
}

// Forbidden answers 403 without redirecting.
func (a *App) Forbidden(c *gin.Context) {
	if IsAJAX(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, H{"success": false, "message": "Access denied."})
		return
	}
	c.HTML(http.StatusForbidden, "error", H{
		"AppName":  a.Config.AppName,
		"Identity": IdentityFrom(c),
		"Code":     http.StatusForbidden,
		"Title":    "Access denied",
		"Message":  "You do not have permission to access this page.",
	})
	c.Abort()
}
