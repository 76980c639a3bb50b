package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"constructlink/install"
)

// InstallURL is the first wizard page.
const InstallURL = "/?route=install"

// paths that work before installation
var preInstallPaths = []string{"/install", "/healthz", "/metrics"}

// RequireInstalled 未安装时把所有请求引导到安装向导
func RequireInstalled(gate *install.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range preInstallPaths {
			if path == p || strings.HasPrefix(path, p+"/") {
				c.Next()
				return
			}
		}
		if gate.Installed(c.Request.Context()) {
			c.Next()
			return
		}
		if IsAJAX(c) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"success": false, "message": "Application is not installed."})
			return
		}
		c.Redirect(http.StatusSeeOther, InstallURL)
		c.Abort()
	}
}
