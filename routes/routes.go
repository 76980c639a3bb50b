package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"constructlink/app"
	"constructlink/controllers"
	"constructlink/views"
)

func RegisterRoutes(a *app.App) {
	r := a.Router
	r.SetHTMLTemplate(views.Must())

	// 控制器与依赖
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	userCtl := controllers.NewUserController(s)
	passkeyCtl := controllers.NewPasskeyController(s)
	clientCtl := controllers.NewClientController(s)
	brandCtl := controllers.NewBrandController(s)
	disciplineCtl := controllers.NewDisciplineController(s)
	printCtl := controllers.NewPrintController(s)
	installCtl := controllers.NewInstallController(s)

	// 复用的中间件
	authMW := app.RequireAuth()
	seenMW := app.TouchLastSeen(a.Users, a.RDB, app.LastSeenThrottle, time.Now)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	r.StaticFS("/static", views.Static())

	web := r.Group("", app.RequireInstalled(a.Gate), app.LoadSession(a.Sessions), app.LoadIdentity(a.Auth))

	// ------------------------------
	// 安装向导（无需登录）
	// ------------------------------
	web.GET("/install", installCtl.Show)
	web.POST("/install", installCtl.Run)

	// ------------------------------
	// 认证（公开）
	// ------------------------------
	web.GET("/auth/login", authCtl.LoginForm)
	web.POST("/auth/login", authCtl.Login)
	web.GET("/auth/logout", authCtl.Logout)
	web.POST("/auth/logout", authCtl.Logout)
	web.GET("/auth/check", authCtl.Check)
	web.GET("/auth/forgot-password", authCtl.ForgotPassword)
	web.POST("/auth/forgot-password", authCtl.ForgotPassword)
	web.GET("/auth/reset-password", authCtl.ResetPassword)
	web.POST("/auth/reset-password", authCtl.ResetPassword)
	web.POST("/auth/passkey/login/begin", passkeyCtl.BeginLogin)
	web.POST("/auth/passkey/login/finish", passkeyCtl.FinishLogin)

	// ------------------------------
	// 需要登录
	// ------------------------------
	user := web.Group("", authMW, seenMW)
	{
		user.GET("/dashboard", userCtl.Dashboard)
		user.GET("/users/profile", userCtl.Profile)
		user.GET("/auth/change-password", authCtl.ChangePassword)
		user.POST("/auth/change-password", authCtl.ChangePassword)
		user.POST("/auth/passkey/register/begin", passkeyCtl.BeginRegistration)
		user.POST("/auth/passkey/register/finish", passkeyCtl.FinishRegistration)
	}

	// 主数据：角色检查在 Resource 内部按动作进行
	clients := user.Group("/clients")
	{
		clients.GET("", clientCtl.Index)
		clients.GET("/view", clientCtl.View)
		clients.GET("/create", clientCtl.Create)
		clients.POST("/create", clientCtl.Create)
		clients.GET("/edit", clientCtl.Edit)
		clients.POST("/edit", clientCtl.Edit)
		clients.POST("/delete", clientCtl.Remove)
		clients.POST("/toggle-status", clientCtl.ToggleStatus)
		clients.GET("/assets", clientCtl.Assets)
		clients.GET("/dropdown", clientCtl.Dropdown)
	}
	brands := user.Group("/brands")
	{
		brands.GET("", brandCtl.Index)
		brands.GET("/view", brandCtl.View)
		brands.GET("/create", brandCtl.Create)
		brands.POST("/create", brandCtl.Create)
		brands.GET("/edit", brandCtl.Edit)
		brands.POST("/edit", brandCtl.Edit)
	}
	disciplines := user.Group("/disciplines")
	{
		disciplines.GET("", disciplineCtl.Index)
		disciplines.GET("/view", disciplineCtl.View)
		disciplines.GET("/create", disciplineCtl.Create)
		disciplines.POST("/create", disciplineCtl.Create)
		disciplines.GET("/edit", disciplineCtl.Edit)
		disciplines.POST("/edit", disciplineCtl.Edit)
	}

	// ------------------------------
	// 借用单打印
	// ------------------------------
	printing := user.Group("/borrowed-tools", a.RequireRoles(controllers.PrintRoles...))
	{
		printing.GET("/print", printCtl.Print)
		printing.GET("/print-blank", printCtl.PrintBlank)
	}

	user.GET("/reports", s.NotImplemented)
	user.GET("/reports/*action", s.NotImplemented)

	r.NoRoute(app.LoadSession(a.Sessions), app.LoadIdentity(a.Auth), func(c *app.Ctx) {
		if app.IsAJAX(c) {
			c.JSON(http.StatusNotFound, app.H{"success": false, "message": "Not found."})
			return
		}
		c.HTML(http.StatusNotFound, "error", app.H{
			"AppName":  a.Config.AppName,
			"Identity": app.IdentityFrom(c),
			"Code":     http.StatusNotFound,
			"Title":    "Not found",
			"Message":  "The requested page does not exist.",
		})
	})
}

// Handler serves the router and also accepts the front-controller form
// /?route=clients/edit&id=3, which is rewritten to /clients/edit?... before
// routing. A bare / goes to the dashboard.
func Handler(a *app.App) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/" {
			route := strings.Trim(req.URL.Query().Get("route"), "/")
			if route == "" {
				route = "dashboard"
			}
			req = req.WithContext(app.WithOriginalURI(req.Context(), req.URL.RequestURI()))
			u := *req.URL
			u.Path = "/" + route
			u.RawPath = ""
			req.URL = &u
		}
		a.Router.ServeHTTP(w, req)
	})
}
