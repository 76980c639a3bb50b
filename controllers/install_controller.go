package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"constructlink/app"
	"constructlink/install"
)

// 安装向导：无需登录，安装完成后跳转登录页
type InstallController struct{ *Srv }

func NewInstallController(s *Srv) *InstallController { return &InstallController{s} }

var wizardSteps = []install.Step{install.StepConnection, install.StepSchema, install.StepFinalize}

func (ic *InstallController) page(c *gin.Context, step install.Step, out *install.Outcome) {
	ic.render(c, http.StatusOK, "install", app.H{
		"Step":        step,
		"Steps":       wizardSteps,
		"Outcome":     out,
		"Environment": ic.Gate.Installer().Environment(),
		"Actions": app.H{
			"Test":     install.ActionTestDatabase,
			"Install":  install.ActionInstallDatabase,
			"Complete": install.ActionCompleteInstall,
		},
	})
}

// GET install
func (ic *InstallController) Show(c *gin.Context) {
	if ic.Gate.Installed(c.Request.Context()) {
		c.Redirect(http.StatusSeeOther, app.LoginURL)
		return
	}
	ic.page(c, install.ParseStep(c.Query("step")), nil)
}

// POST install
func (ic *InstallController) Run(c *gin.Context) {
	ctx := c.Request.Context()
	if ic.Gate.Installed(ctx) {
		c.Redirect(http.StatusSeeOther, app.LoginURL)
		return
	}
	step := install.ParseStep(c.PostForm("step"))
	if err := ic.checkCSRF(c); err != nil {
		ic.page(c, step, &install.Outcome{Step: step, Message: MsgSecurity})
		return
	}

	out := ic.Gate.Installer().Run(ctx, step, c.PostForm("action"))
	if out.Success && out.Redirect != "" {
		ic.redirect(c, out.Redirect)
		return
	}
	ic.page(c, out.Step, &out)
}
