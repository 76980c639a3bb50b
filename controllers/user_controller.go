package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"constructlink/app"
	"constructlink/db"
)

// UserController 当前登录用户自己的页面
type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{s} }

// GET dashboard
func (uc *UserController) Dashboard(c *gin.Context) {
	uc.render(c, http.StatusOK, "dashboard", app.H{"PrintRoles": PrintRoles})
}

// GET users/profile
func (uc *UserController) Profile(c *gin.Context) {
	id := app.IdentityFrom(c)
	u, err := uc.Users.FindUserByID(c.Request.Context(), id.UserID)
	if errors.Is(err, db.ErrNotFound) {
		uc.notFound(c)
		return
	}
	if err != nil {
		uc.serverError(c, err)
		return
	}
	n, err := uc.Users.CountCredentials(c.Request.Context(), u.ID)
	if err != nil {
		uc.serverError(c, err)
		return
	}
	uc.render(c, http.StatusOK, "profile", app.H{
		"User":            u,
		"Passkeys":        n,
		"PasskeysEnabled": uc.WA != nil,
	})
}
