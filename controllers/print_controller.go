package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"constructlink/app"
	"constructlink/db"
	"constructlink/models"
)

// PrintRoles may print borrowed tool forms.
var PrintRoles = []string{
	models.RoleSystemAdmin,
	models.RoleAssetDirector,
	models.RoleProjectManager,
	models.RoleWarehouseman,
	models.RoleSiteInventoryClerk,
}

type PrintController struct{ *Srv }

func NewPrintController(s *Srv) *PrintController { return &PrintController{s} }

// GET borrowed-tools/print?id=
func (pc *PrintController) Print(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		pc.notFound(c)
		return
	}
	ctx := c.Request.Context()
	batch, err := pc.Batches.FindForPrint(ctx, id, app.IdentityFrom(c).Visibility())
	if errors.Is(err, db.ErrNotFound) {
		pc.notFound(c)
		return
	}
	if err != nil {
		pc.serverError(c, err)
		return
	}

	// 每次打印都覆盖 printed_at；失败只记日志
	now := pc.Now()
	if err := pc.Batches.MarkPrinted(ctx, batch.ID, now); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Uint("batch_id", batch.ID).Msg("mark printed")
	} else {
		batch.PrintedAt = &now
		pc.Metrics.Printed()
	}
	pc.render(c, http.StatusOK, "borrowed_tools_print", app.H{"Batch": batch, "Title": "Borrowed tools " + batch.Reference})
}

// GET borrowed-tools/print-blank
func (pc *PrintController) PrintBlank(c *gin.Context) {
	ctx := c.Request.Context()
	power, err := pc.EquipmentTypes.ByCategory(ctx, models.CategoryPowerTools)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("load power tool types")
		power = nil
	}
	hand, err := pc.EquipmentTypes.ByCategory(ctx, models.CategoryHandTools)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("load hand tool types")
		hand = nil
	}
	pc.render(c, http.StatusOK, "borrowed_tools_print_blank", app.H{
		"PowerTools": power,
		"HandTools":  hand,
		"Rows":       blankRows,
		"Title":      "Blank borrowed tools form",
	})
}

// blankRows numbers the empty lines at the bottom of the blank form.
var blankRows = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// GET reports/*
func (s *Srv) NotImplemented(c *gin.Context) {
	s.errorPage(c, http.StatusNotImplemented, "Not implemented", "Reports are not available yet.")
}
