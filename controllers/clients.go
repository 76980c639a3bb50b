package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"constructlink/app"
	"constructlink/db"
	"constructlink/models"
)

// CompanyTypes are the choices offered on the client form.
var CompanyTypes = []string{"Contractor", "Subcontractor", "Supplier", "Government", "Private", "Other"}

var clientPolicy = Policy{
	ActionIndex:  {models.RoleSystemAdmin, models.RoleFinanceDirector, models.RoleProcurementOfficer, models.RoleAssetDirector},
	ActionView:   {models.RoleSystemAdmin, models.RoleFinanceDirector, models.RoleProcurementOfficer, models.RoleAssetDirector},
	ActionCreate: {models.RoleSystemAdmin, models.RoleProcurementOfficer},
	ActionEdit:   {models.RoleSystemAdmin, models.RoleProcurementOfficer},
	ActionDelete: {models.RoleSystemAdmin, models.RoleProcurementOfficer},
	ActionToggle: {models.RoleSystemAdmin, models.RoleProcurementOfficer},
}

type ClientForm struct {
	Name          string `form:"name" binding:"required,max=200"`
	ContactPerson string `form:"contact_person" binding:"max=200"`
	Email         string `form:"email" binding:"omitempty,email,max=255"`
	Phone         string `form:"phone" binding:"max=50"`
	Address       string `form:"address" binding:"max=1000"`
	ContactInfo   string `form:"contact_info" binding:"max=1000"`
	CompanyType   string `form:"company_type" binding:"omitempty,oneof=Contractor Subcontractor Supplier Government Private Other"`
	TaxID         string `form:"tax_id" binding:"max=100"`
}

type ClientController struct {
	*Resource[models.Client, ClientForm]
}

func NewClientController(s *Srv) *ClientController {
	return &ClientController{&Resource[models.Client, ClientForm]{
		Srv:    s,
		Name:   "clients",
		Title:  "Clients",
		Policy: clientPolicy,
		Store:  s.Clients,
		Delete: s.Clients.Delete,
		Search: func(c *gin.Context, q db.ListQuery) (db.Page[models.Client], error) {
			return s.Clients.Search(c.Request.Context(), db.ClientFilter{
				Q:           q.Q,
				Status:      c.Query("status"),
				CompanyType: c.Query("company_type"),
				Page:        q.Page,
				Size:        q.Size,
			})
		},
		ToForm: func(v *models.Client) ClientForm {
			return ClientForm{
				Name:          v.Name,
				ContactPerson: v.ContactPerson,
				Email:         v.Email,
				Phone:         v.Phone,
				Address:       v.Address,
				ContactInfo:   v.ContactInfo,
				CompanyType:   v.CompanyType,
				TaxID:         v.TaxID,
			}
		},
		Apply: func(f *ClientForm, v *models.Client) {
			v.Name = f.Name
			v.ContactPerson = f.ContactPerson
			v.Email = f.Email
			v.Phone = f.Phone
			v.Address = f.Address
			v.ContactInfo = f.ContactInfo
			v.CompanyType = f.CompanyType
			v.TaxID = f.TaxID
		},
		Extra: func(_ *gin.Context, data app.H) {
			data["CompanyTypes"] = CompanyTypes
		},
	}}
}

// POST clients/toggle-status
func (cc *ClientController) ToggleStatus(c *gin.Context) {
	if !cc.Policy.Allows(c, ActionToggle) {
		cc.errorPage(c, http.StatusForbidden, "Access denied", "You do not have permission to perform this action.")
		return
	}
	if err := cc.checkCSRF(c); err != nil {
		cc.json(c, http.StatusOK, app.H{"success": false, "message": MsgSecurity})
		return
	}
	id, ok := parseID(c)
	if !ok {
		cc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Client not found."})
		return
	}
	client, res, err := cc.Clients.ToggleStatus(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		cc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Client not found."})
		return
	}
	if err != nil {
		cc.serverError(c, err)
		return
	}
	cc.json(c, http.StatusOK, app.H{"success": res.Success, "message": res.Message, "is_active": client.IsActive})
}

// GET clients/assets?id=
func (cc *ClientController) Assets(c *gin.Context) {
	if !cc.Policy.Allows(c, ActionView) {
		cc.errorPage(c, http.StatusForbidden, "Access denied", "You do not have permission to perform this action.")
		return
	}
	id, ok := parseID(c)
	if !ok {
		cc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Client not found."})
		return
	}
	assets, err := cc.Clients.Assets(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		cc.json(c, http.StatusNotFound, app.H{"success": false, "message": "Client not found."})
		return
	}
	if err != nil {
		cc.serverError(c, err)
		return
	}
	cc.json(c, http.StatusOK, app.H{"success": true, "data": assets})
}

// GET clients/dropdown
func (cc *ClientController) Dropdown(c *gin.Context) {
	if !cc.Policy.Allows(c, ActionIndex) {
		cc.errorPage(c, http.StatusForbidden, "Access denied", "You do not have permission to perform this action.")
		return
	}
	clients, err := cc.Clients.Active(c.Request.Context())
	if err != nil {
		cc.serverError(c, err)
		return
	}
	type option struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	out := make([]option, 0, len(clients))
	for _, cl := range clients {
		out = append(out, option{ID: cl.ID, Name: cl.Name})
	}
	cc.json(c, http.StatusOK, app.H{"success": true, "data": out})
}
