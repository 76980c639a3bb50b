package controllers

import (
	"strings"

	"constructlink/models"
)

// 品牌与专业：无删除
var masterDataPolicy = Policy{
	ActionIndex:  {models.RoleSystemAdmin, models.RoleAssetDirector},
	ActionView:   {models.RoleSystemAdmin, models.RoleAssetDirector},
	ActionCreate: {models.RoleSystemAdmin, models.RoleAssetDirector},
	ActionEdit:   {models.RoleSystemAdmin, models.RoleAssetDirector},
}

type BrandForm struct {
	OfficialName string `form:"official_name" binding:"required,max=200"`
	Country      string `form:"country" binding:"max=100"`
	Website      string `form:"website" binding:"omitempty,url,max=255"`
	IsVerified   bool   `form:"is_verified"`
	IsActive     bool   `form:"is_active"`
}

func NewBrandController(s *Srv) *Resource[models.Brand, BrandForm] {
	return &Resource[models.Brand, BrandForm]{
		Srv:    s,
		Name:   "brands",
		Title:  "Brands",
		Policy: masterDataPolicy,
		Store:  s.Brands,
		ToForm: func(v *models.Brand) BrandForm {
			return BrandForm{
				OfficialName: v.OfficialName,
				Country:      v.Country,
				Website:      v.Website,
				IsVerified:   v.IsVerified,
				IsActive:     v.IsActive,
			}
		},
		Apply: func(f *BrandForm, v *models.Brand) {
			v.OfficialName = f.OfficialName
			v.Country = f.Country
			v.Website = f.Website
			v.IsVerified = f.IsVerified
			if v.ID != 0 {
				v.IsActive = f.IsActive
			}
		},
	}
}

type DisciplineForm struct {
	Code        string `form:"code" binding:"required,alphanum,max=20"`
	Name        string `form:"name" binding:"required,max=200"`
	Description string `form:"description" binding:"max=2000"`
	IsActive    bool   `form:"is_active"`
}

func NewDisciplineController(s *Srv) *Resource[models.Discipline, DisciplineForm] {
	return &Resource[models.Discipline, DisciplineForm]{
		Srv:    s,
		Name:   "disciplines",
		Title:  "Disciplines",
		Policy: masterDataPolicy,
		Store:  s.Disciplines,
		ToForm: func(v *models.Discipline) DisciplineForm {
			return DisciplineForm{Code: v.Code, Name: v.Name, Description: v.Description, IsActive: v.IsActive}
		},
		Apply: func(f *DisciplineForm, v *models.Discipline) {
			v.Code = strings.ToUpper(f.Code)
			v.Name = f.Name
			v.Description = f.Description
			if v.ID != 0 {
				v.IsActive = f.IsActive
			}
		},
	}
}
