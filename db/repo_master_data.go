package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"constructlink/models"
)

type BrandRepo struct {
	Table[models.Brand]
}

func NewBrandRepo(gdb *gorm.DB) *BrandRepo {
	return &BrandRepo{Table[models.Brand]{
		DB:            gdb,
		SearchColumns: []string{"official_name", "country"},
		Order:         "official_name ASC",
	}}
}

func (r *BrandRepo) Create(ctx context.Context, b *models.Brand) (Result, error) {
	taken, err := r.Taken(ctx, "official_name", b.OfficialName, 0)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("official_name", "A brand with this name already exists."), nil
	}
	b.IsActive = true
	if err := r.Insert(ctx, b); err != nil {
		return Result{}, fmt.Errorf("create brand: %w", err)
	}
	return OK("Brand created successfully."), nil
}

func (r *BrandRepo) Update(ctx context.Context, b *models.Brand) (Result, error) {
	if err := r.exists(ctx, b.ID); err != nil {
		return Result{}, err
	}
	taken, err := r.Taken(ctx, "official_name", b.OfficialName, b.ID)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("official_name", "A brand with this name already exists."), nil
	}
	if err := r.Save(ctx, b); err != nil {
		return Result{}, fmt.Errorf("update brand %d: %w", b.ID, err)
	}
	return OK("Brand updated successfully."), nil
}

type DisciplineRepo struct {
	Table[models.Discipline]
}

func NewDisciplineRepo(gdb *gorm.DB) *DisciplineRepo {
	return &DisciplineRepo{Table[models.Discipline]{
		DB:            gdb,
		SearchColumns: []string{"code", "name"},
		Order:         "code ASC",
	}}
}

// 代码统一大写保存
func (r *DisciplineRepo) Create(ctx context.Context, d *models.Discipline) (Result, error) {
	d.Code = strings.ToUpper(d.Code)
	taken, err := r.Taken(ctx, "code", d.Code, 0)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("code", "A discipline with this code already exists."), nil
	}
	d.IsActive = true
	if err := r.Insert(ctx, d); err != nil {
		return Result{}, fmt.Errorf("create discipline: %w", err)
	}
	return OK("Discipline created successfully."), nil
}

func (r *DisciplineRepo) Update(ctx context.Context, d *models.Discipline) (Result, error) {
	if err := r.exists(ctx, d.ID); err != nil {
		return Result{}, err
	}
	d.Code = strings.ToUpper(d.Code)
	taken, err := r.Taken(ctx, "code", d.Code, d.ID)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("code", "A discipline with this code already exists."), nil
	}
	if err := r.Save(ctx, d); err != nil {
		return Result{}, fmt.Errorf("update discipline %d: %w", d.ID, err)
	}
	return OK("Discipline updated successfully."), nil
}

type EquipmentTypeRepo struct{ DB *gorm.DB }

func NewEquipmentTypeRepo(gdb *gorm.DB) *EquipmentTypeRepo { return &EquipmentTypeRepo{DB: gdb} }

func (r *EquipmentTypeRepo) ByCategory(ctx context.Context, category string) ([]models.EquipmentType, error) {
	var ts []models.EquipmentType
	err := r.DB.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		Order("name ASC").
		Find(&ts).Error
	return ts, err
}
