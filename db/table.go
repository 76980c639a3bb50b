package db

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Entity is a row with a server assigned integer id.
type Entity interface {
	Key() uint
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery 列表查询：关键词 + 等值过滤 + 分页
type ListQuery struct {
	Q       string
	Filters map[string]any
	Page    int
	Size    int
}

func (q *ListQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// Pages is the number of pages needed for Total rows.
func (p Page[T]) Pages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Table holds the CRUD primitives shared by every repository.
type Table[T Entity] struct {
	DB            *gorm.DB
	SearchColumns []string
	Order         string
}

func (t Table[T]) List(ctx context.Context, q ListQuery) (Page[T], error) {
	q.normalize()
	var zero T
	tx := t.DB.WithContext(ctx).Model(&zero)

	if s := strings.TrimSpace(q.Q); s != "" && len(t.SearchColumns) > 0 {
		like := "%" + strings.ToLower(s) + "%"
		conds := make([]string, 0, len(t.SearchColumns))
		args := make([]any, 0, len(t.SearchColumns))
		for _, col := range t.SearchColumns {
			conds = append(conds, "LOWER("+col+") LIKE ?")
			args = append(args, like)
		}
		tx = tx.Where(strings.Join(conds, " OR "), args...)
	}

	// 过滤列由代码给出，不来自用户输入
	cols := make([]string, 0, len(q.Filters))
	for col := range q.Filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		tx = tx.Where(col+" = ?", q.Filters[col])
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[T]{}, err
	}

	order := t.Order
	if order == "" {
		order = "id DESC"
	}
	var items []T
	if err := tx.Order(order).
		Offset((q.Page - 1) * q.Size).
		Limit(q.Size).
		Find(&items).Error; err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: items, Total: total, Page: q.Page, Size: q.Size}, nil
}

func (t Table[T]) Find(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := t.DB.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (t Table[T]) Insert(ctx context.Context, v *T) error {
	return t.DB.WithContext(ctx).Create(v).Error
}

// Save writes every column of v, zero values included.
func (t Table[T]) Save(ctx context.Context, v *T) error {
	return t.DB.WithContext(ctx).Save(v).Error
}

func (t Table[T]) Remove(ctx context.Context, id uint) error {
	var zero T
	res := t.DB.WithContext(ctx).Delete(&zero, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Taken reports whether another row (id != exceptID) already has value in
// column, compared case-insensitively.
func (t Table[T]) Taken(ctx context.Context, column, value string, exceptID uint) (bool, error) {
	var zero T
	var n int64
	tx := t.DB.WithContext(ctx).Model(&zero).
		Where("LOWER("+column+") = ?", strings.ToLower(strings.TrimSpace(value)))
	if exceptID > 0 {
		tx = tx.Where("id <> ?", exceptID)
	}
	if err := tx.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// exists 确认记录存在，更新前使用
func (t Table[T]) exists(ctx context.Context, id uint) error {
	_, err := t.Find(ctx, id)
	return err
}
