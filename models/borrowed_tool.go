package models

import "time"

const (
	AssetTable        = "assets"
	BatchTable        = "borrowed_tool_batches"
	BorrowedToolTable = "borrowed_tools"
)

type Asset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Ref       string    `gorm:"size:120;uniqueIndex;not null" json:"ref"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	ClientID  *uint     `gorm:"index" json:"clientId,omitempty"`
	ProjectID *uint     `gorm:"index" json:"projectId,omitempty"`
	Status    string    `gorm:"size:30;not null;default:'available'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Asset) TableName() string { return AssetTable }

// BorrowedToolBatch 一张借用单；PrintedAt 只由打印更新
type BorrowedToolBatch struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Reference       string     `gorm:"size:50;uniqueIndex;not null" json:"reference"`
	ProjectID       uint       `gorm:"index;not null" json:"projectId"`
	Project         *Project   `json:"project,omitempty"`
	BorrowerName    string     `gorm:"size:200;not null" json:"borrowerName"`
	BorrowerContact string     `gorm:"size:100" json:"borrowerContact"`
	Purpose         string     `gorm:"type:text" json:"purpose"`
	Status          string     `gorm:"size:30;not null;default:'released'" json:"status"`
	ExpectedReturn  *time.Time `json:"expectedReturn,omitempty"`
	PrintedAt       *time.Time `json:"printedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Items []BorrowedTool `gorm:"foreignKey:BatchID" json:"items"`
}

func (BorrowedToolBatch) TableName() string { return BatchTable }

type BorrowedTool struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	BatchID    uint       `gorm:"index;not null" json:"batchId"`
	AssetID    uint       `gorm:"index;not null" json:"assetId"`
	Asset      *Asset     `json:"asset,omitempty"`
	Quantity   int        `gorm:"not null;default:1" json:"quantity"`
	Condition  string     `gorm:"size:100" json:"condition"`
	Status     string     `gorm:"size:30;not null;default:'borrowed'" json:"status"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (BorrowedTool) TableName() string { return BorrowedToolTable }

// All is every model in dependency order.
func All() []any {
	return []any{
		&Project{}, &User{}, &Credential{},
		&Client{}, &Brand{}, &Discipline{}, &EquipmentType{},
		&Asset{}, &BorrowedToolBatch{}, &BorrowedTool{},
	}
}

// RequiredTables must exist for the installation to be considered complete.
var RequiredTables = []string{
	UserTable, ProjectTable, ClientTable, BrandTable, DisciplineTable,
	EquipmentTypeTable, AssetTable, BatchTable, BorrowedToolTable, CredentialTable,
}
