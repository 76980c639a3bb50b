package models

import "time"

const (
	ProjectTable       = "projects"
	ClientTable        = "clients"
	BrandTable         = "brands"
	DisciplineTable    = "disciplines"
	EquipmentTypeTable = "equipment_types"
)

// 设备类型分类
const (
	CategoryPowerTools = "power_tools"
	CategoryHandTools  = "hand_tools"
)

type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;size:50;not null" json:"code"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Project) TableName() string { return ProjectTable }
func (p Project) Key() uint       { return p.ID }

type Client struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:200;not null;index" json:"name"`
	ContactInfo   string    `gorm:"type:text" json:"contactInfo"`
	Address       string    `gorm:"type:text" json:"address"`
	Phone         string    `gorm:"size:50" json:"phone"`
	Email         string    `gorm:"size:255" json:"email"`
	ContactPerson string    `gorm:"size:200" json:"contactPerson"`
	CompanyType   string    `gorm:"size:100;index" json:"companyType"`
	TaxID         string    `gorm:"size:100" json:"taxId"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Client) TableName() string { return ClientTable }
func (c Client) Key() uint       { return c.ID }

type Brand struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OfficialName string    `gorm:"size:200;not null;uniqueIndex" json:"officialName"`
	Country      string    `gorm:"size:100" json:"country"`
	Website      string    `gorm:"size:255" json:"website"`
	IsVerified   bool      `gorm:"not null;default:false" json:"isVerified"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Brand) TableName() string { return BrandTable }
func (b Brand) Key() uint       { return b.ID }

type Discipline struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Discipline) TableName() string { return DisciplineTable }
func (d Discipline) Key() uint       { return d.ID }

// EquipmentType 只读：用于空白借用单
type EquipmentType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Category  string    `gorm:"size:50;not null;index" json:"category"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (EquipmentType) TableName() string { return EquipmentTypeTable }
