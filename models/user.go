package models

import (
	"time"
)

const (
	UserTable       = "users"
	CredentialTable = "user_credentials"
)

// 角色名称与数据库中保存的值一致
const (
	RoleSystemAdmin        = "System Admin"
	RoleFinanceDirector    = "Finance Director"
	RoleAssetDirector      = "Asset Director"
	RoleProcurementOfficer = "Procurement Officer"
	RoleProjectManager     = "Project Manager"
	RoleWarehouseman       = "Warehouseman"
	RoleSiteInventoryClerk = "Site Inventory Clerk"
)

// Roles lists every known role in display order.
var Roles = []string{
	RoleSystemAdmin,
	RoleFinanceDirector,
	RoleAssetDirector,
	RoleProcurementOfficer,
	RoleProjectManager,
	RoleWarehouseman,
	RoleSiteInventoryClerk,
}

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	FullName     string `gorm:"size:200;not null" json:"fullName"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role         string `gorm:"size:50;not null;index" json:"role"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"isActive"`

	CurrentProjectID *uint    `gorm:"index" json:"currentProjectId,omitempty"`
	CurrentProject   *Project `gorm:"foreignKey:CurrentProjectID" json:"currentProject,omitempty"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `json:"-"`
}

func (User) TableName() string { return UserTable }
func (u User) Key() uint       { return u.ID }

// Credential 为每个注册的 Passkey 存档
// CredentialID / PublicKey / AAGUID 为二进制
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex;not null" json:"credentialId"`
	PublicKey       []byte    `gorm:"not null" json:"-"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	TransportsJSON  string    `gorm:"type:text" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return CredentialTable }
