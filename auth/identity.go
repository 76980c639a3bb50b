package auth

import (
	"slices"

	"constructlink/db"
	"constructlink/models"
)

// Identity is the authenticated actor of one request.
type Identity struct {
	UserID    uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProjectID *uint  `json:"projectId,omitempty"`
}

// allProjects 可以查看所有项目的角色
var allProjects = []string{
	models.RoleSystemAdmin,
	models.RoleAssetDirector,
	models.RoleFinanceDirector,
}

func NewIdentity(u *models.User) *Identity {
	return &Identity{
		UserID:    u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		ProjectID: u.CurrentProjectID,
	}
}

// HasRole is false for a nil identity.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(roles, i.Role)
}

// Visibility is the project scope for batch lookups.
func (i *Identity) Visibility() db.Visibility {
	if i == nil {
		return db.Visibility{}
	}
	if i.HasRole(allProjects...) {
		return db.Visibility{All: true}
	}
	return db.Visibility{ProjectID: i.ProjectID}
}
