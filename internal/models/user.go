package models

// UserRole represents the institutional profile carried by the role token.
type UserRole string

const (
	RoleEscola          UserRole = "ESCOLA"
	RoleDRE             UserRole = "DRE"
	RoleCODAE           UserRole = "CODAE"
	RoleTerceirizada    UserRole = "TERCEIRIZADA"
	RoleNutrisupervisor UserRole = "NUTRISUPERVISOR"
	RoleDILOG           UserRole = "DILOG"
	RoleDistribuidor    UserRole = "DISTRIBUIDOR"
	// RoleSistema is used by batch sweeps.
	RoleSistema UserRole = "SISTEMA"
)

// Actor identifies who is applying a transition.
type Actor struct {
	ID            string   `json:"id"`
	Role          UserRole `json:"role"`
	InstitutionID string   `json:"institution_id,omitempty"`
	Name          string   `json:"name,omitempty"`
}

// SystemActor returns the actor used by scheduled sweeps.
func SystemActor() Actor {
	return Actor{ID: "sistema", Role: RoleSistema, Name: "Sistema"}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
