package domain

import "time"

// Role determina qué acciones puede ejecutar un usuario.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

// Acciones que la tabla de permisos reconoce.
const (
	PermissionCreate      = "create"
	PermissionRead        = "read"
	PermissionUpdate      = "update"
	PermissionDelete      = "delete"
	PermissionManageUsers = "manage_users"
)

var rolePermissions = map[Role][]string{
	RoleAdmin:  {PermissionCreate, PermissionRead, PermissionUpdate, PermissionDelete, PermissionManageUsers},
	RoleUser:   {PermissionCreate, PermissionRead, PermissionUpdate},
	RoleViewer: {PermissionRead},
}

// ParseRole normaliza y valida un rol recibido por la API.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleUser, RoleViewer:
		return Role(s), true
	}
	return "", false
}

// Permissions devuelve una copia de las acciones permitidas para el rol.
func (r Role) Permissions() []string {
	perms := rolePermissions[r]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission consulta la tabla estática rol -> acciones permitidas.
// Roles desconocidos no tienen ningún permiso.
func (r Role) HasPermission(action string) bool {
	for _, p := range rolePermissions[r] {
		if p == action {
			return true
		}
	}
	return false
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// HasPermission delega en la tabla de permisos del rol; usuarios
// inactivos no conservan ningún permiso.
func (u User) HasPermission(action string) bool {
	if !u.IsActive {
		return false
	}
	return u.Role.HasPermission(action)
}
