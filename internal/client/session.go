package client

import "camps-pdf/internal/domain"

// Principal es la identidad autenticada que devuelve el backend en el login.
type Principal struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	IsActive bool        `json:"is_active"`
}

// Session agrupa el par de tokens y el principal. O está completa o no
// existe: nunca se persiste un estado parcial.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Principal    *Principal `json:"principal"`
}

// Valid indica si la sesión está completamente establecida.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.Principal != nil
}
