package domain

import "time"

type AuditLog struct {
	ID          string    `json:"id"`
	DocumentID  *string   `json:"document_id,omitempty"`
	UserID      *string   `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
