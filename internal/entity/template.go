package entity

import (
	"time"

	"github.com/google/uuid"
)

// EmailTemplate subject and body are text/template sources rendered per lead.
type EmailTemplate struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewEmailTemplate(ownerID, name, subject, body string) *EmailTemplate {
	now := time.Now().UTC()
	return &EmailTemplate{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Subject:   subject,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
