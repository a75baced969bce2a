package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/leadforge/internal/entity"
)

func NewTaskID() string {
	return uuid.New().String()
}

type EnrichTask struct {
	TaskID      string    `json:"task_id"`
	LeadID      string    `json:"lead_id"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

type CampaignTask struct {
	TaskID      string    `json:"task_id"`
	CampaignID  string    `json:"campaign_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type ScrapeTask struct {
	TaskID    string               `json:"task_id"`
	ProjectID string               `json:"project_id"`
	OwnerID   string               `json:"owner_id"`
	Request   entity.ScrapeRequest `json:"request"`
}

// ImportTask carries the raw CSV upload.
type ImportTask struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
	OwnerID   string `json:"owner_id"`
	CSV       []byte `json:"csv"`
}
