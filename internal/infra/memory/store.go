// Package memory holds mutex-guarded in-memory repositories with the same
// semantics as the Postgres ones. Used by tests and local runs without a DB.
package memory

import (
	"sync"

	"github.com/xavierca1/leadforge/internal/entity"
)

var (
	_ entity.LeadRepository     = (*LeadRepository)(nil)
	_ entity.ProjectRepository  = (*ProjectRepository)(nil)
	_ entity.TemplateRepository = (*TemplateRepository)(nil)
	_ entity.CampaignRepository = (*CampaignRepository)(nil)
)

type Store struct {
	mu         sync.RWMutex
	leads      map[string]*leadRow
	projects   map[string]*projectRow
	templates  map[string]*templateRow
	campaigns  map[string]*campaignRow
	recipients map[string][]*recipientRow
	seq        int64

	Leads     *LeadRepository
	Projects  *ProjectRepository
	Templates *TemplateRepository
	Campaigns *CampaignRepository
}

func NewStore() *Store {
	s := &Store{
		leads:      make(map[string]*leadRow),
		projects:   make(map[string]*projectRow),
		templates:  make(map[string]*templateRow),
		campaigns:  make(map[string]*campaignRow),
		recipients: make(map[string][]*recipientRow),
	}
	s.Leads = &LeadRepository{s: s}
	s.Projects = &ProjectRepository{s: s}
	s.Templates = &TemplateRepository{s: s}
	s.Campaigns = &CampaignRepository{s: s}
	return s
}

// next returns a monotonically increasing insertion sequence.
func (s *Store) next() int64 {
	s.seq++
	return s.seq
}
