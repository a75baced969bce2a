package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
)

type projectRow struct {
	project entity.Project
	seq     int64
}

type ProjectRepository struct {
	s *Store
}

func (r *ProjectRepository) Create(_ context.Context, p *entity.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[p.ID]; ok {
		return entity.ErrConflict
	}
	r.s.projects[p.ID] = &projectRow{project: *p, seq: r.s.next()}
	return nil
}

func (r *ProjectRepository) FindByID(_ context.Context, id string) (*entity.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.projects[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	p := row.project
	return &p, nil
}

// List returns the owner's projects, newest first.
func (r *ProjectRepository) List(_ context.Context, ownerID string) ([]*entity.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []*projectRow
	for _, row := range r.s.projects {
		if row.project.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]*entity.Project, 0, len(rows))
	for _, row := range rows {
		p := row.project
		out = append(out, &p)
	}
	return out, nil
}

func (r *ProjectRepository) Update(_ context.Context, p *entity.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.projects[p.ID]
	if !ok {
		return entity.ErrNotFound
	}
	// counters are owned by the store
	updated := *p
	updated.LeadCount = row.project.LeadCount
	updated.EmailSentCount = row.project.EmailSentCount
	row.project = updated
	return nil
}

func (r *ProjectRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return entity.ErrNotFound
	}
	if r.s.countLeads(id) > 0 || r.s.countCampaigns(id) > 0 {
		return entity.ErrReferenced
	}
	delete(r.s.projects, id)
	return nil
}

func (r *ProjectRepository) RefreshLeadCount(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.projects[id]
	if !ok {
		return entity.ErrNotFound
	}
	row.project.LeadCount = r.s.countLeads(id)
	row.project.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ProjectRepository) IncrementEmailSent(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.projects[id]
	if !ok {
		return entity.ErrNotFound
	}
	row.project.EmailSentCount++
	return nil
}
