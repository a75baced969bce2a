package memory

import (
	"context"
	"sort"

	"github.com/xavierca1/leadforge/internal/entity"
)

type templateRow struct {
	template entity.EmailTemplate
	seq      int64
}

type TemplateRepository struct {
	s *Store
}

func (r *TemplateRepository) Create(_ context.Context, t *entity.EmailTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[t.ID]; ok {
		return entity.ErrConflict
	}
	r.s.templates[t.ID] = &templateRow{template: *t, seq: r.s.next()}
	return nil
}

func (r *TemplateRepository) FindByID(_ context.Context, id string) (*entity.EmailTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.templates[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	t := row.template
	return &t, nil
}

func (r *TemplateRepository) List(_ context.Context, ownerID string) ([]*entity.EmailTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []*templateRow
	for _, row := range r.s.templates {
		if row.template.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]*entity.EmailTemplate, 0, len(rows))
	for _, row := range rows {
		t := row.template
		out = append(out, &t)
	}
	return out, nil
}

func (r *TemplateRepository) Update(_ context.Context, t *entity.EmailTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.templates[t.ID]
	if !ok {
		return entity.ErrNotFound
	}
	row.template = *t
	return nil
}

func (r *TemplateRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[id]; !ok {
		return entity.ErrNotFound
	}
	for _, c := range r.s.campaigns {
		if c.campaign.TemplateID == id {
			return entity.ErrReferenced
		}
	}
	delete(r.s.templates, id)
	return nil
}

func (r *TemplateRepository) IsReferenced(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.campaigns {
		if c.campaign.TemplateID == id {
			return true, nil
		}
	}
	return false, nil
}
