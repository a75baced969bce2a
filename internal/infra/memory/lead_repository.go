package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
)

type leadRow struct {
	lead entity.Lead
	seq  int64
}

type LeadRepository struct {
	s *Store
}

func cloneLead(l entity.Lead) *entity.Lead {
	if l.Score != nil {
		score := *l.Score
		l.Score = &score
	}
	if l.DeletedAt != nil {
		t := *l.DeletedAt
		l.DeletedAt = &t
	}
	return &l
}

func (r *LeadRepository) Create(_ context.Context, l *entity.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[l.ID]; ok {
		return entity.ErrConflict
	}
	r.s.leads[l.ID] = &leadRow{lead: *cloneLead(*l), seq: r.s.next()}
	return nil
}

func (r *LeadRepository) FindByID(_ context.Context, id string) (*entity.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.leads[id]
	if !ok || row.lead.DeletedAt != nil {
		return nil, entity.ErrNotFound
	}
	return cloneLead(row.lead), nil
}

func (r *LeadRepository) FindByIDs(_ context.Context, ids []string) ([]*entity.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Lead
	for _, id := range ids {
		if row, ok := r.s.leads[id]; ok && row.lead.DeletedAt == nil {
			out = append(out, cloneLead(row.lead))
		}
	}
	return out, nil
}

// Update writes the editable profile fields only; status, score and
// enrichment results change through Transition.
func (r *LeadRepository) Update(_ context.Context, l *entity.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.leads[l.ID]
	if !ok || row.lead.DeletedAt != nil {
		return entity.ErrNotFound
	}
	cur := &row.lead
	cur.FirstName, cur.LastName, cur.Title = l.FirstName, l.LastName, l.Title
	cur.Email, cur.Phone = l.Email, l.Phone
	cur.LinkedInURL, cur.TwitterURL, cur.WebsiteURL = l.LinkedInURL, l.TwitterURL, l.WebsiteURL
	cur.Company, cur.CompanyDomain, cur.CompanySize = l.Company, l.CompanyDomain, l.CompanySize
	cur.Industry, cur.Location, cur.Notes = l.Industry, l.Location, l.Notes
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LeadRepository) Transition(_ context.Context, id string, from []entity.LeadStatus, patch entity.LeadPatch) (*entity.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.leads[id]
	if !ok || row.lead.DeletedAt != nil {
		return nil, entity.ErrNotFound
	}
	if !containsStatus(from, row.lead.Status) {
		return nil, entity.ErrStaleState
	}
	patch.Apply(&row.lead)
	row.lead.UpdatedAt = time.Now().UTC()
	return cloneLead(row.lead), nil
}

func (r *LeadRepository) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.leads[id]
	if !ok || row.lead.DeletedAt != nil {
		return entity.ErrNotFound
	}
	now := time.Now().UTC()
	row.lead.DeletedAt = &now
	row.lead.UpdatedAt = now
	return nil
}

func (r *LeadRepository) Search(_ context.Context, ownerID string, f entity.LeadFilter) ([]*entity.Lead, error) {
	f = f.Normalize()
	terms := f.KeywordTerms()

	r.s.mu.RLock()
	var rows []*leadRow
	for _, row := range r.s.leads {
		if row.lead.OwnerID == ownerID && row.lead.DeletedAt == nil && matches(&row.lead, f, terms) {
			rows = append(rows, row)
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j], f) })

	if f.Offset >= len(rows) {
		return []*entity.Lead{}, nil
	}
	rows = rows[f.Offset:]
	if len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	out := make([]*entity.Lead, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneLead(row.lead))
	}
	return out, nil
}

func matches(l *entity.Lead, f entity.LeadFilter, terms []string) bool {
	if f.ProjectID != "" && l.ProjectID != f.ProjectID {
		return false
	}
	if !containsFold(l.Industry, f.Industry) || !containsFold(l.Title, f.Title) || !containsFold(l.Location, f.Location) {
		return false
	}
	if f.CompanySize != "" && l.CompanySize != f.CompanySize {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.MinScore != nil && (l.Score == nil || *l.Score < *f.MinScore) {
		return false
	}
	for _, term := range terms {
		if !containsFold(l.FirstName, term) && !containsFold(l.LastName, term) &&
			!containsFold(l.Company, term) && !containsFold(l.Title, term) && !containsFold(l.Notes, term) {
			return false
		}
	}
	return true
}

// containsFold is a case-insensitive substring test; an empty needle matches.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// less orders by the requested key, unscored leads always last for score,
// then newest first, then insertion order for a stable result.
func less(a, b *leadRow, f entity.LeadFilter) bool {
	asc := f.OrderDir == "asc"
	switch f.OrderBy {
	case "created_at":
		if !a.lead.CreatedAt.Equal(b.lead.CreatedAt) {
			return a.lead.CreatedAt.Before(b.lead.CreatedAt) == asc
		}
		return a.seq < b.seq
	case "company":
		ca, cb := strings.ToLower(a.lead.Company), strings.ToLower(b.lead.Company)
		if ca != cb {
			return (ca < cb) == asc
		}
	default:
		sa, sb := a.lead.Score, b.lead.Score
		switch {
		case sa != nil && sb == nil:
			return true
		case sa == nil && sb != nil:
			return false
		case sa != nil && sb != nil && *sa != *sb:
			return (*sa < *sb) == asc
		}
	}
	if !a.lead.CreatedAt.Equal(b.lead.CreatedAt) {
		return a.lead.CreatedAt.After(b.lead.CreatedAt)
	}
	return a.seq > b.seq
}

func (r *LeadRepository) KnownEmailsByDomain(_ context.Context, ownerID, domain string, limit int) ([]string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, row := range r.sortedLeads() {
		email := strings.ToLower(row.lead.Email)
		if row.lead.OwnerID != ownerID || row.lead.DeletedAt != nil || !entity.IsValidEmail(email) || !strings.HasSuffix(email, "@"+domain) || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// sortedLeads returns rows in insertion order; caller holds the lock.
func (r *LeadRepository) sortedLeads() []*leadRow {
	rows := make([]*leadRow, 0, len(r.s.leads))
	for _, row := range r.s.leads {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (r *LeadRepository) CountByProject(_ context.Context, projectID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countLeads(projectID), nil
}

func (s *Store) countLeads(projectID string) int {
	n := 0
	for _, row := range s.leads {
		if row.lead.ProjectID == projectID && row.lead.DeletedAt == nil {
			n++
		}
	}
	return n
}

func (r *LeadRepository) ExistsInProject(_ context.Context, projectID, email, linkedinURL string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.leads {
		l := row.lead
		if l.ProjectID != projectID || l.DeletedAt != nil {
			continue
		}
		if email != "" && strings.EqualFold(l.Email, email) {
			return true, nil
		}
		if linkedinURL != "" && l.LinkedInURL == linkedinURL {
			return true, nil
		}
	}
	return false, nil
}

func (r *LeadRepository) MarkStaleEnrichments(_ context.Context, olderThan time.Time, reason string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, row := range r.s.leads {
		l := &row.lead
		if l.DeletedAt == nil && l.Status == entity.LeadStatusEnriching && l.UpdatedAt.Before(olderThan) {
			l.Status = entity.LeadStatusEnrichmentFailed
			l.FailureReason = reason
			l.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

var contactedStatuses = []entity.LeadStatus{
	entity.LeadStatusContacted, entity.LeadStatusQualified,
	entity.LeadStatusNegotiating, entity.LeadStatusConverted,
}

func (r *LeadRepository) Stats(_ context.Context, ownerID, projectID string) (*entity.LeadStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stats := entity.NewLeadStats()
	for _, row := range r.s.leads {
		l := row.lead
		if l.OwnerID != ownerID || l.DeletedAt != nil || (projectID != "" && l.ProjectID != projectID) {
			continue
		}
		stats.Total++
		if l.Score != nil {
			if *l.Score >= 80 {
				stats.HighQuality++
			}
			stats.BandCounts[entity.ScoreBand(*l.Score)]++
			stats.ScoreCounts[*l.Score]++
		}
		stats.BySource[entity.SourceLabel(l.Source)]++
		stats.ByStatus[l.Status]++
		if containsStatus(contactedStatuses, l.Status) {
			stats.Contacted++
		}
	}
	return stats, nil
}

func (r *LeadRepository) Latest(_ context.Context, projectID string, limit int) ([]*entity.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := r.sortedLeads()
	var out []*entity.Lead
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		l := rows[i].lead
		if l.ProjectID == projectID && l.DeletedAt == nil {
			out = append(out, cloneLead(l))
		}
	}
	return out, nil
}

func containsStatus(list []entity.LeadStatus, s entity.LeadStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
