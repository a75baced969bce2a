package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
)

type campaignRow struct {
	campaign entity.EmailCampaign
	seq      int64
}

type recipientRow struct {
	recipient entity.CampaignRecipient
}

type CampaignRepository struct {
	s *Store
}

func cloneCampaign(c entity.EmailCampaign) *entity.EmailCampaign {
	c.ScheduledAt = cloneTime(c.ScheduledAt)
	c.StartedAt = cloneTime(c.StartedAt)
	c.CompletedAt = cloneTime(c.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *CampaignRepository) Create(_ context.Context, c *entity.EmailCampaign, leadIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[c.ID]; ok {
		return entity.ErrConflict
	}
	r.s.campaigns[c.ID] = &campaignRow{campaign: *cloneCampaign(*c), seq: r.s.next()}
	r.s.recipients[c.ID] = newRecipients(c.ID, leadIDs)
	return nil
}

func newRecipients(campaignID string, leadIDs []string) []*recipientRow {
	rows := make([]*recipientRow, 0, len(leadIDs))
	for _, id := range leadIDs {
		rows = append(rows, &recipientRow{recipient: entity.CampaignRecipient{
			CampaignID: campaignID,
			LeadID:     id,
			Status:     entity.RecipientPending,
		}})
	}
	return rows
}

func (r *CampaignRepository) FindByID(_ context.Context, id string) (*entity.EmailCampaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.campaigns[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneCampaign(row.campaign), nil
}

func (r *CampaignRepository) List(_ context.Context, creatorID, projectID string) ([]*entity.EmailCampaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []*campaignRow
	for _, row := range r.s.campaigns {
		c := row.campaign
		if c.CreatorID == creatorID && (projectID == "" || c.ProjectID == projectID) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]*entity.EmailCampaign, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneCampaign(row.campaign))
	}
	return out, nil
}

// Update writes the editable definition; status and counters are untouched.
func (r *CampaignRepository) Update(_ context.Context, c *entity.EmailCampaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.campaigns[c.ID]
	if !ok {
		return entity.ErrNotFound
	}
	cur := &row.campaign
	cur.Name, cur.Description = c.Name, c.Description
	cur.TemplateID, cur.FromEmail, cur.ReplyTo = c.TemplateID, c.FromEmail, c.ReplyTo
	cur.ScheduledAt = cloneTime(c.ScheduledAt)
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *CampaignRepository) ReplaceRecipients(_ context.Context, campaignID string, leadIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[campaignID]; !ok {
		return entity.ErrNotFound
	}
	r.s.recipients[campaignID] = newRecipients(campaignID, leadIDs)
	return nil
}

func (r *CampaignRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.s.campaigns, id)
	delete(r.s.recipients, id)
	return nil
}

func (r *CampaignRepository) TransitionStatus(_ context.Context, id string, from []entity.CampaignStatus, to entity.CampaignStatus, reason string) (*entity.EmailCampaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.campaigns[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	c := &row.campaign
	allowed := false
	for _, s := range from {
		if c.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, entity.ErrStaleState
	}
	now := time.Now().UTC()
	c.Status = to
	c.UpdatedAt = now
	switch to {
	case entity.CampaignStatusSending:
		if c.StartedAt == nil {
			c.StartedAt = &now
		}
	case entity.CampaignStatusSent:
		c.CompletedAt = &now
	case entity.CampaignStatusFailed:
		c.CompletedAt = &now
		c.FailureReason = reason
	}
	return cloneCampaign(*c), nil
}

func (r *CampaignRepository) IncrementCounter(_ context.Context, id string, counter entity.Counter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.campaigns[id]
	if !ok {
		return entity.ErrNotFound
	}
	c := &row.campaign
	switch counter {
	case entity.CounterSent:
		c.SentCount++
	case entity.CounterOpen:
		c.OpenCount++
	case entity.CounterClick:
		c.ClickCount++
	case entity.CounterReply:
		c.ReplyCount++
	case entity.CounterFailed:
		c.FailedCount++
	default:
		return entity.ErrConflict
	}
	if counter == entity.CounterSent || counter == entity.CounterFailed {
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *CampaignRepository) ListRecipients(_ context.Context, campaignID string, status entity.RecipientStatus) ([]*entity.CampaignRecipient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.CampaignRecipient
	for _, row := range r.s.recipients[campaignID] {
		if status == "" || row.recipient.Status == status {
			out = append(out, cloneRecipient(row.recipient))
		}
	}
	return out, nil
}

func (r *CampaignRepository) FindRecipient(_ context.Context, campaignID, leadID string) (*entity.CampaignRecipient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.recipients[campaignID] {
		if row.recipient.LeadID == leadID {
			return cloneRecipient(row.recipient), nil
		}
	}
	return nil, entity.ErrNotFound
}

func cloneRecipient(rec entity.CampaignRecipient) *entity.CampaignRecipient {
	rec.ClaimedAt = cloneTime(rec.ClaimedAt)
	rec.SentAt = cloneTime(rec.SentAt)
	return &rec
}

func (r *CampaignRepository) ClaimRecipient(_ context.Context, campaignID, leadID string) error {
	return r.markRecipient(campaignID, leadID, []entity.RecipientStatus{entity.RecipientPending}, func(rec *entity.CampaignRecipient) {
		now := time.Now().UTC()
		rec.Status = entity.RecipientSending
		rec.ClaimedAt = &now
	})
}

func (r *CampaignRepository) MarkRecipientSent(_ context.Context, campaignID, leadID, address, deliveryID string) error {
	return r.markRecipient(campaignID, leadID, []entity.RecipientStatus{entity.RecipientSending}, func(rec *entity.CampaignRecipient) {
		now := time.Now().UTC()
		rec.Status = entity.RecipientSent
		rec.Address = address
		rec.DeliveryID = deliveryID
		rec.SentAt = &now
	})
}

func (r *CampaignRepository) MarkRecipientFailed(_ context.Context, campaignID, leadID, reason string) error {
	return r.markRecipient(campaignID, leadID, []entity.RecipientStatus{entity.RecipientPending, entity.RecipientSending}, func(rec *entity.CampaignRecipient) {
		rec.Status = entity.RecipientFailed
		rec.Error = reason
	})
}

// markRecipient applies fn only to a recipient whose status is in from.
func (r *CampaignRepository) markRecipient(campaignID, leadID string, from []entity.RecipientStatus, fn func(*entity.CampaignRecipient)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.recipients[campaignID] {
		if row.recipient.LeadID != leadID {
			continue
		}
		if !slices.Contains(from, row.recipient.Status) {
			return entity.ErrStaleState
		}
		fn(&row.recipient)
		return nil
	}
	return entity.ErrNotFound
}

func (r *CampaignRepository) ListDue(_ context.Context, now time.Time) ([]*entity.EmailCampaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.EmailCampaign
	for _, row := range r.s.campaigns {
		if row.campaign.IsDue(now) {
			out = append(out, cloneCampaign(row.campaign))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	return out, nil
}

func (r *CampaignRepository) ListStalled(_ context.Context, idleSince time.Time) ([]*entity.EmailCampaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.EmailCampaign
	for _, row := range r.s.campaigns {
		c := row.campaign
		if c.Status == entity.CampaignStatusSending && c.UpdatedAt.Before(idleSince) {
			out = append(out, cloneCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *CampaignRepository) CountByProject(_ context.Context, projectID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countCampaigns(projectID), nil
}

func (s *Store) countCampaigns(projectID string) int {
	n := 0
	for _, row := range s.campaigns {
		if row.campaign.ProjectID == projectID {
			n++
		}
	}
	return n
}

func (r *CampaignRepository) Metrics(_ context.Context, creatorID string) (*entity.CampaignMetrics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m := &entity.CampaignMetrics{}
	for _, row := range r.s.campaigns {
		c := row.campaign
		if c.CreatorID != creatorID {
			continue
		}
		m.Campaigns++
		m.Sent += c.SentCount
		m.Opens += c.OpenCount
		m.Clicks += c.ClickCount
		m.Replies += c.ReplyCount
	}
	return m, nil
}
