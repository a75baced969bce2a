package entity

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContactableConfidence is the minimum predicted-email confidence for a lead
// without a real email to be considered contactable.
const ContactableConfidence = 0.7

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail is the basic syntactic check used for both real and predicted emails.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

type Lead struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`

	Email           string  `json:"email"`
	PredictedEmail  string  `json:"predicted_email"`
	EmailConfidence float64 `json:"email_confidence"`
	EmailFormat     string  `json:"email_format,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	LinkedInURL     string  `json:"linkedin_url,omitempty"`
	TwitterURL      string  `json:"twitter_url,omitempty"`
	WebsiteURL      string  `json:"website_url,omitempty"`

	Company       string `json:"company"`
	CompanyDomain string `json:"company_domain"`
	CompanySize   string `json:"company_size"`
	Industry      string `json:"industry"`
	Location      string `json:"location"`

	Status         LeadStatus     `json:"status"`
	Score          *int           `json:"score"`
	EnrichmentData EnrichmentData `json:"enrichment_data"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	Source         string         `json:"source,omitempty"`
	Notes          string         `json:"notes,omitempty"`

	ProjectID string     `json:"project_id"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

func NewLead(projectID, ownerID string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:        uuid.New().String(),
		Status:    LeadStatusNew,
		ProjectID: projectID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// HasValidEmail reports whether the lead carries a real, syntactically valid email.
func (l *Lead) HasValidEmail() bool {
	return IsValidEmail(l.Email)
}

// IsContactable: a valid real email, or a valid predicted email with
// confidence of at least ContactableConfidence.
func (l *Lead) IsContactable() bool {
	if l.HasValidEmail() {
		return true
	}
	return IsValidEmail(l.PredictedEmail) && l.EmailConfidence >= ContactableConfidence
}

// ContactAddress returns the address a campaign should send to, or "" when
// the lead is not contactable.
func (l *Lead) ContactAddress() string {
	if l.HasValidEmail() {
		return strings.TrimSpace(l.Email)
	}
	if l.IsContactable() {
		return strings.TrimSpace(l.PredictedEmail)
	}
	return ""
}

func (l *Lead) Features() LeadFeatures {
	return LeadFeatures{
		Title:           l.Title,
		Company:         l.Company,
		CompanyDomain:   l.CompanyDomain,
		CompanySize:     l.CompanySize,
		Industry:        l.Industry,
		Location:        l.Location,
		HasEmail:        l.IsContactable(),
		HasLinkedIn:     l.LinkedInURL != "",
		HasPhone:        l.Phone != "",
		EmailConfidence: l.EmailConfidence,
	}
}

// ScoreBand maps a score to its dashboard label.
func ScoreBand(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Very Good"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Poor"
	}
}

// ClampScore forces a raw adapter score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EnrichmentData holds what each known producer attached to a lead.
// Unknown enrichment sources are kept verbatim under External.
type EnrichmentData struct {
	ScoreExplanation *ScoreExplanation         `json:"score_explanation,omitempty"`
	EmailPrediction  *EmailPrediction          `json:"email_prediction,omitempty"`
	External         map[string]json.RawMessage `json:"external,omitempty"`
}

func (d EnrichmentData) IsZero() bool {
	return d.ScoreExplanation == nil && d.EmailPrediction == nil && len(d.External) == 0
}

type ScoreExplanation struct {
	Score   int                    `json:"score"`
	Band    string                 `json:"band"`
	Reasons []string               `json:"reasons,omitempty"`
	Factors map[string]ScoreFactor `json:"factors,omitempty"`
}

// LeadPatch describes one atomic lead state change. Nil fields are left untouched.
type LeadPatch struct {
	Status          LeadStatus
	Score           *int
	PredictedEmail  *string
	EmailConfidence *float64
	EmailFormat     *string
	EnrichmentData  *EnrichmentData
	FailureReason   *string
}

// Apply mutates l in memory the same way the store applies the patch.
func (p LeadPatch) Apply(l *Lead) {
	l.Status = p.Status
	if p.Score != nil {
		s := *p.Score
		l.Score = &s
	}
	if p.PredictedEmail != nil {
		l.PredictedEmail = *p.PredictedEmail
	}
	if p.EmailConfidence != nil {
		l.EmailConfidence = *p.EmailConfidence
	}
	if p.EmailFormat != nil {
		l.EmailFormat = *p.EmailFormat
	}
	if p.EnrichmentData != nil {
		l.EnrichmentData = *p.EnrichmentData
	}
	if p.FailureReason != nil {
		l.FailureReason = *p.FailureReason
	}
}

type LeadFilter struct {
	ProjectID   string     `json:"project_id"`
	Industry    string     `json:"industry"`
	Title       string     `json:"title"`
	Location    string     `json:"location"`
	CompanySize string     `json:"company_size"`
	MinScore    *int       `json:"min_score"`
	Keywords    string     `json:"keywords"`
	Status      LeadStatus `json:"status"`
	OrderBy     string     `json:"order_by"`
	OrderDir    string     `json:"order_dir"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// Normalize fills paging defaults and lower-cases the ordering keys.
func (f LeadFilter) Normalize() LeadFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.OrderBy = strings.ToLower(strings.TrimSpace(f.OrderBy))
	f.OrderDir = strings.ToLower(strings.TrimSpace(f.OrderDir))
	if f.OrderDir != "asc" {
		f.OrderDir = "desc"
	}
	return f
}

// KeywordTerms splits the free-text keyword filter into lower-cased terms.
func (f LeadFilter) KeywordTerms() []string {
	return strings.Fields(strings.ToLower(f.Keywords))
}

// LeadStats aggregates a lead scope. ScoreCounts is keyed by exact score and
// skips unscored leads.
type LeadStats struct {
	Total       int                `json:"total_leads"`
	HighQuality int                `json:"high_quality_leads"`
	Contacted   int                `json:"leads_contacted"`
	BandCounts  map[string]int     `json:"score_bands"`
	ScoreCounts map[int]int        `json:"-"`
	BySource    map[string]int     `json:"by_source"`
	ByStatus    map[LeadStatus]int `json:"by_status"`
}

// NewLeadStats returns stats with every breakdown map allocated.
func NewLeadStats() *LeadStats {
	return &LeadStats{
		BandCounts:  map[string]int{},
		ScoreCounts: map[int]int{},
		BySource:    map[string]int{},
		ByStatus:    map[LeadStatus]int{},
	}
}

const SourceLabelUnknown = "unknown"

// SourceLabel groups leads with no recorded source under "unknown".
func SourceLabel(source string) string {
	if source == "" {
		return SourceLabelUnknown
	}
	return source
}
