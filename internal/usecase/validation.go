package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xavierca1/leadforge/internal/entity"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var companySizes = map[string]bool{
	"1-10": true, "11-50": true, "51-200": true, "201-500": true, "501-1000": true, "1001+": true,
}

func ValidateCreateLeadInput(input CreateLeadInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.ProjectID) == "" {
		errors = append(errors, ValidationError{"project_id", "is required"})
	}
	if strings.TrimSpace(input.FirstName) == "" && strings.TrimSpace(input.LastName) == "" &&
		strings.TrimSpace(input.Email) == "" {
		errors = append(errors, ValidationError{"first_name", "a name or an email is required"})
	}
	if input.Email != "" && !entity.IsValidEmail(input.Email) {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}
	errors = append(errors, validateLeadFields(input.CompanySize, input.CompanyDomain,
		input.LinkedInURL, input.WebsiteURL)...)
	return errors
}

func ValidateUpdateLeadInput(input UpdateLeadInput) []ValidationError {
	var errors []ValidationError

	if input.Email != nil && *input.Email != "" && !entity.IsValidEmail(*input.Email) {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}
	if input.Status != nil {
		st, err := entity.ParseLeadStatus(*input.Status)
		if err != nil {
			errors = append(errors, ValidationError{"status", "is unknown"})
		} else if !st.IsManualTarget() {
			errors = append(errors, ValidationError{"status", "can only be set to contacted, qualified, negotiating, converted or lost"})
		}
	}
	errors = append(errors, validateLeadFields(deref(input.CompanySize), deref(input.CompanyDomain),
		deref(input.LinkedInURL), deref(input.WebsiteURL))...)
	return errors
}

func validateLeadFields(companySize, domain, linkedin, website string) []ValidationError {
	var errors []ValidationError
	if companySize != "" && !companySizes[companySize] {
		errors = append(errors, ValidationError{"company_size", "must be one of 1-10, 11-50, 51-200, 201-500, 501-1000, 1001+"})
	}
	if domain != "" && (strings.ContainsAny(domain, " /@") || !strings.Contains(domain, ".")) {
		errors = append(errors, ValidationError{"company_domain", "must be a bare domain like acme.com"})
	}
	if linkedin != "" && !isHTTPURL(linkedin) {
		errors = append(errors, ValidationError{"linkedin_url", "must be an http(s) URL"})
	}
	if website != "" && !isHTTPURL(website) {
		errors = append(errors, ValidationError{"website_url", "must be an http(s) URL"})
	}
	return errors
}

func ValidateProjectInput(input ProjectInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.Name) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(input.Name) > 200 {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}
	if input.TargetCompanySize != "" && !companySizes[input.TargetCompanySize] {
		errors = append(errors, ValidationError{"target_company_size", "is not a known size bucket"})
	}
	if input.Config.MaxResults < 0 || input.Config.MaxResults > 1000 {
		errors = append(errors, ValidationError{"config.max_results", "must be between 0 and 1000"})
	}
	return errors
}

func ValidateTemplateInput(input TemplateInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.Name) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	}
	if strings.TrimSpace(input.Subject) == "" {
		errors = append(errors, ValidationError{"subject", "is required"})
	} else if err := checkTemplateSyntax(input.Subject); err != nil {
		errors = append(errors, ValidationError{"subject", err.Error()})
	}
	if strings.TrimSpace(input.Body) == "" {
		errors = append(errors, ValidationError{"body", "is required"})
	} else if err := checkTemplateSyntax(input.Body); err != nil {
		errors = append(errors, ValidationError{"body", err.Error()})
	}
	return errors
}

func ValidateCampaignInput(input CampaignInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.Name) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		errors = append(errors, ValidationError{"project_id", "is required"})
	}
	if input.FromEmail != "" && !entity.IsValidEmail(input.FromEmail) {
		errors = append(errors, ValidationError{"from_email", "is invalid"})
	}
	if input.ReplyTo != "" && !entity.IsValidEmail(input.ReplyTo) {
		errors = append(errors, ValidationError{"reply_to", "is invalid"})
	}
	return errors
}

// validateSchedulable holds the extra requirements for draft → scheduled.
func validateSchedulable(c *entity.EmailCampaign, recipients int) []ValidationError {
	var errors []ValidationError
	if c.TemplateID == "" {
		errors = append(errors, ValidationError{"template_id", "is required to schedule"})
	}
	if !entity.IsValidEmail(c.FromEmail) {
		errors = append(errors, ValidationError{"from_email", "a valid sender is required to schedule"})
	}
	if recipients == 0 {
		errors = append(errors, ValidationError{"lead_ids", "at least one lead is required to schedule"})
	}
	return errors
}

func ValidateLeadFilter(f entity.LeadFilter) []ValidationError {
	var errors []ValidationError
	if f.MinScore != nil && (*f.MinScore < 0 || *f.MinScore > 100) {
		errors = append(errors, ValidationError{"min_score", "must be between 0 and 100"})
	}
	if f.Status != "" {
		if _, err := entity.ParseLeadStatus(string(f.Status)); err != nil {
			errors = append(errors, ValidationError{"status", "is unknown"})
		}
	}
	switch strings.ToLower(strings.TrimSpace(f.OrderBy)) {
	case "", "score", "created_at", "company":
	default:
		errors = append(errors, ValidationError{"order_by", "must be score, created_at or company"})
	}
	if f.Limit > entity.MaxSearchLimit {
		errors = append(errors, ValidationError{"limit", fmt.Sprintf("must not exceed %d", entity.MaxSearchLimit)})
	}
	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
