package entity

import "fmt"

// LeadStatus is the lead lifecycle state:
//
//	new ──► enriching ──► scored ──► contacted ──► qualified ──► negotiating ──► converted
//	            │   ▲
//	            ▼   │ (operator retry)
//	     enrichment_failed
//
// lost is reachable from every non-terminal state. converted and lost are terminal.
type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "new"
	LeadStatusEnriching        LeadStatus = "enriching"
	LeadStatusScored           LeadStatus = "scored"
	LeadStatusEnrichmentFailed LeadStatus = "enrichment_failed"
	LeadStatusContacted        LeadStatus = "contacted"
	LeadStatusQualified        LeadStatus = "qualified"
	LeadStatusNegotiating      LeadStatus = "negotiating"
	LeadStatusConverted        LeadStatus = "converted"
	LeadStatusLost             LeadStatus = "lost"
)

var allLeadStatuses = []LeadStatus{
	LeadStatusNew, LeadStatusEnriching, LeadStatusScored, LeadStatusEnrichmentFailed,
	LeadStatusContacted, LeadStatusQualified, LeadStatusNegotiating,
	LeadStatusConverted, LeadStatusLost,
}

// EnrichableFrom lists the states an enrich request may start from.
var EnrichableFrom = []LeadStatus{LeadStatusNew, LeadStatusScored, LeadStatusEnrichmentFailed}

// ContactableFrom lists the states a successful campaign send moves to contacted.
var ContactableFrom = []LeadStatus{LeadStatusNew, LeadStatusScored, LeadStatusEnrichmentFailed}

// manualTargets are the statuses a user may set directly.
var manualTargets = map[LeadStatus]bool{
	LeadStatusContacted:   true,
	LeadStatusQualified:   true,
	LeadStatusNegotiating: true,
	LeadStatusConverted:   true,
	LeadStatusLost:        true,
}

// validLeadTransitions lists every system-driven (from → to) pair.
var validLeadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:              {LeadStatusEnriching, LeadStatusContacted},
	LeadStatusEnriching:        {LeadStatusScored, LeadStatusEnrichmentFailed},
	LeadStatusScored:           {LeadStatusEnriching, LeadStatusContacted},
	LeadStatusEnrichmentFailed: {LeadStatusEnriching, LeadStatusContacted},
}

func ParseLeadStatus(s string) (LeadStatus, error) {
	st := LeadStatus(s)
	for _, known := range allLeadStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusConverted || s == LeadStatusLost
}

// IsManualTarget reports whether a user may set s through a lead update.
func (s LeadStatus) IsManualTarget() bool {
	return manualTargets[s]
}

// CanTransitionLead reports whether from → to is permitted, either by the
// enrichment/campaign machinery or as a manual user update.
func CanTransitionLead(from, to LeadStatus) bool {
	if from == to || from.IsTerminal() {
		return false
	}
	if to.IsManualTarget() {
		return true
	}
	for _, s := range validLeadTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ManualFrom returns every state from which a user may set to.
func ManualFrom(to LeadStatus) []LeadStatus {
	var from []LeadStatus
	for _, s := range allLeadStatuses {
		if !s.IsTerminal() && s != to {
			from = append(from, s)
		}
	}
	return from
}
