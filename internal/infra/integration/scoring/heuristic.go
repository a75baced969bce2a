package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/xavierca1/leadforge/internal/entity"
)

const baseScore = 60

// titleWeights is ordered: the first keyword contained in the title wins.
var titleWeights = []struct {
	keyword string
	points  int
}{
	{"ceo", 20}, {"cto", 18}, {"coo", 18}, {"cfo", 16}, {"vp", 15},
	{"head", 14}, {"director", 13}, {"manager", 10}, {"lead", 8},
	{"senior", 6}, {"engineer", 5}, {"developer", 5}, {"specialist", 4},
	{"coordinator", 3}, {"assistant", 2},
}

var sizeWeights = map[string]int{
	"1-10":     2,
	"11-50":    5,
	"51-200":   10,
	"201-500":  15,
	"501-1000": 18,
	"1001+":    20,
}

var industryWeights = []struct {
	keywords []string
	points   int
}{
	{[]string{"tech", "software"}, 10},
	{[]string{"finance", "banking"}, 8},
	{[]string{"health", "medical"}, 7},
	{[]string{"education"}, 5},
}

// Heuristic scores leads locally when no scoring service is configured.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Score(_ context.Context, f entity.LeadFeatures) (*entity.ScoreResult, error) {
	score := baseScore
	factors := map[string]entity.ScoreFactor{}

	if title := strings.ToLower(f.Title); title != "" {
		for _, w := range titleWeights {
			if strings.Contains(title, w.keyword) {
				score += w.points
				factors["title"] = entity.ScoreFactor{Value: f.Title, Importance: 0.3}
				break
			}
		}
	}

	if points, ok := sizeWeights[f.CompanySize]; ok {
		score += points
		factors["company_size"] = entity.ScoreFactor{Value: f.CompanySize, Importance: 0.25}
	}

	if industry := strings.ToLower(f.Industry); industry != "" {
		score += industryPoints(industry)
		factors["industry"] = entity.ScoreFactor{Value: f.Industry, Importance: 0.2}
	}

	if f.HasEmail {
		score += 5
		factors["has_email"] = entity.ScoreFactor{Value: "true", Importance: 0.15}
	}
	if f.HasLinkedIn {
		score += 5
		factors["has_linkedin"] = entity.ScoreFactor{Value: "true", Importance: 0.1}
	}

	score = entity.ClampScore(score)

	var reasons []string
	switch {
	case score >= 80:
		reasons = append(reasons, "High-value lead based on role and company profile")
	case score >= 60:
		reasons = append(reasons, "Good potential lead with moderate fit")
	default:
		reasons = append(reasons, "Average fit with target criteria")
	}
	if _, ok := factors["title"]; ok {
		reasons = append(reasons, fmt.Sprintf("Decision-making role: %s", f.Title))
	}
	if _, ok := factors["company_size"]; ok {
		reasons = append(reasons, fmt.Sprintf("Company size (%s) matches target profile", f.CompanySize))
	}

	return &entity.ScoreResult{Score: score, Factors: factors, Reasons: reasons}, nil
}

func industryPoints(industry string) int {
	for _, w := range industryWeights {
		for _, k := range w.keywords {
			if strings.Contains(industry, k) {
				return w.points
			}
		}
	}
	return 0
}
