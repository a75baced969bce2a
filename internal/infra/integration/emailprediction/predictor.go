package emailprediction

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/xavierca1/leadforge/internal/entity"
)

const confidenceDecay = 0.8

type formatFunc func(first, last string) string

var formats = map[string]formatFunc{
	"first.last": func(f, l string) string { return f + "." + l },
	"firstlast":  func(f, l string) string { return f + l },
	"first_last": func(f, l string) string { return f + "_" + l },
	"flast":      func(f, l string) string { return f[:1] + l },
	"first":      func(f, _ string) string { return f },
	"first.l":    func(f, l string) string { return f + "." + l[:1] },
	"f.last":     func(f, l string) string { return f[:1] + "." + l },
	"lastfirst":  func(f, l string) string { return l + f },
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func defaultAnalysis(sample int) *entity.FormatAnalysis {
	return &entity.FormatAnalysis{
		PrimaryFormat: "first.last",
		Formats:       []string{"first.last", "firstlast"},
		Confidence:    0.3,
		SampleSize:    sample,
	}
}

// Predictor guesses addresses from the name and the formats observed in the
// domain's known emails. Used when no prediction service is configured.
type Predictor struct{}

func NewPredictor() *Predictor {
	return &Predictor{}
}

func (p *Predictor) Predict(_ context.Context, req entity.EmailPredictionRequest) (*entity.EmailPrediction, error) {
	first := clean(req.FirstName)
	last := clean(req.LastName)
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if first == "" || last == "" || domain == "" {
		return nil, entity.NewPermanentAdapterError("email_resolver", "predict",
			errors.New("first name, last name and domain are required"))
	}

	analysis := AnalyzeFormats(domain, req.KnownEmails)
	return &entity.EmailPrediction{
		Candidates:     Variants(first, last, domain, analysis.Formats),
		FormatAnalysis: analysis,
	}, nil
}

func clean(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// Variants builds one candidate per known format, with confidence decaying by
// rank.
func Variants(first, last, domain string, names []string) []entity.EmailCandidate {
	out := make([]entity.EmailCandidate, 0, len(names))
	for _, name := range names {
		fn, ok := formats[name]
		if !ok {
			continue
		}
		confidence := math.Pow(confidenceDecay, float64(len(out)))
		out = append(out, entity.EmailCandidate{
			Email:      fn(first, last) + "@" + domain,
			Format:     name,
			Confidence: math.Round(confidence*100) / 100,
		})
	}
	return out
}

// AnalyzeFormats ranks the local-part formats seen in the known emails of
// domain, most frequent first.
func AnalyzeFormats(domain string, known []string) *entity.FormatAnalysis {
	suffix := "@" + domain
	counts := map[string]int{}
	sample := 0
	for _, email := range known {
		email = strings.ToLower(strings.TrimSpace(email))
		if !strings.HasSuffix(email, suffix) {
			continue
		}
		sample++
		if f := classify(strings.TrimSuffix(email, suffix)); f != "" {
			counts[f]++
		}
	}
	if len(counts) == 0 {
		return defaultAnalysis(sample)
	}

	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	return &entity.FormatAnalysis{
		PrimaryFormat: names[0],
		Formats:       names,
		Confidence:    math.Round(float64(counts[names[0]])/float64(total)*100) / 100,
		SampleSize:    sample,
	}
}

func classify(local string) string {
	switch {
	case strings.Contains(local, "."):
		parts := strings.Split(local, ".")
		if len(parts) == 2 {
			if len(parts[0]) == 1 && len(parts[1]) > 1 {
				return "f.last"
			}
			if len(parts[0]) > 1 && len(parts[1]) == 1 {
				return "first.l"
			}
		}
		return "first.last"
	case strings.Contains(local, "_"):
		return "first_last"
	case len(local) > 3:
		if isAlpha(local) {
			if len(local) <= 10 {
				return "firstlast"
			}
			return "lastfirst"
		}
		if len(local) <= 6 {
			return "first"
		}
		return "flast"
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
