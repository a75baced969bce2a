package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadforge/internal/entity"
)

func TestHeuristic_Score(t *testing.T) {
	tests := []struct {
		name     string
		features entity.LeadFeatures
		want     int
		factors  []string
	}{
		{
			name:     "bare lead keeps the base",
			features: entity.LeadFeatures{},
			want:     60,
		},
		{
			name: "first matching title keyword wins",
			// "vp" precedes "engineer" in the weight order
			features: entity.LeadFeatures{Title: "VP Engineering"},
			want:     75,
			factors:  []string{"title"},
		},
		{
			name:     "unknown industry still counts as a factor",
			features: entity.LeadFeatures{Industry: "Agriculture"},
			want:     60,
			factors:  []string{"industry"},
		},
		{
			name: "everything clamps at 100",
			features: entity.LeadFeatures{
				Title: "CEO", CompanySize: "1001+", Industry: "Software",
				HasEmail: true, HasLinkedIn: true,
			},
			want:    100,
			factors: []string{"title", "company_size", "industry", "has_email", "has_linkedin"},
		},
		{
			name:     "mid profile",
			features: entity.LeadFeatures{Title: "Marketing Manager", CompanySize: "51-200", Industry: "Banking"},
			want:     88,
			factors:  []string{"title", "company_size", "industry"},
		},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Score(context.Background(), tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Score)
			assert.Len(t, res.Factors, len(tt.factors))
			for _, f := range tt.factors {
				assert.Contains(t, res.Factors, f)
			}
			assert.NotEmpty(t, res.Reasons)
		})
	}
}

func TestHeuristic_Reasons(t *testing.T) {
	res, _ := NewHeuristic().Score(context.Background(), entity.LeadFeatures{Title: "CTO", CompanySize: "11-50"})

	assert.Equal(t, 83, res.Score)
	assert.Equal(t, []string{
		"High-value lead based on role and company profile",
		"Decision-making role: CTO",
		"Company size (11-50) matches target profile",
	}, res.Reasons)
	assert.Equal(t, 0.3, res.Factors["title"].Importance)
}

func TestClient_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Leads, 1)
		assert.Equal(t, "CEO", req.Leads[0].Title)

		w.Write([]byte(`{"results":[{"score":91,"reasons":["fit"],"factors":{"title":{"value":"CEO","importance":0.3}}}]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "k", time.Second, nil).Score(context.Background(), entity.LeadFeatures{Title: "CEO"})
	require.NoError(t, err)
	assert.Equal(t, 91, res.Score)
	assert.Equal(t, []string{"fit"}, res.Reasons)
}

func TestClient_ScoreRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad features", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	var failures []string
	_, err := NewClient(srv.URL, "", time.Second, func(s string) { failures = append(failures, s) }).
		Score(context.Background(), entity.LeadFeatures{})

	assert.True(t, entity.IsPermanent(err))
	assert.Equal(t, []string{"scoring"}, failures)
}
