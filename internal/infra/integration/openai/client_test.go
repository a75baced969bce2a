package openai

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

func TestParseEmail(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "leading subject line",
			content:     "Subject: Quick idea for {{.Company}}\n\nHi {{.FirstName}},\n\nBest",
			wantSubject: "Quick idea for {{.Company}}",
			wantBody:    "Hi {{.FirstName}},\n\nBest",
		},
		{
			name:        "subject after preamble",
			content:     "Here you go:\nSubject: Hello\nHi there",
			wantSubject: "Hello",
			wantBody:    "Hi there",
		},
		{
			name:        "no subject marker",
			content:     "Intro line\nBody text",
			wantSubject: "Intro line",
			wantBody:    "Body text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := ParseEmail(tt.content)
			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, "warm and approachable")
		assert.Contains(t, req.Messages[0].Content, "Fintech: payments")
		assert.Contains(t, req.Messages[1].Content, "Ana Souza, CFO at Acme")
		assert.Contains(t, req.Messages[1].Content, "mention the webinar")

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Subject: Hi {{.FirstName}}\n\nBody for {{.Company}}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "gpt-test", time.Second, nil)
	got, err := c.Generate(context.Background(), entity.GenerationRequest{
		Purpose:            "Fintech: payments",
		Tone:               "Friendly",
		CustomInstructions: "mention the webinar",
		SampleLeads: []*entity.Lead{
			{FirstName: "Ana", LastName: "Souza", Title: "CFO", Company: "Acme", Industry: "Finance"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi {{.FirstName}}", got.Subject)
	assert.Equal(t, "Body for {{.Company}}", got.Body)
}

func TestClient_GenerateEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "m", time.Second, nil).Generate(context.Background(), entity.GenerationRequest{})
	require.Error(t, err)
	assert.False(t, entity.IsPermanent(err))
}

func TestSystemPromptFallsBackToDefaults(t *testing.T) {
	p := systemPrompt(entity.GenerationRequest{Tone: "sarcastic", Length: "epic"})
	assert.Contains(t, p, toneGuidelines["professional"])
	assert.Contains(t, p, lengthGuidelines["medium"])
	assert.Contains(t, p, focusGuidelines["benefits"])
	assert.Contains(t, p, "{{.FirstName}}")
}
