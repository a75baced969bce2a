// Package openai generates outreach email templates through the chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/integration"
)

const (
	temperature = 0.7
	maxTokens   = 800
	maxSamples  = 3
)

var toneGuidelines = map[string]string{
	"professional": "Use a formal and professional tone. Be respectful and concise.",
	"friendly":     "Use a warm and approachable tone. Be personable while maintaining professionalism.",
	"casual":       "Use a conversational and relaxed tone. Be casual but still respectful.",
}

var lengthGuidelines = map[string]string{
	"short":  "Keep the email brief and to the point, around 3-4 sentences.",
	"medium": "Write a moderately sized email with 1-2 short paragraphs.",
	"long":   "Create a comprehensive email with 2-3 paragraphs of detail.",
}

var focusGuidelines = map[string]string{
	"benefits":  "Focus on the specific benefits our solution can provide to the recipient's business.",
	"problems":  "Focus on the problems the recipient might be facing and how our solution solves them.",
	"curiosity": "Focus on creating curiosity about our solution without revealing too much detail.",
}

type Client struct {
	api   *integration.Client
	model string
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, onError integration.ErrorHook) *Client {
	api := integration.NewClient("openai", baseURL, timeout)
	api.Headers["Authorization"] = "Bearer " + apiKey
	api.OnError = onError
	return &Client{api: api, model: model}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GeneratedEmail, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt(req)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	if err := c.api.PostJSON(ctx, "generate", "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &entity.AdapterError{Adapter: "openai", Op: "generate", Err: errors.New("empty completion")}
	}

	subject, text := ParseEmail(resp.Choices[0].Message.Content)
	return &entity.GeneratedEmail{Subject: subject, Body: text}, nil
}

func guideline(table map[string]string, key, fallback string) string {
	if g, ok := table[strings.ToLower(key)]; ok {
		return g
	}
	return table[fallback]
}

func systemPrompt(req entity.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("You are an expert email copywriter specializing in B2B outreach emails. ")
	b.WriteString(guideline(toneGuidelines, req.Tone, "professional") + " ")
	b.WriteString(guideline(lengthGuidelines, req.Length, "medium") + " ")
	b.WriteString(guideline(focusGuidelines, req.Focus, "benefits") + "\n\n")
	b.WriteString("The email should:\n" +
		"1. Have a compelling subject line\n" +
		"2. Start with a personalized introduction\n" +
		"3. Briefly explain who you are\n" +
		"4. Present the value proposition clearly\n" +
		"5. Include a specific call to action for a meeting\n" +
		"6. End with a professional sign-off\n\n")
	b.WriteString("The email is a reusable template. Refer to the recipient only through these placeholders, " +
		"written exactly as shown: {{.FirstName}}, {{.LastName}}, {{.Title}}, {{.Company}}, {{.Industry}}, {{.Location}}.\n\n")
	fmt.Fprintf(&b, "About our project/product: %s\n\n", req.Purpose)
	b.WriteString("Format your response like this:\nSubject: [Email Subject]\n\n[Email Body]")
	return b.String()
}

func userPrompt(req entity.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("Generate an outreach email template for leads like these:\n")
	n := 0
	for _, l := range req.SampleLeads {
		if n == maxSamples {
			break
		}
		fmt.Fprintf(&b, "- %s, %s at %s (%s)\n", l.FullName(), l.Title, l.Company, l.Industry)
		n++
	}
	if n == 0 {
		b.WriteString("- decision makers at companies in our target market\n")
	}
	if req.CustomInstructions != "" {
		fmt.Fprintf(&b, "\nCustom Instructions: %s\n", req.CustomInstructions)
	}
	b.WriteString("\nThe email should introduce our product/service and request a brief meeting.")
	return b.String()
}

// ParseEmail splits a completion into subject and body. A leading
// "Subject:" line is preferred; otherwise the first line is the subject.
func ParseEmail(content string) (string, string) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "Subject:") {
		if head, rest, ok := strings.Cut(content, "\n\n"); ok {
			return strings.TrimSpace(strings.TrimPrefix(head, "Subject:")), strings.TrimSpace(rest)
		}
	}

	if i := strings.Index(content, "Subject:"); i >= 0 {
		line, rest, _ := strings.Cut(content[i:], "\n")
		return strings.TrimSpace(strings.TrimPrefix(line, "Subject:")), strings.TrimSpace(rest)
	}

	first, rest, _ := strings.Cut(content, "\n")
	return strings.TrimSpace(first), strings.TrimSpace(rest)
}
