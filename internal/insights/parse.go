package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

type reply struct {
	Summary            string   `json:"summary"`
	Sentiment          string   `json:"sentiment"`
	Intent             string   `json:"intent"`
	Urgency            string   `json:"urgency"`
	KeyPoints          []string `json:"key_points"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Parse extracts the insight object from a model reply. The JSON may be wrapped in prose or a
// fenced code block.
func Parse(text string, now time.Time) (*leads.AIInsights, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("insights: no JSON object in reply")
	}

	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("insights: decode reply: %w", err)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return nil, errors.New("insights: reply has no summary")
	}

	out := &leads.AIInsights{
		Summary:            strings.TrimSpace(r.Summary),
		Sentiment:          oneOf(r.Sentiment, "neutral", "positive", "neutral", "negative"),
		Intent:             strings.TrimSpace(r.Intent),
		Urgency:            oneOf(r.Urgency, "medium", "low", "medium", "high"),
		KeyPoints:          nonEmpty(r.KeyPoints),
		RecommendedActions: nonEmpty(r.RecommendedActions),
		GeneratedAt:        now,
	}
	if out.Intent == "" {
		out.Intent = "unknown"
	}
	return out, nil
}

// Fallback builds the deterministic insight object used when the model reply is unusable.
func Fallback(lead leads.Lead, now time.Time) *leads.AIInsights {
	summary := fmt.Sprintf("%s lead from %s.", string(lead.Source), nameOrUnknown(lead))
	if cd := lead.CallDetails; cd != nil {
		if s := strings.TrimSpace(cd.TranscriptSummary); s != "" && s != "No summary available" {
			summary = s
		}
	}

	points := []string{fmt.Sprintf("Source: %s", lead.Source), fmt.Sprintf("Status: %s", lead.Status)}
	actions := make([]string, 0, 2)
	if lead.HasPhone() {
		points = append(points, "Phone number on file")
		actions = append(actions, "Call the lead back")
	}
	if hasRealEmail(lead) {
		points = append(points, "Email address on file")
		actions = append(actions, "Send a follow-up email")
	}
	if len(actions) == 0 {
		actions = append(actions, "Collect contact details")
	}

	urgency := "medium"
	if lead.Status == leads.StatusNew && lead.LastContactTime == nil {
		urgency = "high"
	}

	return &leads.AIInsights{
		Summary:            summary,
		Sentiment:          "neutral",
		Intent:             "unknown",
		Urgency:            urgency,
		KeyPoints:          points,
		RecommendedActions: actions,
		Fallback:           true,
		GeneratedAt:        now,
	}
}

// FallbackGenerator always returns Fallback. Used when no model is configured.
type FallbackGenerator struct {
	now func() time.Time
}

func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{now: func() time.Time { return time.Now().UTC() }}
}

func (g *FallbackGenerator) Generate(ctx context.Context, lead leads.Lead) (*leads.AIInsights, error) {
	return Fallback(lead, g.now()), nil
}

func nameOrUnknown(lead leads.Lead) string {
	if n := lead.FullName(); n != "" {
		return n
	}
	return "an unknown caller"
}

func oneOf(v, def string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	_ leads.InsightGenerator = (*BedrockGenerator)(nil)
	_ leads.InsightGenerator = (*FallbackGenerator)(nil)
)
