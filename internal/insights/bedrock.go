// Package insights produces the structured AI summary shown on a lead.
package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

const systemPrompt = `You analyse sales leads. Reply with a single JSON object and nothing else, using the keys ` +
	`"summary", "sentiment" (positive|neutral|negative), "intent", "urgency" (low|medium|high), ` +
	`"key_points" (array of strings) and "recommended_actions" (array of strings).`

// BedrockGenerator asks a Bedrock model for insights and falls back to a deterministic object
// when the reply cannot be parsed.
type BedrockGenerator struct {
	api       ConverseAPI
	modelID   string
	maxTokens int32
	timeout   time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

func NewBedrockGenerator(api ConverseAPI, modelID string, logger *logging.Logger) *BedrockGenerator {
	if api == nil {
		panic("insights: bedrock converse client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BedrockGenerator{
		api:       api,
		modelID:   strings.TrimSpace(modelID),
		maxTokens: 700,
		timeout:   30 * time.Second,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (g *BedrockGenerator) Generate(ctx context.Context, lead leads.Lead) (*leads.AIInsights, error) {
	if g.modelID == "" {
		return nil, errors.New("insights: bedrock model id is required")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: describeLead(lead)},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(g.maxTokens),
			Temperature: aws.Float32(0.2),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("insights: bedrock converse: %w", err)
	}

	now := g.now()
	parsed, err := Parse(outputText(out), now)
	if err != nil {
		g.logger.Warn("insights: unparseable model reply, using fallback", "lead_id", lead.ID, "error", err)
		return Fallback(lead, now), nil
	}
	return parsed, nil
}

func outputText(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String()
}

// describeLead is the free-text context handed to the model.
func describeLead(lead leads.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", lead.FullName())
	if lead.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	}
	fmt.Fprintf(&b, "Status: %s\nSource: %s\n", lead.Status, lead.Source)
	fmt.Fprintf(&b, "Has phone: %t\nHas email: %t\n", lead.HasPhone(), hasRealEmail(lead))
	if cd := lead.CallDetails; cd != nil {
		if cd.SummaryTitle != "" {
			fmt.Fprintf(&b, "Call title: %s\n", cd.SummaryTitle)
		}
		if cd.TranscriptSummary != "" {
			fmt.Fprintf(&b, "Call summary: %s\n", cd.TranscriptSummary)
		}
		if cd.CallDurationSecs > 0 {
			fmt.Fprintf(&b, "Call duration: %ds\n", cd.CallDurationSecs)
		}
	}
	for i, n := range lead.Notes {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "Note: %s\n", n.Text)
	}
	return b.String()
}

func hasRealEmail(lead leads.Lead) bool {
	return strings.TrimSpace(lead.Email) != "" && !leads.IsPlaceholderEmail(lead.Email)
}
