// Package explain turns numeric risk assessments into human-readable causes
// and recommended actions via an OpenAI-compatible chat model.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deal_radar/internal/config"
	dm "github.com/iWorld-y/deal_radar/internal/model"
)

// Generator produces explanations for risky deals. Implementations must be
// safe for concurrent use.
type Generator interface {
	Explain(ctx context.Context, deal dm.DealRecord, assessment dm.RiskAssessment) (*dm.Explanation, error)
	DraftFollowUp(ctx context.Context, deal dm.DealRecord, causes string) (string, error)
}

// LLMGenerator is the chat-model backed Generator.
type LLMGenerator struct {
	chatModel  model.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
}

// NewLLMGenerator builds a Generator against the configured endpoint. The
// limiter is shared across all concurrent explanation calls of a run.
func NewLLMGenerator(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter) (*LLMGenerator, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat model init failed: %w", err)
	}
	return &LLMGenerator{chatModel: chatModel, limiter: limiter, maxRetries: 1}, nil
}

// NewGeneratorWithModel wires an existing chat model; used by tests.
func NewGeneratorWithModel(cm model.BaseChatModel, limiter *rate.Limiter) *LLMGenerator {
	return &LLMGenerator{chatModel: cm, limiter: limiter, maxRetries: 1}
}

var _ Generator = (*LLMGenerator)(nil)

// explanationPayload is the strict response shape requested from the model.
type explanationPayload struct {
	Causes string `json:"causes"`
	Action string `json:"action"`
}

// Explain issues one request for a non-green deal. The prompt is built
// deterministically from the deal fields and triggered signal names. One
// bounded retry on transient failure (rate limit, timeout); anything else is
// a GenerationError for this deal only.
func (g *LLMGenerator) Explain(ctx context.Context, deal dm.DealRecord, assessment dm.RiskAssessment) (*dm.Explanation, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: "You are a JSON generator. Output only a JSON string."},
		{Role: schema.User, Content: buildExplainPrompt(deal, assessment)},
	}

	content, err := g.generate(ctx, messages)
	if err != nil {
		return nil, &dm.GenerationError{DealID: deal.ID, Err: err}
	}

	payload, err := parseExplanation(content)
	if err != nil {
		return nil, &dm.GenerationError{DealID: deal.ID, Err: err}
	}

	causes := strings.TrimSpace(payload.Causes)
	action := strings.TrimSpace(payload.Action)
	if causes == "" {
		causes = "cause not stated"
	}
	if action == "" {
		action = "Contact the client today"
	}

	return &dm.Explanation{DealID: deal.ID, Causes: causes, Action: action}, nil
}

// DraftFollowUp generates a short follow-up message for a risky deal.
func (g *LLMGenerator) DraftFollowUp(ctx context.Context, deal dm.DealRecord, causes string) (string, error) {
	prompt := fmt.Sprintf(`Draft a brief sales follow-up message (4-6 sentences) in a polite, businesslike tone.
Context:
- Client: %q
- Risk cause: %q
- Client's last message: %q

Requirements: to the point, no filler; propose 2-3 call slots; end with a clear call to action. Return only the message text.`,
		deal.Name, causes, deal.LastMessage)

	messages := []*schema.Message{
		{Role: schema.User, Content: prompt},
	}
	content, err := g.generate(ctx, messages)
	if err != nil {
		return "", &dm.GenerationError{DealID: deal.ID, Err: err}
	}
	return strings.TrimSpace(content), nil
}

// generate performs the rate-limited call with a single bounded retry on
// transient failures.
func (g *LLMGenerator) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := g.chatModel.Generate(ctx, messages)
		if err != nil {
			lastErr = err
			if attempt < g.maxRetries && isTransient(err) && ctx.Err() == nil {
				time.Sleep(time.Duration(attempt+1) * time.Second)
				continue
			}
			return "", err
		}
		return resp.Content, nil
	}
	return "", lastErr
}

// isTransient reports whether the call failed in a way worth one retry.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

// buildExplainPrompt assembles the guarded prompt: the model may only cite
// the supplied features and triggered signals, so it cannot invent a delay or
// an objection that the scorer never saw.
func buildExplainPrompt(deal dm.DealRecord, assessment dm.RiskAssessment) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant to a head of sales. Assess why this deal is at risk and suggest one short next step for the account manager.\n")
	sb.WriteString("Rely ONLY on the features and triggered signals below. Do not invent factors.\n\n")

	fmt.Fprintf(&sb, "Deal: %q\n", deal.Name)
	fmt.Fprintf(&sb, "Stage: %q\n", deal.Stage)
	fmt.Fprintf(&sb, "Amount: %.2f\n", deal.Amount)
	fmt.Fprintf(&sb, "Days in current stage: %.0f\n", assessment.StageAgeDays)
	if deal.LastActivityAt == nil {
		sb.WriteString("Last activity: never\n")
	} else {
		fmt.Fprintf(&sb, "Last activity: %s\n", deal.LastActivityAt.Format(time.DateOnly))
	}
	if deal.LastMessage != "" {
		fmt.Fprintf(&sb, "Client's last message: %q\n", deal.LastMessage)
	}
	fmt.Fprintf(&sb, "Risk score: %.0f/100 (%s)\n", assessment.Score, assessment.Tier)

	sb.WriteString("Triggered signals:\n")
	for _, sig := range assessment.Signals {
		fmt.Fprintf(&sb, "- %s: %s\n", sig.Name, sig.Detail)
	}

	sb.WriteString(`
Return STRICT JSON with no extra text:
{
  "causes": "<1-2 concrete causes, one short sentence>",
  "action": "<the manager's next step, one short sentence>"
}`)
	return sb.String()
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseExplanation extracts the first JSON object from the model output, even
// when the model wrapped it in code fences or surrounding text.
func parseExplanation(content string) (*explanationPayload, error) {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	block := jsonBlockRe.FindString(clean)
	if block == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	var payload explanationPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return &payload, nil
}
