// Package classification decides whether a message concerns a job application and what kind of update it is.
package classification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/llm"
	"github.com/jonathan/application-tracker/internal/prompts"
	"github.com/jonathan/application-tracker/internal/schemas"
	"github.com/jonathan/application-tracker/internal/types"
)

// MaxBodyChars is the longest body sent to the model; longer bodies are cut and suffixed with "..."
const MaxBodyChars = 2000

// ClassificationError describes why the model verdict could not be used
type ClassificationError struct {
	Message string
	Cause   error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("classification failed: %s", e.Message)
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

// response is the JSON shape the model is asked to return
type response struct {
	IsJobRelated bool     `json:"is_job_related"`
	Category     string   `json:"classification"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    *string  `json:"reasoning"`
}

// Classifier labels messages with an LLM
type Classifier struct {
	client llm.Client
	tier   llm.ModelTier
	logger *zap.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithTier selects the model tier (default lite)
func WithTier(tier llm.ModelTier) Option {
	return func(c *Classifier) { c.tier = tier }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Classifier
func New(client llm.Client, opts ...Option) *Classifier {
	c := &Classifier{client: client, tier: llm.TierLite, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a verdict for msg. It never fails: any error yields
// types.DefaultClassification with the reason as rationale.
func (c *Classifier) Classify(ctx context.Context, msg types.Message) types.Classification {
	cls, err := c.classify(ctx, msg)
	if err != nil {
		c.logger.Warn("classification failed", zap.String("message_id", msg.ID), zap.Error(err))
		return types.DefaultClassification(fmt.Sprintf("Classification error: %v", err))
	}
	c.logger.Debug("classified message",
		zap.String("message_id", msg.ID),
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence),
	)
	return cls
}

// ClassifyBatch classifies each message in order; the result has one entry per input
func (c *Classifier) ClassifyBatch(ctx context.Context, msgs []types.Message) []types.Classification {
	out := make([]types.Classification, len(msgs))
	for i, m := range msgs {
		out[i] = c.Classify(ctx, m)
	}
	return out
}

func (c *Classifier) classify(ctx context.Context, msg types.Message) (types.Classification, error) {
	if c.client == nil {
		return types.Classification{}, &ClassificationError{Message: "no LLM client configured"}
	}

	prompt, err := BuildPrompt(msg)
	if err != nil {
		return types.Classification{}, &ClassificationError{Message: "failed to build prompt", Cause: err}
	}

	raw, err := c.client.GenerateJSON(ctx, prompt, c.tier)
	if err != nil {
		return types.Classification{}, &ClassificationError{Message: "model call failed", Cause: err}
	}

	return ParseResponse(raw)
}

// BuildPrompt renders the classification prompt for msg
func BuildPrompt(msg types.Message) (string, error) {
	return prompts.Render(prompts.ClassificationFile, "classify-email", map[string]string{
		"Subject": msg.Subject,
		"Sender":  msg.Sender,
		"Body":    llm.Truncate(msg.Body, MaxBodyChars),
	})
}

// ParseResponse validates and normalises a raw model response
func ParseResponse(raw string) (types.Classification, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Classification, []byte(cleaned)); err != nil {
		return types.Classification{}, &ClassificationError{Message: "response does not match schema", Cause: err}
	}

	resp, err := llm.ParseJSON[response](cleaned)
	if err != nil {
		return types.Classification{}, &ClassificationError{Message: "invalid response", Cause: err}
	}

	cls := types.Classification{
		IsJobRelated: resp.IsJobRelated,
		Confidence:   clamp(resp.Confidence),
	}
	if resp.Reasoning != nil {
		cls.Rationale = *resp.Reasoning
	}

	category, known := types.ParseCategory(resp.Category)
	switch {
	case category == types.CategoryError:
		return types.Classification{}, &ClassificationError{Message: "model reported an error category"}
	case !cls.IsJobRelated:
		cls.Category = types.CategoryNotJobRelated
	case known && category.IsJobCategory():
		cls.Category = category
	default:
		// Job related with an unknown or contradictory label. The label is
		// kept so it maps to StatusUnknown and never advances a record.
		cls.Category = types.NormalizeCategory(resp.Category)
		if cls.Category == "" {
			cls.Category = types.CategoryUnrecognized
		}
	}
	return cls, nil
}

func clamp(v *float64) float64 {
	if v == nil {
		return 0
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}
