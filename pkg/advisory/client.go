// Package advisory runs the text-only advisory voices over the Anthropic
// Messages API. This is the grading path used when no usable capture
// exists: each voice reasons from the item's identity and known history
// alone.
package advisory

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client consults a single advisory voice.
type Client interface {
	Consult(ctx context.Context, req ConsultRequest) (*Opinion, error)
}

// ItemContext is the identity the voice grades against.
type ItemContext struct {
	Title        string
	Issue        string
	Publisher    string
	Year         int
	KeyIssue     bool
	KnownDefects []string
}

// ConsultRequest names the voice, its backing model, and the item.
type ConsultRequest struct {
	Voice string
	Model string
	Style string
	Item  ItemContext
}

// Opinion is the raw voice response; the caller parses the grade out of
// the analysis text.
type Opinion struct {
	Voice    string
	Analysis string
}

const systemPrompt = `You are %s, a professional comic book grading advisor. Your approach: %s.
Assess the likely condition grade on the standard 0.5-10.0 scale from the item's identity, age, and known defect history.
Return a JSON object: {"grade": <number>, "confidence": <0-100>, "defects": ["tag", ...], "reasoning": "<brief>"}`

const consultPrompt = `Item: %s #%s
Publisher: %s
Year: %d
Key issue: %t
Known defects: %s

Give your condition assessment.`

// Option configures the client.
type Option func(*sdkClient)

// WithMaxTokens overrides the default completion budget.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) { c.maxTokens = n }
}

type sdkClient struct {
	client    sdk.Client
	maxTokens int64
}

// NewClient creates an advisory client backed by the Anthropic SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		maxTokens: 1024,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *sdkClient) Consult(ctx context.Context, req ConsultRequest) (*Opinion, error) {
	known := strings.Join(req.Item.KnownDefects, ", ")
	if known == "" {
		known = "none reported"
	}

	prompt := fmt.Sprintf(consultPrompt,
		req.Item.Title, req.Item.Issue, req.Item.Publisher,
		req.Item.Year, req.Item.KeyIssue, known,
	)

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: fmt.Sprintf(systemPrompt, strings.ToUpper(req.Voice), req.Style)},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("advisory: consult %s", req.Voice))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return &Opinion{Voice: req.Voice, Analysis: b.String()}, nil
}
