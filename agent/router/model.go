package router

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
)

// ModelClassifier asks a chat model to name the persona for a message.
type ModelClassifier struct {
	client       *openaisdk.Client
	model        string
	temperature  float64
	instructions string
}

var _ contractx.Classifier = (*ModelClassifier)(nil)

// NewModelClassifier renders the classifier template with the specialist
// descriptions once; the list does not change at runtime.
func NewModelClassifier(client *openaisdk.Client, modelName string, temperature float32, template, dealershipName string, personas *persona.Registry) (*ModelClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: classifier client is nil", contractx.ErrConfig)
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("%w: classifier model is required", contractx.ErrConfig)
	}

	var list strings.Builder
	for _, p := range personas.Specialists() {
		fmt.Fprintf(&list, "- %s: %s\n", p.Name, p.Description)
	}
	instructions := strings.NewReplacer(
		"{{agent_list}}", strings.TrimSpace(list.String()),
		"{{default_agent}}", personas.Default(),
		"{{dealership_name}}", dealershipName,
	).Replace(template)

	return &ModelClassifier{
		client:       client,
		model:        strings.TrimSpace(modelName),
		temperature:  float64(temperature),
		instructions: instructions,
	}, nil
}

func (m *ModelClassifier) Classify(ctx context.Context, text string, candidates []string) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(m.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(m.instructions),
			openaisdk.UserMessage(text),
		},
		Temperature:         openaisdk.Float(m.temperature),
		MaxCompletionTokens: openaisdk.Int(16),
	})
	if err != nil {
		return "", fmt.Errorf("%w: classify: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: classify: empty choices", contractx.ErrModelInvoke)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	answer = strings.Trim(answer, " \t\n\"'`.")
	for _, c := range candidates {
		if answer == c {
			return c, nil
		}
	}
	// tolerate a short sentence around the name
	for _, c := range candidates {
		if strings.Contains(answer, c) {
			return c, nil
		}
	}
	return "", nil
}

type fallbackClassifier struct {
	primary  contractx.Classifier
	fallback contractx.Classifier
}

// WithFallback consults fallback when primary errors or names no candidate.
func WithFallback(primary, fallback contractx.Classifier) contractx.Classifier {
	return &fallbackClassifier{primary: primary, fallback: fallback}
}

func (f *fallbackClassifier) Classify(ctx context.Context, text string, candidates []string) (string, error) {
	choice, err := f.primary.Classify(ctx, text, candidates)
	if err != nil {
		log.Warn().Err(err).Msg("model classifier failed, using keywords")
	}
	if err == nil && choice != "" {
		return choice, nil
	}
	return f.fallback.Classify(ctx, text, candidates)
}
