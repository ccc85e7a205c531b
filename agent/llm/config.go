package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
	openrouterx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor applies a persona's model and temperature overrides to the
// deployment defaults.
func (c Config) OpenRouterFor(p persona.Persona) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(p.Model); v != "" {
		modelName = v
	}
	temp := c.Temperature
	if p.Temperature != nil && *p.Temperature >= 0 {
		temp = *p.Temperature
	}
	return c.base(modelName, temp)
}

// Classifier returns the configuration used by the model routing classifier.
func (c Config) Classifier() openrouterx.Config {
	modelName := strings.TrimSpace(c.ClassifierModel)
	if modelName == "" {
		modelName = strings.TrimSpace(c.Model)
	}
	return c.base(modelName, c.ClassifierTemperature)
}

func (c Config) base(modelName string, temp float32) openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// Builder constructs a chat model from a resolved configuration.
type Builder func(ctx context.Context, cfg openrouterx.Config) (model.ToolCallingChatModel, error)

func openRouterBuilder(ctx context.Context, cfg openrouterx.Config) (model.ToolCallingChatModel, error) {
	return cfg.New(ctx)
}

// Factory hands out one chat model per distinct model/temperature pair.
type Factory struct {
	cfg     Config
	build   Builder
	mu      sync.Mutex
	byModel map[string]model.ToolCallingChatModel
}

func NewFactory(cfg Config, build Builder) *Factory {
	if build == nil {
		build = openRouterBuilder
	}
	return &Factory{cfg: cfg, build: build, byModel: make(map[string]model.ToolCallingChatModel)}
}

func (f *Factory) ForPersona(ctx context.Context, p persona.Persona) (model.ToolCallingChatModel, error) {
	orCfg := f.cfg.OpenRouterFor(p)
	key := orCfg.Key()

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byModel[key]; ok {
		return m, nil
	}
	m, err := f.build(ctx, orCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: persona=%s: %v", contractx.ErrConfig, p.Name, err)
	}
	f.byModel[key] = m
	return m, nil
}
