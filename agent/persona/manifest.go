package persona

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type Manifest struct {
	FrontDesk      string          `mapstructure:"front_desk"`
	DefaultPersona string          `mapstructure:"default_persona"`
	Personas       []ManifestEntry `mapstructure:"personas"`
}

type ManifestEntry struct {
	Name                string   `mapstructure:"name"`
	Description         string   `mapstructure:"description"`
	Prompt              string   `mapstructure:"prompt"`
	Model               string   `mapstructure:"model"`
	Temperature         *float32 `mapstructure:"temperature"`
	Tools               []string `mapstructure:"tools"`
	Delegates           []string `mapstructure:"delegates"`
	Keywords            []string `mapstructure:"keywords"`
	MayDelegateToParent bool     `mapstructure:"may_delegate_to_parent"`
	MayDelegateToPeers  bool     `mapstructure:"may_delegate_to_peers"`
}

// ParseManifest decodes a YAML persona manifest.
func ParseManifest(raw []byte) (Manifest, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Manifest{}, fmt.Errorf("%w: read persona manifest: %v", contractx.ErrConfig, err)
	}
	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: decode persona manifest: %v", contractx.ErrConfig, err)
	}
	return m, nil
}

// TemplateFunc resolves a prompt template name to its text.
type TemplateFunc func(name string) (string, error)

// Build registers every manifest entry and validates the result.
func Build(m Manifest, tools ToolCatalog, templates TemplateFunc) (*Registry, error) {
	reg := NewRegistry(tools)
	for _, e := range m.Personas {
		promptName := strings.TrimSpace(e.Prompt)
		if promptName == "" {
			promptName = e.Name
		}
		instruction, err := templates(promptName)
		if err != nil {
			return nil, fmt.Errorf("%w: persona=%s: %v", contractx.ErrConfig, e.Name, err)
		}

		keywords := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}

		if err := reg.Register(Persona{
			Name:                e.Name,
			Description:         strings.TrimSpace(e.Description),
			Model:               strings.TrimSpace(e.Model),
			Temperature:         e.Temperature,
			Instruction:         instruction,
			Tools:               e.Tools,
			Delegates:           e.Delegates,
			Keywords:            keywords,
			MayDelegateToParent: e.MayDelegateToParent,
			MayDelegateToPeers:  e.MayDelegateToPeers,
		}); err != nil {
			return nil, err
		}
	}
	reg.SetFrontDesk(m.FrontDesk)
	reg.SetDefault(m.DefaultPersona)

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}
