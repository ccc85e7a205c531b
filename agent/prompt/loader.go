package prompt

import (
	"embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

//go:embed template/*.txt template/personas.yaml
var templates embed.FS

const (
	manifestFile   = "template/personas.yaml"
	ClassifierName = "classifier"
)

// Template returns the trimmed instruction template stored under name.
func Template(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/\\.") {
		return "", fmt.Errorf("%w: invalid template name %q", contractx.ErrPromptMissing, name)
	}
	raw, err := templates.ReadFile("template/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", contractx.ErrPromptMissing, name)
	}
	return text, nil
}

// Manifest returns the embedded persona manifest.
func Manifest() []byte {
	raw, err := templates.ReadFile(manifestFile)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded manifest missing: %v", err))
	}
	return raw
}
