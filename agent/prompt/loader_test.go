package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

func TestTemplateLoadsEmbeddedPersonas(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"front_desk", "faq_agent", "product_agent", "appointment_support_agent", ClassifierName} {
		text, err := Template(name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !strings.Contains(text, "{{dealership_name}}") {
			t.Fatalf("%s: expected dealership placeholder", name)
		}
	}
}

func TestTemplateMissing(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "nope", "../loader"} {
		if _, err := Template(name); !errors.Is(err, contractx.ErrPromptMissing) {
			t.Fatalf("%q: expected ErrPromptMissing, got %v", name, err)
		}
	}
}

func TestManifestEmbedded(t *testing.T) {
	t.Parallel()

	if !strings.Contains(string(Manifest()), "default_persona: faq_agent") {
		t.Fatal("manifest should declare the default persona")
	}
}
