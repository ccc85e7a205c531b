package persona

import (
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/prompt"
)

type fakeCatalog map[string]bool

func (f fakeCatalog) Has(name string) bool { return f[name] }

var allTools = fakeCatalog{
	"show_directions":         true,
	"create_ticket":           true,
	"create_appointment":      true,
	"search_products":         true,
	"connect_to_support":      true,
	"record_customer_details": true,
}

func TestBuildEmbeddedManifest(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest(prompt.Manifest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg, err := Build(m, allTools, prompt.Template)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reg.FrontDesk() != "front_desk" || reg.Default() != "faq_agent" {
		t.Fatalf("unexpected roots: front=%s default=%s", reg.FrontDesk(), reg.Default())
	}
	fd := reg.MustGet("front_desk")
	if !fd.DelegatesTo("product_agent") || fd.Allows("create_appointment") {
		t.Fatalf("unexpected front desk capabilities: %+v", fd)
	}
	for _, sp := range reg.Specialists() {
		if sp.CanDelegate() || sp.MayDelegateToParent || sp.MayDelegateToPeers {
			t.Fatalf("specialist %s must not delegate", sp.Name)
		}
	}
	appt := reg.MustGet("appointment_support_agent")
	if !appt.Allows("create_appointment") || appt.Allows("search_products") {
		t.Fatalf("unexpected appointment tools: %v", appt.Tools)
	}
	if appt.Temperature == nil || *appt.Temperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", appt.Temperature)
	}
}

func TestRegisterRejectsUnknownTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(fakeCatalog{})
	err := reg.Register(Persona{Name: "x", Instruction: "hi", Tools: []string{"math.evaluate"}})
	if !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRegisterRejectsEmptyInstruction(t *testing.T) {
	t.Parallel()

	err := NewRegistry(allTools).Register(Persona{Name: "x", Instruction: "  "})
	if !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestValidateDelegationDepth(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(allTools)
	mustRegister(t, reg, Persona{Name: "desk", Instruction: "a", Delegates: []string{"sales"}})
	mustRegister(t, reg, Persona{Name: "sales", Instruction: "b", MayDelegateToPeers: true})
	reg.SetFrontDesk("desk")

	if err := reg.Validate(); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("expected ErrConfig for nested delegation, got %v", err)
	}
}

func TestValidateUnknownDefault(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(allTools)
	mustRegister(t, reg, Persona{Name: "faq", Instruction: "a"})
	reg.SetDefault("missing")

	if err := reg.Validate(); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestValidateDelegatesOnlyFromFrontDesk(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(allTools)
	mustRegister(t, reg, Persona{Name: "a", Instruction: "a", Delegates: []string{"b"}})
	mustRegister(t, reg, Persona{Name: "b", Instruction: "b"})

	if err := reg.Validate(); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRendererFillsPlaceholders(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	r := Renderer{DealershipName: "Test Honda", Location: loc}
	at := time.Date(2026, 10, 16, 15, 4, 0, 0, time.UTC)

	got := r.Render("{{dealership_name}} | {{current_datetime}} | {{user_channel}}", at, contractx.ChannelSMS)
	want := "Test Honda | Friday, October 16, 2026, 10:04 AM CDT | SMS"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if strings.Contains(r.Render("{{user_channel}}", at, contractx.ChannelWeb), "{{") {
		t.Fatal("placeholder left unrendered")
	}
}

func mustRegister(t *testing.T, reg *Registry, p Persona) {
	t.Helper()
	if err := reg.Register(p); err != nil {
		t.Fatalf("register %s: %v", p.Name, err)
	}
}
