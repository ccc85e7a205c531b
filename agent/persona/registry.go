package persona

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// ToolCatalog is the subset of the tool registry personas are checked against.
type ToolCatalog interface {
	Has(name string) bool
}

// Registry is filled at startup and read-only afterwards.
type Registry struct {
	tools          ToolCatalog
	byName         map[string]Persona
	order          []string
	frontDesk      string
	defaultPersona string
}

func NewRegistry(tools ToolCatalog) *Registry {
	return &Registry{
		tools:  tools,
		byName: make(map[string]Persona),
	}
}

// Register checks the persona in isolation: non-empty name and instruction,
// every declared tool known to the catalog.
func (r *Registry) Register(p Persona) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: persona without name", contractx.ErrConfig)
	}
	if _, dup := r.byName[p.Name]; dup {
		return fmt.Errorf("%w: duplicate persona=%s", contractx.ErrConfig, p.Name)
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return fmt.Errorf("%w: persona=%s has empty instruction", contractx.ErrConfig, p.Name)
	}
	for _, tool := range p.Tools {
		if r.tools == nil || !r.tools.Has(tool) {
			return fmt.Errorf("%w: persona=%s declares unknown tool=%s", contractx.ErrConfig, p.Name, tool)
		}
	}

	r.byName[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

func (r *Registry) SetFrontDesk(name string) {
	r.frontDesk = strings.TrimSpace(name)
}

func (r *Registry) SetDefault(name string) {
	r.defaultPersona = strings.TrimSpace(name)
}

// Validate checks cross references once every persona is registered.
// Delegation is one level deep: a persona that is a delegate target may not
// delegate itself, and only the front desk may declare delegates.
func (r *Registry) Validate() error {
	if len(r.byName) == 0 {
		return fmt.Errorf("%w: no personas registered", contractx.ErrConfig)
	}
	if r.frontDesk != "" {
		if _, ok := r.byName[r.frontDesk]; !ok {
			return fmt.Errorf("%w: front desk persona=%s not registered", contractx.ErrConfig, r.frontDesk)
		}
	}
	if r.defaultPersona != "" {
		if _, ok := r.byName[r.defaultPersona]; !ok {
			return fmt.Errorf("%w: default persona=%s not registered", contractx.ErrConfig, r.defaultPersona)
		}
	}

	for _, name := range r.order {
		p := r.byName[name]
		if p.CanDelegate() && name != r.frontDesk {
			return fmt.Errorf("%w: persona=%s declares delegates but is not the front desk", contractx.ErrConfig, name)
		}
		for _, target := range p.Delegates {
			if target == name {
				return fmt.Errorf("%w: persona=%s delegates to itself", contractx.ErrConfig, name)
			}
			t, ok := r.byName[target]
			if !ok {
				return fmt.Errorf("%w: persona=%s delegates to unknown persona=%s", contractx.ErrConfig, name, target)
			}
			if t.CanDelegate() || t.MayDelegateToParent || t.MayDelegateToPeers {
				return fmt.Errorf("%w: delegate persona=%s may not delegate further", contractx.ErrConfig, target)
			}
		}
	}
	return nil
}

func (r *Registry) Get(name string) (Persona, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *Registry) MustGet(name string) Persona {
	p, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("persona: %s not registered", name))
	}
	return p
}

// Names returns persona names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specialists returns every persona except the front desk.
func (r *Registry) Specialists() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, name := range r.order {
		if name != r.frontDesk {
			out = append(out, r.byName[name])
		}
	}
	return out
}

func (r *Registry) FrontDesk() string { return r.frontDesk }

func (r *Registry) Default() string { return r.defaultPersona }
