// Package persona defines the configured assistant personas and the registry
// the router and turn driver resolve them from.
package persona

import (
	"slices"
)

// Persona pairs an instruction template with the tools it may call and the
// personas it may hand a turn to.
type Persona struct {
	Name        string
	Description string
	Model       string
	Temperature *float32
	Instruction string
	Tools       []string
	Delegates   []string
	Keywords    []string

	MayDelegateToParent bool
	MayDelegateToPeers  bool
}

// CanDelegate reports whether the persona may emit a transfer directive.
func (p Persona) CanDelegate() bool {
	return len(p.Delegates) > 0
}

func (p Persona) Allows(tool string) bool {
	return slices.Contains(p.Tools, tool)
}

func (p Persona) DelegatesTo(name string) bool {
	return slices.Contains(p.Delegates, name)
}
