// Package router picks the persona that handles a turn.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

type Policy string

const (
	PolicyFrontDesk      Policy = "front_desk"
	PolicyAlwaysDelegate Policy = "always_delegate"
)

type ClassifierKind string

const (
	ClassifierKeyword ClassifierKind = "keyword"
	ClassifierModel   ClassifierKind = "model"
)

type Config struct {
	Policy     Policy         `split_words:"true" default:"front_desk"`
	Classifier ClassifierKind `split_words:"true" default:"keyword"`
}

// Decision is the persona chosen for a turn and why.
type Decision struct {
	Persona string
	Reason  string
}

const (
	ReasonFrontDesk  = "front_desk"
	ReasonClassified = "classified"
	ReasonSticky     = "sticky"
	ReasonDefault    = "default"
)

type Router interface {
	Route(ctx context.Context, st *state.SessionState, msg contractx.InboundMessage) (Decision, error)
	Policy() Policy
}

// New builds the router for the configured policy and checks that every
// persona it can return is registered.
func New(cfg Config, personas *persona.Registry, modelClassifier contractx.Classifier) (Router, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(string(cfg.Policy)))) {
	case PolicyFrontDesk, "":
		return NewFrontDesk(personas)
	case PolicyAlwaysDelegate:
		var classifier contractx.Classifier = NewKeywordClassifier(personas.Specialists())
		if cfg.Classifier == ClassifierModel {
			if modelClassifier == nil {
				return nil, fmt.Errorf("%w: model classifier requested but not configured", contractx.ErrConfig)
			}
			classifier = WithFallback(modelClassifier, classifier)
		}
		return NewAlwaysDelegate(personas, classifier)
	default:
		return nil, fmt.Errorf("%w: unknown router policy %q", contractx.ErrConfig, cfg.Policy)
	}
}

// FrontDesk sends every message to the distinguished front desk persona,
// which answers or emits a transfer itself.
type FrontDesk struct {
	name string
}

func NewFrontDesk(personas *persona.Registry) (*FrontDesk, error) {
	name := personas.FrontDesk()
	if name == "" {
		return nil, fmt.Errorf("%w: front desk policy needs a front desk persona", contractx.ErrConfig)
	}
	if _, ok := personas.Get(name); !ok {
		return nil, fmt.Errorf("%w: front desk persona=%s not registered", contractx.ErrConfig, name)
	}
	return &FrontDesk{name: name}, nil
}

func (f *FrontDesk) Policy() Policy { return PolicyFrontDesk }

func (f *FrontDesk) Route(context.Context, *state.SessionState, contractx.InboundMessage) (Decision, error) {
	return Decision{Persona: f.name, Reason: ReasonFrontDesk}, nil
}

// AlwaysDelegate classifies every message into one specialist. While the
// session's topic is unresolved, the active persona keeps the conversation
// unless the classifier confidently names another one.
type AlwaysDelegate struct {
	classifier     contractx.Classifier
	candidates     []string
	known          map[string]bool
	defaultPersona string
}

func NewAlwaysDelegate(personas *persona.Registry, classifier contractx.Classifier) (*AlwaysDelegate, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: always-delegate policy needs a classifier", contractx.ErrConfig)
	}
	def := personas.Default()
	if def == "" {
		return nil, fmt.Errorf("%w: always-delegate policy needs a default persona", contractx.ErrConfig)
	}

	r := &AlwaysDelegate{classifier: classifier, known: make(map[string]bool), defaultPersona: def}
	for _, p := range personas.Specialists() {
		r.candidates = append(r.candidates, p.Name)
		r.known[p.Name] = true
	}
	if !r.known[def] {
		return nil, fmt.Errorf("%w: default persona=%s is not a specialist", contractx.ErrConfig, def)
	}
	return r, nil
}

func (r *AlwaysDelegate) Policy() Policy { return PolicyAlwaysDelegate }

// Route stays with the active specialist while its topic is open. A
// classified decision starts a new topic, even for the same persona.
func (r *AlwaysDelegate) Route(ctx context.Context, st *state.SessionState, msg contractx.InboundMessage) (Decision, error) {
	active := ""
	if st != nil && !st.TopicResolved && r.known[st.ActivePersona] {
		active = st.ActivePersona
	}

	choice, err := r.classifier.Classify(ctx, msg.Text, r.candidates)
	if err != nil {
		log.Warn().Err(err).Str("session_id", msg.SessionID).Msg("classification failed")
		choice = ""
	}
	if !r.known[choice] {
		choice = ""
	}

	switch {
	case choice != "" && (active == "" || choice != active):
		if st != nil {
			st.TopicResolved = false
		}
		return Decision{Persona: choice, Reason: ReasonClassified}, nil
	case active != "":
		return Decision{Persona: active, Reason: ReasonSticky}, nil
	default:
		return Decision{Persona: r.defaultPersona, Reason: ReasonDefault}, nil
	}
}
