package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
)

// PersonaRunner is the slice of the specialist runner the graph needs.
type PersonaRunner interface {
	Run(ctx context.Context, req specialist.Request) (specialist.Result, error)
}

func SelectPersona(ctx context.Context, in *GraphState, r router.Router) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	decision, err := r.Route(ctx, in.Session, in.Message)
	if err != nil {
		return nil, fmt.Errorf("route turn: %w", err)
	}
	in.Decision = decision

	log.Debug().
		Str("session_id", in.Message.SessionID).
		Str("turn_id", in.TurnID).
		Str("persona", decision.Persona).
		Str("reason", decision.Reason).
		Str("policy", string(r.Policy())).
		Msg("persona selected")
	return in, nil
}

func RunPersona(ctx context.Context, in *GraphState, runner PersonaRunner) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	return runAs(ctx, in, runner, in.Decision.Persona)
}

// RunDelegate runs the persona named by the previous transfer. Delegation
// is one level deep; a second transfer is never followed.
func RunDelegate(ctx context.Context, in *GraphState, runner PersonaRunner) (*GraphState, error) {
	last, ok := in.Last()
	if !ok || last.TransferTo == "" {
		return nil, fmt.Errorf("%w: delegate node without transfer", contractx.ErrValidation)
	}
	return runAs(ctx, in, runner, last.TransferTo)
}

func runAs(ctx context.Context, in *GraphState, runner PersonaRunner, personaName string) (*GraphState, error) {
	in.Session.SwitchPersona(personaName)
	res, err := runner.Run(ctx, specialist.Request{
		Persona: personaName,
		Session: in.Session,
		Message: in.Message,
		TurnID:  in.TurnID,
		At:      in.Message.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	in.Runs = append(in.Runs, res)
	return in, nil
}

// NeedsDelegate reports whether the first run ended in a transfer.
func NeedsDelegate(in *GraphState) bool {
	last, ok := in.Last()
	return ok && len(in.Runs) == 1 && last.Outcome == specialist.OutcomeTransferred && last.TransferTo != ""
}
