package orchestratornode

import (
	"fmt"

	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

// RecordTurn appends the user message and the assistant reply to the
// session transcript.
func RecordTurn(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	last, ok := in.Last()
	if !ok {
		return nil, fmt.Errorf("%w: no persona ran", contractx.ErrValidation)
	}
	if last.Outcome == specialist.OutcomeTransferred {
		// a delegate tried to transfer again
		last.Reply = specialist.PolicyViolationReply
		last.Outcome = specialist.OutcomePolicyViolation
		in.Runs[len(in.Runs)-1] = last
	}

	var tools []statex.ToolInvocation
	for _, r := range in.Runs {
		tools = append(tools, r.Tools...)
	}

	if err := in.Session.AppendTurn(statex.Turn{
		Speaker: statex.SpeakerUser,
		Content: in.Message.Text,
		At:      in.Message.Timestamp,
	}); err != nil {
		return nil, err
	}
	if err := in.Session.AppendTurn(statex.Turn{
		Speaker: statex.SpeakerAssistant,
		Persona: last.Persona,
		Content: last.Reply,
		Tools:   tools,
		At:      in.Now,
	}); err != nil {
		return nil, err
	}
	return in, nil
}
