package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	last, ok := in.Last()
	if !ok {
		return GraphOutput{}, fmt.Errorf("%w: graph state has no persona result", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(last.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: persona returned empty reply", contractx.ErrSchemaViolation)
	}
	return GraphOutput{
		SessionID: in.Message.SessionID,
		TurnID:    in.TurnID,
		Persona:   last.Persona,
		Reply:     reply,
		Outcome:   last.Outcome,
		Delegated: len(in.Runs) > 1,
	}, nil
}
