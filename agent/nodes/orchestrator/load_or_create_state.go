package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.Message.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrStateNotFound):
		st = statex.NewSessionState(in.Message.SessionID, string(in.Message.Channel), in.Now)
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
	in.Session = st
	return in, nil
}

// MergeInbound folds channel-provided customer fields into the session.
// Blank and placeholder values never overwrite what the session knows.
func MergeInbound(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	st := in.Session
	st.Channel = string(in.Message.Channel)
	if st.Customer.Merge(in.Message.Customer) {
		st.Appointment.Sync(st.Customer, in.Now)
	}
	return in, nil
}
