package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/nodes/orchestrator"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrMessageTooLong = nodex.ErrMessageTooLong
)

// TurnObserver is notified once per finished turn.
type TurnObserver interface {
	ObserveTurn(out nodex.GraphOutput, policy router.Policy, elapsed time.Duration, err error)
}

type Option func(*Orchestrator)

func WithObserver(obs TurnObserver) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLocker(l *statex.Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
	}
}

type Orchestrator struct {
	store  statex.Store
	router router.Router
	runner nodex.PersonaRunner
	locker *statex.Locker

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	observers   []TurnObserver

	now   func() time.Time
	newID func() string
}

func New(
	store statex.Store,
	r router.Router,
	runner nodex.PersonaRunner,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if r == nil {
		return nil, errors.New("router is required")
	}
	if runner == nil {
		return nil, errors.New("persona runner is required")
	}

	o := &Orchestrator{
		store:  store,
		router: r,
		runner: runner,
		locker: statex.NewLocker(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one inbound message through the turn graph. Turns for
// the same session are serialized in arrival order.
func (o *Orchestrator) HandleTurn(ctx context.Context, msg contractx.InboundMessage) (contractx.OutboundMessage, error) {
	started := o.now()
	turnID := o.newID()
	logger := log.With().
		Str("session_id", msg.SessionID).
		Str("turn_id", turnID).
		Str("policy", string(o.router.Policy())).
		Logger()

	out, err := o.handleLocked(ctx, msg, turnID)
	elapsed := o.now().Sub(started)
	for _, obs := range o.observers {
		obs.ObserveTurn(out, o.router.Policy(), elapsed, err)
	}
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("turn failed")
		return contractx.OutboundMessage{}, err
	}

	logger.Info().
		Str("persona", out.Persona).
		Str("outcome", string(out.Outcome)).
		Bool("delegated", out.Delegated).
		Dur("elapsed", elapsed).
		Msg("turn completed")

	return contractx.OutboundMessage{
		SessionID: out.SessionID,
		Persona:   out.Persona,
		Reply:     out.Reply,
	}, nil
}

func (o *Orchestrator) handleLocked(ctx context.Context, msg contractx.InboundMessage, turnID string) (nodex.GraphOutput, error) {
	checked, err := nodex.ValidateRequest(nodex.GraphInput{Message: msg}, o.now)
	if err != nil {
		return nodex.GraphOutput{}, err
	}

	unlock, err := o.locker.Lock(ctx, checked.Message.SessionID)
	if err != nil {
		return nodex.GraphOutput{}, err
	}
	defer unlock()

	return o.graphRunner.Invoke(ctx, nodex.GraphInput{
		Message: msg,
		TurnID:  turnID,
	})
}
