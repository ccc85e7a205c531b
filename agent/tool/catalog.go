package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// Handler performs one tool call. It must resolve every outcome to a
// ToolResult; returned errors are converted into Failure envelopes.
type Handler func(ctx context.Context, call contractx.ToolCallContext, args map[string]any) contractx.ToolResult

type Tool struct {
	Info       *schema.ToolInfo
	Handler    Handler
	SideEffect bool
}

func (t Tool) Name() string {
	if t.Info == nil {
		return ""
	}
	return t.Info.Name
}

// Recorder observes completed tool calls (audit ledger, metrics).
type Recorder interface {
	RecordToolCall(ctx context.Context, call contractx.ToolCallContext, req contractx.ToolRequest, res contractx.ToolResult, sideEffect bool, elapsed time.Duration)
}

type RegistryOption func(*Registry)

func WithRecorder(r Recorder) RegistryOption {
	return func(reg *Registry) {
		if r != nil {
			reg.recorders = append(reg.recorders, r)
		}
	}
}

// Registry is the process-wide tool table. It is filled once at startup.
type Registry struct {
	tools     map[string]Tool
	order     []string
	recorders []Recorder
	now       func() time.Time
}

var _ contractx.ToolGateway = (*Registry)(nil)

func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(tools)),
		now:   time.Now,
	}
	for _, t := range tools {
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: tool without name", contractx.ErrConfig)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("%w: tool=%s has no handler", contractx.ErrConfig, name)
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool=%s", contractx.ErrConfig, name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Infos returns tool schemas in the requested order.
func (r *Registry) Infos(names []string) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tool=%s", contractx.ErrConfig, name)
		}
		infos = append(infos, t.Info)
	}
	return infos, nil
}

func (r *Registry) Execute(ctx context.Context, call contractx.ToolCallContext, req contractx.ToolRequest) (contractx.ToolResult, error) {
	t, ok := r.tools[req.Tool]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: unknown tool=%s", contractx.ErrConfig, req.Tool)
	}

	start := r.now()
	res := r.invoke(ctx, t, call, req)
	elapsed := r.now().Sub(start)
	res.Tool = req.Tool

	ev := log.Info()
	if !res.OK() {
		ev = log.Warn().Str("failure_kind", string(res.Kind)).AnErr("cause", res.Cause)
	}
	ev.Str("tool", req.Tool).
		Str("conversation_id", call.SessionID).
		Str("turn_id", call.TurnID).
		Str("persona", call.Persona).
		Str("status", string(res.Status)).
		Dur("elapsed", elapsed).
		Msg("tool call finished")

	for _, rec := range r.recorders {
		rec.RecordToolCall(ctx, call, req, res, t.SideEffect, elapsed)
	}
	return res, nil
}

func (r *Registry) invoke(ctx context.Context, t Tool, call contractx.ToolCallContext, req contractx.ToolRequest) (res contractx.ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			res = contractx.Failure(req.Tool, contractx.FailureTransport, genericRetryReason, fmt.Errorf("tool panic: %v", p))
		}
	}()
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	return t.Handler(ctx, call, args)
}

const genericRetryReason = "That request could not be completed because of a temporary issue. Please try again in a moment, or I can connect you with our team."
