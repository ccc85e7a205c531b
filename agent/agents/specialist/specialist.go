// Package specialist runs one persona for one turn: the bounded
// model/tool loop, tool permission checks and transfer directives.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

const (
	IterationLimitReply  = "Sorry, I wasn't able to finish that just now. Could you try rephrasing, or would you like me to connect you with our team?"
	PolicyViolationReply = "I'm having a technical issue with that request at the moment. Would you like me to connect you with our support team?"
	EmptyReply           = "Sorry, I didn't catch that. Could you say that another way?"
)

const badArgsReason = "The tool call arguments could not be read. Send them again as a single JSON object."

type Outcome string

const (
	OutcomeReplied         Outcome = "replied"
	OutcomeTransferred     Outcome = "transferred"
	OutcomeIterationLimit  Outcome = "iteration_limit"
	OutcomePolicyViolation Outcome = "policy_violation"
	OutcomeEmptyReply      Outcome = "empty_reply"
)

type Config struct {
	MaxToolIterations int `split_words:"true" default:"6"`
	HistoryTurns      int `split_words:"true" default:"20"`
}

// ModelSource resolves the chat model declared by a persona.
type ModelSource interface {
	ForPersona(ctx context.Context, p persona.Persona) (einomodel.ToolCallingChatModel, error)
}

// ToolCatalog executes tools and exposes their schemas.
type ToolCatalog interface {
	contractx.ToolGateway
	Infos(names []string) ([]*schema.ToolInfo, error)
}

type Request struct {
	Persona string
	Session *state.SessionState
	Message contractx.InboundMessage
	TurnID  string
	At      time.Time
}

type Result struct {
	Persona    string
	Reply      string
	TransferTo string
	Outcome    Outcome
	Iterations int
	Tools      []state.ToolInvocation
}

type personaRuntime struct {
	persona persona.Persona
	step    compose.Runnable[[]*schema.Message, *schema.Message]
}

type Runner struct {
	cfg      Config
	runtimes map[string]*personaRuntime
	tools    ToolCatalog
	renderer persona.Renderer
	hours    booking.Hours
}

// New binds every registered persona to its model and tool set.
func New(
	ctx context.Context,
	cfg Config,
	personas *persona.Registry,
	models ModelSource,
	tools ToolCatalog,
	renderer persona.Renderer,
	hours booking.Hours,
) (*Runner, error) {
	if cfg.MaxToolIterations < 1 {
		return nil, fmt.Errorf("%w: max tool iterations must be >= 1, got %d", contractx.ErrConfig, cfg.MaxToolIterations)
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 20
	}

	r := &Runner{
		cfg:      cfg,
		runtimes: make(map[string]*personaRuntime),
		tools:    tools,
		renderer: renderer,
		hours:    hours,
	}
	for _, name := range personas.Names() {
		p := personas.MustGet(name)

		chatModel, err := models.ForPersona(ctx, p)
		if err != nil {
			return nil, err
		}
		infos, err := tools.Infos(p.Tools)
		if err != nil {
			return nil, fmt.Errorf("persona=%s: %w", name, err)
		}
		if p.CanDelegate() {
			infos = append(infos, transferToolInfo(p, personas))
		}

		var bound einomodel.BaseChatModel = chatModel
		if len(infos) > 0 {
			withTools, err := chatModel.WithTools(infos)
			if err != nil {
				return nil, fmt.Errorf("%w: bind tools for persona=%s: %v", contractx.ErrModelInvoke, name, err)
			}
			bound = withTools
		}
		step, err := compileStepGraph(ctx, bound, name)
		if err != nil {
			return nil, fmt.Errorf("%w: persona=%s: %v", contractx.ErrConfig, name, err)
		}
		r.runtimes[name] = &personaRuntime{persona: p, step: step}
	}
	return r, nil
}

// Run drives one persona until it replies, transfers, or hits the
// iteration bound. The caller owns the session and holds its lock.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	rt, ok := r.runtimes[req.Persona]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown persona=%s", contractx.ErrConfig, req.Persona)
	}
	if req.Session == nil {
		return Result{}, fmt.Errorf("%w: session is required", contractx.ErrValidation)
	}
	p := rt.persona
	st := req.Session
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	messages := r.buildMessages(p, st, req.Message, at)
	history := st.Transcript(r.cfg.HistoryTurns)
	if history != "" {
		history += "\n"
	}
	history += "user: " + strings.TrimSpace(req.Message.Text)

	res := Result{Persona: p.Name}
	logger := log.With().
		Str("session_id", st.SessionID).
		Str("turn_id", req.TurnID).
		Str("persona", p.Name).
		Logger()

	for res.Iterations < r.cfg.MaxToolIterations {
		res.Iterations++

		msg, err := rt.step.Invoke(ctx, messages)
		if err != nil {
			return res, fmt.Errorf("%w: persona=%s: %v", contractx.ErrModelInvoke, p.Name, err)
		}
		if msg == nil {
			return res, fmt.Errorf("%w: persona=%s returned no message", contractx.ErrSchemaViolation, p.Name)
		}

		if len(msg.ToolCalls) == 0 {
			reply := strings.TrimSpace(msg.Content)
			if reply == "" {
				logger.Warn().Msg("persona produced an empty reply")
				res.Reply, res.Outcome = EmptyReply, OutcomeEmptyReply
				return res, nil
			}
			res.Reply, res.Outcome = reply, OutcomeReplied
			return res, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			toolReq, err := toToolRequest(call)
			if err != nil {
				logger.Warn().Err(err).Str("tool", toolReq.Tool).Msg("tool call arguments rejected")
				out := contractx.Failure(toolReq.Tool, contractx.FailureValidation, badArgsReason, err)
				res.Tools = append(res.Tools, state.ToolInvocation{
					CallID: call.ID,
					Tool:   toolReq.Tool,
					Status: string(out.Status),
					Output: out.Text(),
				})
				messages = append(messages, schema.ToolMessage(toolMessageContent(out), call.ID))
				continue
			}

			if toolReq.Tool == TransferToolName {
				target := transferTarget(toolReq.Args)
				if p.CanDelegate() && p.DelegatesTo(target) {
					logger.Info().Str("target", target).Msg("persona transferred turn")
					res.TransferTo, res.Outcome = target, OutcomeTransferred
					return res, nil
				}
				return r.policyViolation(res, &logger, toolReq, fmt.Sprintf("transfer to %q", target)), nil
			}
			if !p.Allows(toolReq.Tool) {
				return r.policyViolation(res, &logger, toolReq, "tool not declared"), nil
			}

			out, err := r.execute(ctx, st, req, history, toolReq, at)
			if err != nil {
				return res, err
			}
			res.Tools = append(res.Tools, state.ToolInvocation{
				CallID: call.ID,
				Tool:   toolReq.Tool,
				Args:   toolReq.Args,
				Status: string(out.Status),
				Output: out.Text(),
			})
			messages = append(messages, schema.ToolMessage(toolMessageContent(out), call.ID))
		}
	}

	logger.Warn().Int("iterations", res.Iterations).Msg("tool iteration bound reached")
	res.Reply, res.Outcome = IterationLimitReply, OutcomeIterationLimit
	return res, nil
}

func (r *Runner) execute(
	ctx context.Context,
	st *state.SessionState,
	req Request,
	history string,
	toolReq contractx.ToolRequest,
	at time.Time,
) (contractx.ToolResult, error) {
	if blocked := beforeTool(&toolReq, st, r.hours, at); blocked != nil {
		log.Info().
			Str("session_id", st.SessionID).
			Str("tool", toolReq.Tool).
			Str("reason", blocked.Reason).
			Msg("tool call held by session rules")
		return *blocked, nil
	}

	out, err := r.tools.Execute(ctx, contractx.ToolCallContext{
		SessionID: st.SessionID,
		TurnID:    req.TurnID,
		Persona:   req.Persona,
		Channel:   req.Message.Channel,
		Customer:  st.Customer.Info(),
		History:   history,
	}, toolReq)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	afterTool(toolReq, out, st, at)
	return out, nil
}

func (r *Runner) policyViolation(res Result, logger *zerolog.Logger, req contractx.ToolRequest, detail string) Result {
	logger.Warn().
		Str("tool", req.Tool).
		AnErr("cause", fmt.Errorf("%w: %s", contractx.ErrPolicyViolation, detail)).
		Msg("persona requested a tool it may not use")
	res.Tools = append(res.Tools, state.ToolInvocation{
		CallID: req.ID,
		Tool:   req.Tool,
		Args:   req.Args,
		Status: string(contractx.ToolFailure),
		Output: string(contractx.FailurePolicy),
	})
	res.Reply, res.Outcome = PolicyViolationReply, OutcomePolicyViolation
	return res
}

func (r *Runner) buildMessages(p persona.Persona, st *state.SessionState, msg contractx.InboundMessage, at time.Time) []*schema.Message {
	system := r.renderer.Render(p.Instruction, at, msg.Channel) + "\n\n" + sessionContext(st, r.hours)

	turns := st.RecentTurns(r.cfg.HistoryTurns)
	messages := make([]*schema.Message, 0, len(turns)+2)
	messages = append(messages, schema.SystemMessage(system))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		switch t.Speaker {
		case state.SpeakerUser:
			messages = append(messages, schema.UserMessage(content))
		case state.SpeakerAssistant:
			messages = append(messages, schema.AssistantMessage(content, nil))
		}
	}
	return append(messages, schema.UserMessage(strings.TrimSpace(msg.Text)))
}

// toToolRequest decodes a model tool call. On error the returned request
// still carries the call id and name.
func toToolRequest(call schema.ToolCall) (contractx.ToolRequest, error) {
	req := contractx.ToolRequest{ID: call.ID, Tool: strings.TrimSpace(call.Function.Name)}
	if req.Tool == "" {
		return req, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
	}
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return req, fmt.Errorf("%w: invalid args for tool=%s: %v", contractx.ErrSchemaViolation, req.Tool, err)
		}
	}
	req.Args = args
	return req, nil
}

func toolMessageContent(res contractx.ToolResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return res.Text()
	}
	return string(raw)
}
