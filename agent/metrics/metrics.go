package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/nodes/orchestrator"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
)

// Metrics holds the assistant's Prometheus collectors. It observes finished
// turns and tool calls.
type Metrics struct {
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec
	TurnErrors   *prometheus.CounterVec
	Delegations  prometheus.Counter
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealership_turns_total",
			Help: "Completed conversation turns by persona and outcome",
		}, []string{"persona", "outcome", "policy"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealership_turn_duration_seconds",
			Help:    "End to end turn latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"policy"}),
		TurnErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealership_turn_errors_total",
			Help: "Turns that ended without a reply, by error class",
		}, []string{"class"}),
		Delegations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealership_delegations_total",
			Help: "Turns answered by a delegate persona",
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealership_tool_calls_total",
			Help: "Tool invocations by tool, status and failure kind",
		}, []string{"tool", "status", "failure_kind"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealership_tool_duration_seconds",
			Help:    "Tool invocation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	reg.MustRegister(m.TurnsTotal)
	reg.MustRegister(m.TurnDuration)
	reg.MustRegister(m.TurnErrors)
	reg.MustRegister(m.Delegations)
	reg.MustRegister(m.ToolCalls)
	reg.MustRegister(m.ToolDuration)

	return m
}

func (m *Metrics) ObserveTurn(out nodex.GraphOutput, policy router.Policy, elapsed time.Duration, err error) {
	m.TurnDuration.WithLabelValues(string(policy)).Observe(elapsed.Seconds())
	if err != nil {
		m.TurnErrors.WithLabelValues(ErrorClass(err)).Inc()
		return
	}
	m.TurnsTotal.WithLabelValues(out.Persona, string(out.Outcome), string(policy)).Inc()
	if out.Delegated {
		m.Delegations.Inc()
	}
}

func (m *Metrics) RecordToolCall(
	_ context.Context,
	_ contractx.ToolCallContext,
	req contractx.ToolRequest,
	res contractx.ToolResult,
	_ bool,
	elapsed time.Duration,
) {
	m.ToolCalls.WithLabelValues(req.Tool, string(res.Status), string(res.Kind)).Inc()
	m.ToolDuration.WithLabelValues(req.Tool).Observe(elapsed.Seconds())
}

// ErrorClass buckets turn errors into a small label set.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, contractx.ErrValidation):
		return "validation"
	case errors.Is(err, contractx.ErrModelInvoke):
		return "model"
	case errors.Is(err, contractx.ErrConfig):
		return "config"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}
