package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_state: %w", err)
	}

	if err := graph.AddLambdaNode("merge_inbound",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.MergeInbound(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node merge_inbound: %w", err)
	}

	if err := graph.AddLambdaNode("select_persona",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SelectPersona(ctx, in, o.router)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node select_persona: %w", err)
	}

	if err := graph.AddLambdaNode("run_persona",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunPersona(ctx, in, o.runner)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_persona: %w", err)
	}

	if err := graph.AddLambdaNode("run_delegate",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunDelegate(ctx, in, o.runner)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_delegate: %w", err)
	}

	if err := graph.AddLambdaNode("record_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RecordTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_turn: %w", err)
	}

	if err := graph.AddLambdaNode("save_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_state: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_state"},
		{"load_or_create_state", "merge_inbound"},
		{"merge_inbound", "select_persona"},
		{"select_persona", "run_persona"},
		{"run_delegate", "record_turn"},
		{"record_turn", "save_state"},
		{"save_state", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	delegate := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if nodex.NeedsDelegate(in) {
				return "run_delegate", nil
			}
			return "record_turn", nil
		},
		map[string]bool{"run_delegate": true, "record_turn": true},
	)
	if err := graph.AddBranch("run_persona", delegate); err != nil {
		return nil, fmt.Errorf("add branch run_persona: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
