package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// compileStepGraph wires one model step for a persona: the running message
// list goes in, the assistant message (reply or tool calls) comes out.
func compileStepGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	personaName string,
) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add persona model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "model"); err != nil {
		return nil, fmt.Errorf("add persona edge start->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add persona edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("persona."+personaName+".step"))
	if err != nil {
		return nil, fmt.Errorf("compile persona step graph: %w", err)
	}
	return runner, nil
}
