package specialist

import (
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
)

const TransferToolName = "transfer_to_agent"

// transferToolInfo is bound only for personas that declare delegates.
func transferToolInfo(p persona.Persona, personas *persona.Registry) *schema.ToolInfo {
	var desc strings.Builder
	desc.WriteString("Hand this conversation to a specialist. Call it alone, without any reply text. Specialists:")
	for _, name := range p.Delegates {
		if target, ok := personas.Get(name); ok {
			desc.WriteString("\n- " + name + ": " + target.Description)
		}
	}
	return &schema.ToolInfo{
		Name: TransferToolName,
		Desc: desc.String(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"agent_name": {
				Type:     schema.String,
				Desc:     "Specialist to hand the conversation to",
				Enum:     append([]string(nil), p.Delegates...),
				Required: true,
			},
		}),
	}
}

func transferTarget(args map[string]any) string {
	name, _ := args["agent_name"].(string)
	return strings.TrimSpace(name)
}
