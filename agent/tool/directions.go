package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type DealershipConfig struct {
	Name    string `split_words:"true" default:"Patty Peck Honda"`
	Address string `split_words:"true" default:"555 Sunnybrook Road, Ridgeland, MS 39157"`
	MapsURL string `envconfig:"MAPS_URL" default:"https://www.google.com/maps/dir/?api=1&destination=555+Sunnybrook+Road,+Ridgeland,+MS+39157"`
	Phone   string `split_words:"true" default:"(601) 957-3400"`
}

type Directions struct {
	Address  string `json:"address"`
	MapsLink string `json:"maps_url"`
	Phone    string `json:"phone,omitempty"`
}

// NewShowDirectionsTool answers from static configuration, no network.
func NewShowDirectionsTool(cfg DealershipConfig) Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name:        ToolShowDirections,
			Desc:        "Get the dealership address, a map link for directions, and the main phone number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Handler: func(_ context.Context, call contractx.ToolCallContext, _ map[string]any) contractx.ToolResult {
			return showDirections(cfg, call.Channel)
		},
	}
}

func showDirections(cfg DealershipConfig, channel contractx.Channel) contractx.ToolResult {
	d := Directions{
		Address:  strings.TrimSpace(cfg.Address),
		MapsLink: strings.TrimSpace(cfg.MapsURL),
		Phone:    strings.TrimSpace(cfg.Phone),
	}

	summary := fmt.Sprintf("%s is located at %s. Get directions: %s", cfg.Name, d.Address, d.MapsLink)
	if channel.SupportsMarkup() {
		summary = fmt.Sprintf("%s is located at %s. [Get directions](%s)", cfg.Name, d.Address, d.MapsLink)
	}
	if d.Phone != "" {
		summary += fmt.Sprintf(" Phone: %s.", d.Phone)
	}
	return contractx.Success(ToolShowDirections, summary, d)
}
