package tool

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// decodeArgs maps model-supplied arguments onto a typed struct. Models often
// send numbers as strings and booleans as "true", so decoding is weakly typed.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("%w: build args decoder: %v", contractx.ErrValidation, err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
