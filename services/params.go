package services

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeParams maps loosely typed action params onto a params struct.
// Weak typing lets YAML numbers and strings land in string fields.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
