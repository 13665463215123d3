package scene

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Props is the loosely typed body of one component in a scene file.
type Props map[string]any

// EncodeProps converts a component value into Props using its yaml tags.
func EncodeProps(v any) (Props, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encode props: %w", err)
	}
	props := Props{}
	if err := node.Decode(&props); err != nil {
		return nil, fmt.Errorf("encode props: %w", err)
	}
	return props, nil
}

// Decode fills into from p using into's yaml tags.
func (p Props) Decode(into any) error {
	var node yaml.Node
	if err := node.Encode(map[string]any(p)); err != nil {
		return fmt.Errorf("decode props: %w", err)
	}
	if err := node.Decode(into); err != nil {
		return fmt.Errorf("decode props: %w", err)
	}
	return nil
}
