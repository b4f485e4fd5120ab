package types

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts both "30s" style strings and integer nanoseconds in
// YAML and JSON configuration.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.decode(raw)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.decode(raw)
}

func (d *Duration) decode(raw interface{}) error {
	switch value := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return WrapError(err, "invalid duration")
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(value)
		return nil
	case int64:
		*d = Duration(value)
		return nil
	case float64:
		*d = Duration(value)
		return nil
	default:
		return NewErrorf("invalid duration value: %v", raw)
	}
}
