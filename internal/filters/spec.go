package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// NullOption is the option shown for NULL values of a filter column.
const NullOption = "None"

type Datatype string

const (
	DatatypeDate   Datatype = "date"
	DatatypeNumber Datatype = "number"
)

// Input is the kind of UI control of a filter.
type Input interface {
	InputType() string
}

type Multiselect struct{}

type Radio struct{}

type Selectbox struct{}

type Slider struct {
	Datatype Datatype
}

func (Multiselect) InputType() string { return "multiselect" }
func (Radio) InputType() string       { return "radio" }
func (Selectbox) InputType() string   { return "selectbox" }
func (Slider) InputType() string      { return "slider" }

// Spec declares a filter. Options come from SourceQuery (first column, or for
// sliders the first row as min and max) or from the static Options.
type Spec struct {
	Name        string
	Label       string
	Input       Input
	SourceQuery string
	Options     []string
	Default     []string
	// Aliases maps option values to their display labels.
	Aliases map[string]string
}

type specJSON struct {
	Name        string            `json:"name"`
	Label       string            `json:"label,omitempty"`
	InputType   string            `json:"input_type"`
	Datatype    string            `json:"datatype,omitempty"`
	SourceQuery string            `json:"source_query,omitempty"`
	Options     []string          `json:"options,omitempty"`
	Default     json.RawMessage   `json:"default,omitempty"`
	Aliases     map[string]string `json:"aliases,omitempty"`
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw specJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return errors.New("filter name not set")
	}

	input, err := parseInput(raw.InputType, raw.Datatype)
	if err != nil {
		return fmt.Errorf("filter [%s]: %w", raw.Name, err)
	}

	if raw.SourceQuery == "" && len(raw.Options) == 0 {
		if _, isSlider := input.(Slider); !isSlider || len(raw.Default) == 0 {
			return fmt.Errorf("filter [%s]: neither source_query nor options set", raw.Name)
		}
	}

	defaults, err := parseDefault(raw.Default)
	if err != nil {
		return fmt.Errorf("filter [%s] default: %w", raw.Name, err)
	}
	if _, isSlider := input.(Slider); isSlider && len(defaults) != 0 && len(defaults) != 2 {
		return fmt.Errorf("filter [%s]: slider default must hold two values", raw.Name)
	}

	*s = Spec{
		Name:        raw.Name,
		Label:       raw.Label,
		Input:       input,
		SourceQuery: raw.SourceQuery,
		Options:     raw.Options,
		Default:     defaults,
		Aliases:     raw.Aliases,
	}
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	raw := specJSON{
		Name:        s.Name,
		Label:       s.Label,
		SourceQuery: s.SourceQuery,
		Options:     s.Options,
		Aliases:     s.Aliases,
	}
	if s.Input != nil {
		raw.InputType = s.Input.InputType()
	}
	if slider, ok := s.Input.(Slider); ok {
		raw.Datatype = string(slider.Datatype)
	}
	if len(s.Default) > 0 {
		d, err := json.Marshal(s.Default)
		if err != nil {
			return nil, err
		}
		raw.Default = d
	}
	return json.Marshal(raw)
}

func parseInput(inputType, datatype string) (Input, error) {
	switch inputType {
	case "multiselect":
		return Multiselect{}, nil
	case "radio":
		return Radio{}, nil
	case "selectbox":
		return Selectbox{}, nil
	case "slider":
		switch Datatype(datatype) {
		case DatatypeDate:
			return Slider{Datatype: DatatypeDate}, nil
		case DatatypeNumber, "":
			return Slider{Datatype: DatatypeNumber}, nil
		default:
			return nil, fmt.Errorf("unknown slider datatype: %s", datatype)
		}
	default:
		return nil, fmt.Errorf("unknown input type: %s", inputType)
	}
}

// parseDefault accepts a single string or number, or a list of them.
func parseDefault(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var single any
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		list = []any{single}
	}

	defaults := make([]string, 0, len(list))
	for _, v := range list {
		switch val := v.(type) {
		case string:
			defaults = append(defaults, val)
		case float64:
			defaults = append(defaults, strconv.FormatFloat(val, 'f', -1, 64))
		case nil:
			defaults = append(defaults, NullOption)
		default:
			return nil, fmt.Errorf("unsupported default value: %v", v)
		}
	}
	return defaults, nil
}
