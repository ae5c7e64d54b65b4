package filters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/2beens/fitdash/internal/telemetry/tracing"
	"github.com/2beens/fitdash/internal/warehouse"

	"go.opentelemetry.io/otel/attribute"
)

var ErrInvalidSelection = errors.New("invalid filter selection")

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=filters_test

type Querier interface {
	Query(ctx context.Context, sql string) (*warehouse.Table, error)
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control is a filter, resolved into a concrete UI input.
type Control struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	InputType string   `json:"input_type"`
	Datatype  Datatype `json:"datatype,omitempty"`
	Options   []Option `json:"options,omitempty"`
	Min       any      `json:"min,omitempty"`
	Max       any      `json:"max,omitempty"`
	Default   any      `json:"default"`

	input        Input
	defaultValue Value
	dateBounds   DateRange
	numberBounds NumberRange
}

type Resolver struct {
	querier Querier
}

func NewResolver(querier Querier) *Resolver {
	return &Resolver{
		querier: querier,
	}
}

// Resolve turns the filter specs into controls, in the same order.
func (r *Resolver) Resolve(ctx context.Context, specs []Spec) (_ []Control, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "filters.resolver.resolve")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("filters", len(specs)))

	controls := make([]Control, 0, len(specs))
	for _, spec := range specs {
		control, err := r.resolve(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("resolve filter [%s]: %w", spec.Name, err)
		}
		controls = append(controls, control)
	}
	return controls, nil
}

func (r *Resolver) resolve(ctx context.Context, spec Spec) (Control, error) {
	control := Control{
		Name:      spec.Name,
		Label:     spec.Label,
		InputType: spec.Input.InputType(),
		input:     spec.Input,
	}
	if control.Label == "" {
		control.Label = spec.Name
	}

	switch input := spec.Input.(type) {
	case Multiselect, Radio, Selectbox:
		values, err := r.options(ctx, spec)
		if err != nil {
			return Control{}, err
		}
		control.Options = make([]Option, 0, len(values))
		for _, v := range values {
			label := v
			if alias, ok := spec.Aliases[v]; ok {
				label = alias
			}
			control.Options = append(control.Options, Option{Value: v, Label: label})
		}

		defaults := spec.Default
		if _, isMulti := input.(Multiselect); isMulti {
			if len(defaults) == 0 {
				defaults = values
			}
			selected, err := control.selectMulti(defaults)
			if err != nil {
				return Control{}, fmt.Errorf("default: %w", err)
			}
			control.defaultValue = selected
			control.Default = selectedList(selected)
			return control, nil
		}

		if len(values) == 0 {
			return Control{}, errors.New("no options")
		}
		choice := values[0]
		if len(defaults) > 0 {
			choice = defaults[0]
		}
		selected, err := control.selectSingle(choice)
		if err != nil {
			return Control{}, fmt.Errorf("default: %w", err)
		}
		control.defaultValue = selected
		control.Default = selected.Value
		return control, nil

	case Slider:
		control.Datatype = input.Datatype
		lo, hi, err := r.bounds(ctx, spec)
		if err != nil {
			return Control{}, err
		}
		defaults := spec.Default
		if len(defaults) == 0 {
			defaults = []string{lo, hi}
		}

		switch input.Datatype {
		case DatatypeDate:
			bounds, err := parseDateRange(lo, hi)
			if err != nil {
				return Control{}, fmt.Errorf("range: %w", err)
			}
			control.dateBounds = bounds
			control.Min = bounds.From.Format(time.DateOnly)
			control.Max = bounds.To.Format(time.DateOnly)
		default:
			bounds, err := parseNumberRange(lo, hi)
			if err != nil {
				return Control{}, fmt.Errorf("range: %w", err)
			}
			control.numberBounds = bounds
			control.Min = bounds.Min
			control.Max = bounds.Max
		}

		selected, err := control.selectRange(defaults)
		if err != nil {
			return Control{}, fmt.Errorf("default: %w", err)
		}
		control.defaultValue = selected
		control.Default = rangeOutput(selected)
		return control, nil

	default:
		return Control{}, fmt.Errorf("unsupported input: %T", spec.Input)
	}
}

func (r *Resolver) options(ctx context.Context, spec Spec) ([]string, error) {
	if spec.SourceQuery == "" {
		return spec.Options, nil
	}

	table, err := r.querier.Query(ctx, spec.SourceQuery)
	if err != nil {
		return nil, fmt.Errorf("options query: %w", err)
	}
	if len(table.Columns) == 0 {
		return nil, nil
	}

	column, err := table.Column(table.Columns[0])
	if err != nil {
		return nil, err
	}
	options := make([]string, 0, len(column))
	for _, v := range column {
		option, ok := warehouse.AsString(v)
		if !ok {
			option = NullOption
		}
		if !slices.Contains(options, option) {
			options = append(options, option)
		}
	}
	return options, nil
}

func (r *Resolver) bounds(ctx context.Context, spec Spec) (string, string, error) {
	if spec.SourceQuery == "" {
		switch {
		case len(spec.Options) >= 2:
			return spec.Options[0], spec.Options[len(spec.Options)-1], nil
		case len(spec.Default) == 2:
			return spec.Default[0], spec.Default[1], nil
		default:
			return "", "", errors.New("slider range not set")
		}
	}

	table, err := r.querier.Query(ctx, spec.SourceQuery)
	if err != nil {
		return "", "", fmt.Errorf("range query: %w", err)
	}
	if table.Empty() || len(table.Rows[0]) < 2 {
		return "", "", errors.New("range query must return one row with min and max")
	}
	slider, _ := spec.Input.(Slider)
	lo, okLo := boundString(table.Rows[0][0], slider.Datatype)
	hi, okHi := boundString(table.Rows[0][1], slider.Datatype)
	if !okLo || !okHi {
		return "", "", errors.New("range query returned NULL bounds")
	}
	return lo, hi, nil
}

// boundString formats a range query bound. Date bounds are truncated to the
// UTC date so that TIMESTAMP columns work as well as DATE ones.
func boundString(v any, datatype Datatype) (string, bool) {
	if datatype == DatatypeDate {
		if t, ok := warehouse.AsTime(v); ok {
			return t.Format(time.DateOnly), true
		}
	}
	return warehouse.AsString(v)
}

// Values reads the selections from the request params. Filters missing
// from params get their default value.
func (r *Resolver) Values(controls []Control, params url.Values) (Values, error) {
	values := make(Values, len(controls))
	for _, c := range controls {
		selected, ok := params[c.Name]
		if !ok {
			values[c.Name] = c.defaultValue
			continue
		}

		var (
			value Value
			err   error
		)
		switch c.input.(type) {
		case Multiselect:
			value, err = c.selectMulti(nonEmpty(selected))
		case Radio, Selectbox:
			if len(selected) != 1 {
				err = fmt.Errorf("%w: [%s] expects one value", ErrInvalidSelection, c.Name)
				break
			}
			value, err = c.selectSingle(selected[0])
		case Slider:
			value, err = c.selectRange(selected)
		default:
			err = fmt.Errorf("unsupported input: %T", c.input)
		}
		if err != nil {
			return nil, err
		}
		values[c.Name] = value
	}
	return values, nil
}

func (c Control) hasOption(value string) bool {
	for _, o := range c.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (c Control) selectMulti(selected []string) (Multi, error) {
	multi := Multi{Values: []string{}}
	for _, s := range selected {
		if !c.hasOption(s) {
			return Multi{}, fmt.Errorf("%w: [%s] has no option [%s]", ErrInvalidSelection, c.Name, s)
		}
		if s == NullOption {
			multi.IncludeNull = true
			continue
		}
		if !slices.Contains(multi.Values, s) {
			multi.Values = append(multi.Values, s)
		}
	}
	return multi, nil
}

func (c Control) selectSingle(selected string) (Single, error) {
	if !c.hasOption(selected) {
		return Single{}, fmt.Errorf("%w: [%s] has no option [%s]", ErrInvalidSelection, c.Name, selected)
	}
	return Single{Value: selected}, nil
}

func (c Control) selectRange(selected []string) (Value, error) {
	if len(selected) != 2 {
		return nil, fmt.Errorf("%w: [%s] expects two values", ErrInvalidSelection, c.Name)
	}

	if slider, _ := c.input.(Slider); slider.Datatype == DatatypeDate {
		r, err := parseDateRange(selected[0], selected[1])
		if err != nil {
			return nil, fmt.Errorf("%w: [%s]: %s", ErrInvalidSelection, c.Name, err)
		}
		if r.From.Before(c.dateBounds.From) {
			r.From = c.dateBounds.From
		}
		if r.To.After(c.dateBounds.To) {
			r.To = c.dateBounds.To
		}
		return r, nil
	}

	r, err := parseNumberRange(selected[0], selected[1])
	if err != nil {
		return nil, fmt.Errorf("%w: [%s]: %s", ErrInvalidSelection, c.Name, err)
	}
	r.Min = max(r.Min, c.numberBounds.Min)
	r.Max = min(r.Max, c.numberBounds.Max)
	return r, nil
}

func parseDateRange(from, to string) (DateRange, error) {
	fromDate, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse date [%s]: %w", from, err)
	}
	toDate, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse date [%s]: %w", to, err)
	}
	if toDate.Before(fromDate) {
		fromDate, toDate = toDate, fromDate
	}
	return DateRange{From: fromDate, To: toDate}, nil
}

func parseNumberRange(lo, hi string) (NumberRange, error) {
	minVal, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return NumberRange{}, fmt.Errorf("parse number [%s]: %w", lo, err)
	}
	maxVal, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return NumberRange{}, fmt.Errorf("parse number [%s]: %w", hi, err)
	}
	if maxVal < minVal {
		minVal, maxVal = maxVal, minVal
	}
	return NumberRange{Min: minVal, Max: maxVal}, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func selectedList(m Multi) []string {
	list := slices.Clone(m.Values)
	if m.IncludeNull {
		list = append(list, NullOption)
	}
	return list
}

func rangeOutput(v Value) any {
	switch r := v.(type) {
	case DateRange:
		return []string{r.From.Format(time.DateOnly), r.To.Format(time.DateOnly)}
	case NumberRange:
		return []float64{r.Min, r.Max}
	}
	return nil
}
