package filters

import "time"

// Value is the resolved selection of one filter.
type Value interface {
	isValue()
}

type Multi struct {
	Values      []string
	IncludeNull bool
}

type Single struct {
	Value string
}

type DateRange struct {
	From time.Time
	To   time.Time
}

type NumberRange struct {
	Min float64
	Max float64
}

func (Multi) isValue()       {}
func (Single) isValue()      {}
func (DateRange) isValue()   {}
func (NumberRange) isValue() {}

// Values maps filter names to their selections, for one request.
type Values map[string]Value

// String returns the selected value of a single choice filter, or "".
func (v Values) String(name string) string {
	switch val := v[name].(type) {
	case Single:
		return val.Value
	case Multi:
		if len(val.Values) > 0 {
			return val.Values[0]
		}
	}
	return ""
}
