package router

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// LogicalOperator joins a condition to the one before it in the same route.
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Operator is the comparison applied between a condition's variable and value.
type Operator string

const (
	OpContains      Operator = "contains"
	OpEquals        Operator = "equals"
	OpNumberEquals  Operator = "number_equals"
	OpGreaterThan   Operator = "greater_than"
	OpLessThan      Operator = "less_than"
	OpStartsWith    Operator = "starts_with"
	OpNotStartsWith Operator = "not_starts_with"
	OpIsEmpty       Operator = "is_empty"
	OpIsNotEmpty    Operator = "is_not_empty"
)

// Operators lists the closed operator set in display order.
var Operators = []Operator{
	OpContains, OpEquals, OpNumberEquals, OpGreaterThan, OpLessThan,
	OpStartsWith, OpNotStartsWith, OpIsEmpty, OpIsNotEmpty,
}

// Valid reports whether o belongs to the closed operator set.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Valid reports whether l is AND or OR.
func (l LogicalOperator) Valid() bool {
	return l == And || l == Or
}

// Condition is a single comparison inside a route.
type Condition struct {
	// LogicalOperator is set only on conditions after the first one.
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty" yaml:"logicalOperator,omitempty" validate:"omitempty,oneof=AND OR"`
	Variable        string          `json:"variable" yaml:"variable"`
	Operator        Operator        `json:"operator" yaml:"operator" validate:"required,oneof=contains equals number_equals greater_than less_than starts_with not_starts_with is_empty is_not_empty"`
	Value           string          `json:"value" yaml:"value"`
}

// Route is one branch of a router node. Its position in the route list
// determines its output handle.
type Route struct {
	Conditions []Condition `json:"conditions" yaml:"conditions" validate:"required,min=1,dive"`
}

// Field names a mutable attribute of a Condition.
type Field string

const (
	FieldLogicalOperator Field = "logicalOperator"
	FieldVariable        Field = "variable"
	FieldOperator        Field = "operator"
	FieldValue           Field = "value"
)

// SchemaType is the declared type of every route output.
const SchemaType = "any"

var (
	// ErrLastCondition is returned when removing a route's only condition.
	ErrLastCondition = errors.New("route must keep at least one condition")

	// ErrIndexOutOfRange is returned for route or condition indexes that do not exist.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidOperator is returned for operators or connectives outside the closed sets.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrConnectiveOnFirst is returned when a connective is set on a route's first condition.
	ErrConnectiveOnFirst = errors.New("first condition of a route cannot carry a logical operator")

	// ErrUnknownField is returned by UpdateCondition for unknown field names.
	ErrUnknownField = errors.New("unknown condition field")
)

var validate = validator.New()

// DefaultCondition returns the empty condition used for new routes.
func DefaultCondition() Condition {
	return Condition{Operator: OpContains}
}

// DefaultRoute returns a route holding a single default condition.
func DefaultRoute() Route {
	return Route{Conditions: []Condition{DefaultCondition()}}
}

// Handle returns the output handle name of the route at index i.
func Handle(i int) string {
	return fmt.Sprintf("Route_%d", i+1)
}

// OutputSchema derives the router's output schema from its routes. The result
// is the only source of truth for the node's output handles.
func OutputSchema(routes []Route) map[string]string {
	schema := make(map[string]string, len(routes))
	for i := range routes {
		schema[Handle(i)] = SchemaType
	}
	return schema
}

// Clone returns a deep copy of routes.
func Clone(routes []Route) []Route {
	if routes == nil {
		return nil
	}
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = Route{Conditions: append([]Condition(nil), r.Conditions...)}
	}
	return out
}

// Normalize heals routes loaded from persisted state: an empty list becomes a
// single default route, empty routes get a default condition, missing or
// unknown operators become contains, and connectives are forced to exist
// exactly on conditions after the first.
func Normalize(routes []Route) []Route {
	if len(routes) == 0 {
		return []Route{DefaultRoute()}
	}

	out := make([]Route, len(routes))
	for i, r := range routes {
		if len(r.Conditions) == 0 {
			out[i] = DefaultRoute()
			continue
		}
		conds := make([]Condition, len(r.Conditions))
		for j, c := range r.Conditions {
			if !c.Operator.Valid() {
				c.Operator = OpContains
			}
			if j == 0 {
				c.LogicalOperator = ""
			} else if !c.LogicalOperator.Valid() {
				c.LogicalOperator = And
			}
			conds[j] = c
		}
		out[i] = Route{Conditions: conds}
	}
	return out
}

// Validate checks routes against the struct constraints and the connective
// placement invariant.
func Validate(routes []Route) error {
	for i := range routes {
		if err := validate.Struct(routes[i]); err != nil {
			return fmt.Errorf("route %d: %w", i+1, err)
		}
		for j, c := range routes[i].Conditions {
			if j == 0 && c.LogicalOperator != "" {
				return fmt.Errorf("route %d: %w", i+1, ErrConnectiveOnFirst)
			}
			if j > 0 && c.LogicalOperator == "" {
				return fmt.Errorf("route %d condition %d: missing logical operator", i+1, j+1)
			}
		}
	}
	return nil
}

// AddRoute appends a default route.
func AddRoute(routes []Route) []Route {
	return append(Clone(routes), DefaultRoute())
}

// RemoveRoute deletes the route at index i. Later routes shift down and take
// over the handles of their new positions.
func RemoveRoute(routes []Route, i int) ([]Route, error) {
	if i < 0 || i >= len(routes) {
		return routes, fmt.Errorf("route %d: %w", i, ErrIndexOutOfRange)
	}
	out := Clone(routes)
	return append(out[:i], out[i+1:]...), nil
}

// AddCondition appends a default AND condition to the route at index ri.
func AddCondition(routes []Route, ri int) ([]Route, error) {
	if ri < 0 || ri >= len(routes) {
		return routes, fmt.Errorf("route %d: %w", ri, ErrIndexOutOfRange)
	}
	out := Clone(routes)
	c := DefaultCondition()
	if len(out[ri].Conditions) > 0 {
		c.LogicalOperator = And
	}
	out[ri].Conditions = append(out[ri].Conditions, c)
	return out, nil
}

// RemoveCondition deletes a condition. Removing the last remaining condition
// of a route is rejected and leaves the routes unchanged.
func RemoveCondition(routes []Route, ri, ci int) ([]Route, error) {
	if ri < 0 || ri >= len(routes) {
		return routes, fmt.Errorf("route %d: %w", ri, ErrIndexOutOfRange)
	}
	conds := routes[ri].Conditions
	if ci < 0 || ci >= len(conds) {
		return routes, fmt.Errorf("condition %d: %w", ci, ErrIndexOutOfRange)
	}
	if len(conds) <= 1 {
		return routes, ErrLastCondition
	}

	out := Clone(routes)
	kept := append(out[ri].Conditions[:ci], out[ri].Conditions[ci+1:]...)
	// The new head of the route must not keep a connective.
	if ci == 0 {
		kept[0].LogicalOperator = ""
	}
	out[ri].Conditions = kept
	return out, nil
}

// UpdateCondition sets a single field on one condition.
func UpdateCondition(routes []Route, ri, ci int, field Field, value string) ([]Route, error) {
	if ri < 0 || ri >= len(routes) {
		return routes, fmt.Errorf("route %d: %w", ri, ErrIndexOutOfRange)
	}
	if ci < 0 || ci >= len(routes[ri].Conditions) {
		return routes, fmt.Errorf("condition %d: %w", ci, ErrIndexOutOfRange)
	}

	out := Clone(routes)
	c := &out[ri].Conditions[ci]
	switch field {
	case FieldVariable:
		c.Variable = value
	case FieldValue:
		c.Value = value
	case FieldOperator:
		op := Operator(value)
		if !op.Valid() {
			return routes, fmt.Errorf("%q: %w", value, ErrInvalidOperator)
		}
		c.Operator = op
	case FieldLogicalOperator:
		if ci == 0 {
			return routes, ErrConnectiveOnFirst
		}
		lo := LogicalOperator(value)
		if !lo.Valid() {
			return routes, fmt.Errorf("%q: %w", value, ErrInvalidOperator)
		}
		c.LogicalOperator = lo
	default:
		return routes, fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return out, nil
}

// HandleRemap returns, for a router that had count routes and lost the one at
// index removed, the mapping from old output handles to new ones. The removed
// route's handle is absent from the mapping.
func HandleRemap(count, removed int) map[string]string {
	mapping := make(map[string]string, count)
	for i := 0; i < count; i++ {
		switch {
		case i < removed:
			mapping[Handle(i)] = Handle(i)
		case i > removed:
			mapping[Handle(i)] = Handle(i - 1)
		}
	}
	return mapping
}
