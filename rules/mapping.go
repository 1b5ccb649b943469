package rules

import (
	"fmt"
	"strings"
)

// Direction says which side of a task or rule an endpoint refers to.
type Direction string

const (
	DirectionInput  Direction = "Input"
	DirectionOutput Direction = "Output"
)

// RulePlace is the place name that refers to the rule itself rather than a
// task alias.
const RulePlace = "*"

const mappingAssign = ":="

// Endpoint is one side of a mapping expression: place.Direction.attr
type Endpoint struct {
	Place     string
	Direction Direction
	Attr      string
}

// IsRule reports whether the endpoint addresses the rule's own inputs or
// outputs.
func (e Endpoint) IsRule() bool {
	return e.Place == RulePlace
}

func (e Endpoint) String() string {
	return e.Place + "." + string(e.Direction) + "." + e.Attr
}

// Mapping is a parsed data-flow expression `dest:=source`.
type Mapping struct {
	Raw    string
	Dest   Endpoint
	Source Endpoint
}

func (m Mapping) String() string {
	return m.Dest.String() + mappingAssign + m.Source.String()
}

// ParseMapping parses an expression of the form
// `<place>.<Input|Output>.<attr>:=<place>.<Input|Output>.<attr>`.
func ParseMapping(expr string) (Mapping, error) {
	parts := strings.Split(expr, mappingAssign)
	if len(parts) != 2 {
		return Mapping{}, fmt.Errorf("expected exactly one %q in mapping %q", mappingAssign, expr)
	}
	dest, err := parseEndpoint(parts[0])
	if err != nil {
		return Mapping{}, fmt.Errorf("invalid destination in mapping %q: %w", expr, err)
	}
	src, err := parseEndpoint(parts[1])
	if err != nil {
		return Mapping{}, fmt.Errorf("invalid source in mapping %q: %w", expr, err)
	}
	return Mapping{Raw: expr, Dest: dest, Source: src}, nil
}

func parseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return Endpoint{}, fmt.Errorf("%q is not of the form place.Input|Output.attr", s)
	}
	ep := Endpoint{Place: parts[0], Direction: Direction(parts[1]), Attr: parts[2]}
	if ep.Place == "" {
		return Endpoint{}, fmt.Errorf("%q has an empty place", s)
	}
	if ep.Direction != DirectionInput && ep.Direction != DirectionOutput {
		return Endpoint{}, fmt.Errorf("%q has direction %q, expected Input or Output", s, parts[1])
	}
	if ep.Attr == "" || strings.ContainsAny(ep.Attr, " \t") {
		return Endpoint{}, fmt.Errorf("%q has an invalid attribute name", s)
	}
	return ep, nil
}
