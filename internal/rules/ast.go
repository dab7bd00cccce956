// Package rules interprets the boolean expression trees attached to
// check-in lists. The operator vocabulary is closed: expressions are parsed
// into a tagged AST up front and walked by a small evaluator, so a malformed
// or out-of-vocabulary expression fails with a diagnostic instead of
// reaching the admission decision.
package rules

import (
	"encoding/json"
	"fmt"
)

type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
	KindVar
	KindOp
)

// Node is one vertex of the parsed expression tree.
type Node struct {
	Kind   Kind
	Bool   bool
	Number float64
	String string
	Name   string // KindVar
	Op     string // KindOp
	Args   []*Node
}

// ParseError covers malformed expressions and operator misuse. It is a
// system-level failure, distinct from an expression that evaluates to a
// non-true result.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "rule parsing error: " + e.Msg
}

func parseErrf(format string, args ...interface{}) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

var knownVars = map[string]bool{
	"now":                       true,
	"now_isoweekday":            true,
	"product":                   true,
	"variation":                 true,
	"gate":                      true,
	"entries_number":            true,
	"entries_today":             true,
	"entries_days":              true,
	"minutes_since_first_entry": true,
	"minutes_since_last_entry":  true,
}

var knownOps = map[string]bool{
	"and":                 true,
	"or":                  true,
	"!":                   true,
	"==":                  true,
	"!=":                  true,
	"<":                   true,
	"<=":                  true,
	">":                   true,
	">=":                  true,
	"inList":              true,
	"objectList":          true,
	"lookup":              true,
	"buildTime":           true,
	"isAfter":             true,
	"isBefore":            true,
	"entries_since":       true,
	"entries_before":      true,
	"entries_days_since":  true,
	"entries_days_before": true,
}

// Parse turns a raw JSON expression into an AST, rejecting anything outside
// the fixed vocabulary.
func Parse(raw string) (*Node, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, parseErrf("invalid JSON: %v", err)
	}
	return build(v)
}

func build(v interface{}) (*Node, error) {
	switch t := v.(type) {
	case bool:
		return &Node{Kind: KindBool, Bool: t}, nil
	case float64:
		return &Node{Kind: KindNumber, Number: t}, nil
	case string:
		return &Node{Kind: KindString, String: t}, nil
	case []interface{}:
		// A bare array is a list constructor, same as objectList.
		args, err := buildArgs(t)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindOp, Op: "objectList", Args: args}, nil
	case map[string]interface{}:
		if len(t) != 1 {
			return nil, parseErrf("operator object must have exactly one key, got %d", len(t))
		}
		for op, rawArgs := range t {
			if op == "var" {
				return buildVar(rawArgs)
			}
			if !knownOps[op] {
				return nil, parseErrf("unknown operator %q", op)
			}
			var argList []interface{}
			if arr, ok := rawArgs.([]interface{}); ok {
				argList = arr
			} else {
				argList = []interface{}{rawArgs}
			}
			args, err := buildArgs(argList)
			if err != nil {
				return nil, err
			}
			return &Node{Kind: KindOp, Op: op, Args: args}, nil
		}
		return nil, parseErrf("empty operator object")
	case nil:
		return nil, parseErrf("null is not a valid expression")
	default:
		return nil, parseErrf("unsupported literal %T", v)
	}
}

func buildVar(rawArgs interface{}) (*Node, error) {
	name, ok := rawArgs.(string)
	if !ok {
		// json-logic also allows {"var": ["name"]}.
		if arr, isArr := rawArgs.([]interface{}); isArr && len(arr) == 1 {
			name, ok = arr[0].(string)
		}
	}
	if !ok {
		return nil, parseErrf("var reference must be a string")
	}
	if !knownVars[name] {
		return nil, parseErrf("unknown variable %q", name)
	}
	return &Node{Kind: KindVar, Name: name}, nil
}

func buildArgs(raw []interface{}) ([]*Node, error) {
	args := make([]*Node, 0, len(raw))
	for _, a := range raw {
		n, err := build(a)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return args, nil
}
