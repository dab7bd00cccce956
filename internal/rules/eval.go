package rules

import (
	"strconv"
	"strings"
	"time"

	"gatescan/internal/models"
)

// History is the slice of the check-in history view the evaluator needs.
type History interface {
	EntriesTotal() int
	EntriesToday(now time.Time) int
	EntriesDays() int
	MinutesSinceFirstEntry(now time.Time) int
	MinutesSinceLastEntry(now time.Time) int
	EntriesSince(t time.Time) int
	EntriesBefore(t time.Time) int
	EntriesDaysSince(t time.Time) int
	EntriesDaysBefore(t time.Time) int
}

// Context carries everything an expression may reference. It is assembled
// per validation call; the evaluator never reaches for shared state.
type Context struct {
	Now         time.Time
	Timezone    *time.Location
	Gate        string
	ItemID      int64
	VariationID int64
	Event       *models.Event
	SubEvent    *models.SubEvent
	History     History
}

func (c *Context) tz() *time.Location {
	if c.Timezone != nil {
		return c.Timezone
	}
	return time.Local
}

// Evaluate runs the expression against the context. An absent or empty
// expression passes. The result is true only when the expression is well
// formed and evaluates to boolean true.
func Evaluate(expr string, ctx *Context) (bool, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" || trimmed == "null" {
		return true, nil
	}
	node, err := Parse(trimmed)
	if err != nil {
		return false, err
	}
	v, err := eval(node, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

func eval(n *Node, ctx *Context) (interface{}, error) {
	switch n.Kind {
	case KindBool:
		return n.Bool, nil
	case KindNumber:
		return n.Number, nil
	case KindString:
		return n.String, nil
	case KindVar:
		return evalVar(n.Name, ctx)
	case KindOp:
		return evalOp(n, ctx)
	}
	return nil, parseErrf("unreachable node kind %d", n.Kind)
}

func evalVar(name string, ctx *Context) (interface{}, error) {
	switch name {
	case "now":
		return ctx.Now, nil
	case "now_isoweekday":
		wd := int(ctx.Now.In(ctx.tz()).Weekday())
		if wd == 0 {
			wd = 7
		}
		return float64(wd), nil
	case "product":
		return strconv.FormatInt(ctx.ItemID, 10), nil
	case "variation":
		if ctx.VariationID == 0 {
			return "", nil
		}
		return strconv.FormatInt(ctx.VariationID, 10), nil
	case "gate":
		return ctx.Gate, nil
	case "entries_number":
		return float64(historyOr(ctx).EntriesTotal()), nil
	case "entries_today":
		return float64(historyOr(ctx).EntriesToday(ctx.Now)), nil
	case "entries_days":
		return float64(historyOr(ctx).EntriesDays()), nil
	case "minutes_since_first_entry":
		return float64(historyOr(ctx).MinutesSinceFirstEntry(ctx.Now)), nil
	case "minutes_since_last_entry":
		return float64(historyOr(ctx).MinutesSinceLastEntry(ctx.Now)), nil
	}
	return nil, parseErrf("unknown variable %q", name)
}

func evalOp(n *Node, ctx *Context) (interface{}, error) {
	switch n.Op {
	case "and":
		for _, arg := range n.Args {
			v, err := eval(arg, ctx)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil

	case "or":
		for _, arg := range n.Args {
			v, err := eval(arg, ctx)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil

	case "!":
		if len(n.Args) != 1 {
			return nil, parseErrf("! takes one argument, got %d", len(n.Args))
		}
		v, err := eval(n.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil

	case "==", "!=":
		if len(n.Args) != 2 {
			return nil, parseErrf("%s takes two arguments, got %d", n.Op, len(n.Args))
		}
		a, err := eval(n.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		b, err := eval(n.Args[1], ctx)
		if err != nil {
			return nil, err
		}
		eq := equalValues(a, b)
		if n.Op == "!=" {
			return !eq, nil
		}
		return eq, nil

	case "<", "<=", ">", ">=":
		if len(n.Args) != 2 {
			return nil, parseErrf("%s takes two arguments, got %d", n.Op, len(n.Args))
		}
		a, err := evalNumber(n.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		b, err := evalNumber(n.Args[1], ctx)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "<":
			return a < b, nil
		case "<=":
			return a <= b, nil
		case ">":
			return a > b, nil
		default:
			return a >= b, nil
		}

	case "inList":
		if len(n.Args) != 2 {
			return nil, parseErrf("inList takes two arguments, got %d", len(n.Args))
		}
		elem, err := eval(n.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		listVal, err := eval(n.Args[1], ctx)
		if err != nil {
			return nil, err
		}
		list, ok := listVal.([]interface{})
		if !ok {
			return nil, parseErrf("inList second argument must be a list")
		}
		for _, item := range list {
			if equalValues(elem, item) {
				return true, nil
			}
		}
		return false, nil

	case "objectList":
		items := make([]interface{}, 0, len(n.Args))
		for _, arg := range n.Args {
			v, err := eval(arg, ctx)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case "lookup":
		// ["<type>", "<value>", "<label>"]: the typed literal sits at
		// position 1; the rest is display metadata.
		if len(n.Args) < 2 {
			return nil, parseErrf("lookup takes at least two arguments, got %d", len(n.Args))
		}
		v, err := eval(n.Args[1], ctx)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case string:
			return t, nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		}
		return nil, parseErrf("lookup value must be a string or number")

	case "buildTime":
		return evalBuildTime(n, ctx)

	case "isAfter", "isBefore":
		return evalTimeCompare(n, ctx)

	case "entries_since", "entries_before", "entries_days_since", "entries_days_before":
		if len(n.Args) != 1 {
			return nil, parseErrf("%s takes one argument, got %d", n.Op, len(n.Args))
		}
		v, err := eval(n.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		t, ok := v.(time.Time)
		if !ok {
			return nil, parseErrf("%s argument must be a time", n.Op)
		}
		h := historyOr(ctx)
		switch n.Op {
		case "entries_since":
			return float64(h.EntriesSince(t)), nil
		case "entries_before":
			return float64(h.EntriesBefore(t)), nil
		case "entries_days_since":
			return float64(h.EntriesDaysSince(t)), nil
		default:
			return float64(h.EntriesDaysBefore(t)), nil
		}
	}
	return nil, parseErrf("unknown operator %q", n.Op)
}

func evalTimeCompare(n *Node, ctx *Context) (interface{}, error) {
	if len(n.Args) < 2 || len(n.Args) > 3 {
		return nil, parseErrf("%s takes two or three arguments, got %d", n.Op, len(n.Args))
	}
	av, err := eval(n.Args[0], ctx)
	if err != nil {
		return nil, err
	}
	bv, err := eval(n.Args[1], ctx)
	if err != nil {
		return nil, err
	}
	a, aok := av.(time.Time)
	b, bok := bv.(time.Time)
	if !aok || !bok {
		return nil, parseErrf("%s arguments must be times", n.Op)
	}

	tolerance := time.Duration(0)
	if len(n.Args) == 3 {
		minutes, err := evalNumber(n.Args[2], ctx)
		if err != nil {
			return nil, err
		}
		tolerance = time.Duration(minutes * float64(time.Minute))
	}

	// The tolerance widens the window on the right-hand side.
	if n.Op == "isAfter" {
		return a.After(b.Add(-tolerance)), nil
	}
	return a.Before(b.Add(tolerance)), nil
}

func evalBuildTime(n *Node, ctx *Context) (interface{}, error) {
	if len(n.Args) < 1 {
		return nil, parseErrf("buildTime needs a mode argument")
	}
	if n.Args[0].Kind != KindString {
		return nil, parseErrf("buildTime mode must be a string literal")
	}
	mode := n.Args[0].String

	switch mode {
	case "custom":
		if len(n.Args) != 2 || n.Args[1].Kind != KindString {
			return nil, parseErrf("buildTime custom needs one string argument")
		}
		return parseInstant(n.Args[1].String, ctx.tz())

	case "customtime":
		if len(n.Args) != 2 || n.Args[1].Kind != KindString {
			return nil, parseErrf("buildTime customtime needs one string argument")
		}
		return combineWithToday(n.Args[1].String, ctx)

	case "date_from", "date_to", "date_admission":
		t := eventDate(mode, ctx)
		if t == nil {
			return nil, parseErrf("buildTime %s: event date not set", mode)
		}
		return *t, nil
	}
	return nil, parseErrf("buildTime mode %q is not supported", mode)
}

func parseInstant(s string, tz *time.Location) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, tz); err == nil {
			return t, nil
		}
	}
	return time.Time{}, parseErrf("cannot parse instant %q", s)
}

func combineWithToday(s string, ctx *Context) (time.Time, error) {
	var clock time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		clock, err = time.Parse(layout, s)
		if err == nil {
			now := ctx.Now.In(ctx.tz())
			return time.Date(now.Year(), now.Month(), now.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, ctx.tz()), nil
		}
	}
	return time.Time{}, parseErrf("cannot parse time of day %q", s)
}

// eventDate resolves an admission/from/to date, preferring the active
// subevent's value over the event's.
func eventDate(mode string, ctx *Context) *time.Time {
	pick := func(from, to, admission *time.Time) *time.Time {
		switch mode {
		case "date_from":
			return from
		case "date_to":
			return to
		default:
			return admission
		}
	}
	if ctx.SubEvent != nil {
		if t := pick(ctx.SubEvent.DateFrom, ctx.SubEvent.DateTo, ctx.SubEvent.DateAdmission); t != nil {
			return t
		}
	}
	if ctx.Event != nil {
		return pick(ctx.Event.DateFrom, ctx.Event.DateTo, ctx.Event.DateAdmission)
	}
	return nil
}

func evalNumber(n *Node, ctx *Context) (float64, error) {
	v, err := eval(n, ctx)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, nil
		}
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, parseErrf("expected a number, got %T", v)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case time.Time:
		return !t.IsZero()
	case []interface{}:
		return len(t) > 0
	}
	return false
}

func equalValues(a, b interface{}) bool {
	switch at := a.(type) {
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	case float64:
		switch bt := b.(type) {
		case float64:
			return at == bt
		case string:
			if f, err := strconv.ParseFloat(bt, 64); err == nil {
				return at == f
			}
			return false
		}
	case string:
		switch bt := b.(type) {
		case string:
			return at == bt
		case float64:
			if f, err := strconv.ParseFloat(at, 64); err == nil {
				return f == bt
			}
			return false
		}
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	}
	return false
}

func historyOr(ctx *Context) History {
	if ctx.History != nil {
		return ctx.History
	}
	return emptyHistory{}
}

type emptyHistory struct{}

func (emptyHistory) EntriesTotal() int                    { return 0 }
func (emptyHistory) EntriesToday(time.Time) int           { return 0 }
func (emptyHistory) EntriesDays() int                     { return 0 }
func (emptyHistory) MinutesSinceFirstEntry(time.Time) int { return -1 }
func (emptyHistory) MinutesSinceLastEntry(time.Time) int  { return -1 }
func (emptyHistory) EntriesSince(time.Time) int           { return 0 }
func (emptyHistory) EntriesBefore(time.Time) int          { return 0 }
func (emptyHistory) EntriesDaysSince(time.Time) int       { return 0 }
func (emptyHistory) EntriesDaysBefore(time.Time) int      { return 0 }
