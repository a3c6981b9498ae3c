package guideline

import (
	"math"
	"strings"
)

// evalNode evaluates a predicate tree against a profile. Pure and total:
// malformed nodes evaluate to false, never panic.
func evalNode(n *Node, r Reader) bool {
	if n == nil {
		return false
	}
	switch {
	case n.All != nil:
		for _, child := range n.All {
			if !evalNode(child, r) {
				return false
			}
		}
		return true // vacuously true for an empty list
	case n.Any != nil:
		for _, child := range n.Any {
			if evalNode(child, r) {
				return true
			}
		}
		return false
	case n.Not != nil:
		return !evalNode(n.Not, r)
	default:
		return evalCondition(n, r)
	}
}

func evalCondition(n *Node, r Reader) bool {
	if n.Key == "" {
		return false
	}
	switch n.Op {
	case "eq":
		equal, resolved := typedEqual(r, n.Key, n.Value)
		return resolved && equal
	case "neq":
		equal, resolved := typedEqual(r, n.Key, n.Value)
		return resolved && !equal
	case "in":
		return evalIn(r, n.Key, n.Values)
	case "contains":
		return evalContains(r, n.Key, n.Value)
	case "gte":
		v, lit, ok := numericOperands(r, n.Key, n.Value)
		return ok && v >= lit
	case "gt":
		v, lit, ok := numericOperands(r, n.Key, n.Value)
		return ok && v > lit
	case "lte":
		v, lit, ok := numericOperands(r, n.Key, n.Value)
		return ok && v <= lit
	case "lt":
		v, lit, ok := numericOperands(r, n.Key, n.Value)
		return ok && v < lit
	case "between_inclusive":
		if n.Min == nil || n.Max == nil {
			return false
		}
		v, ok := numericValue(r, n.Key)
		return ok && v >= *n.Min && v <= *n.Max
	case "present":
		return hasContent(r, n.Key)
	case "absent":
		return !hasContent(r, n.Key)
	default:
		// Unknown operator tokens fail closed.
		return false
	}
}

// typedEqual compares a feature against a JSON literal, trying boolean,
// then normalized string, then integer, then float. The second return
// reports whether any type pairing resolved; unresolved comparisons fail
// both eq and neq.
func typedEqual(r Reader, key string, literal interface{}) (equal, resolved bool) {
	switch lit := literal.(type) {
	case bool:
		v, ok := r.Bool(key)
		return ok && v == lit, ok
	case string:
		v, ok := r.String(key)
		return ok && normalize(v) == normalize(lit), ok
	case float64:
		// JSON numbers arrive as float64; integral literals compare
		// against integer features first.
		if lit == math.Trunc(lit) {
			if v, ok := r.Int(key); ok {
				return v == int64(lit), true
			}
		}
		v, ok := r.Float(key)
		return ok && v == lit, ok
	default:
		return false, false
	}
}

func evalIn(r Reader, key string, literals []interface{}) bool {
	if len(literals) == 0 {
		return false
	}
	set := make(map[string]bool, len(literals))
	for _, lit := range literals {
		if s, ok := lit.(string); ok {
			set[normalize(s)] = true
		}
	}

	if v, ok := r.String(key); ok {
		return set[normalize(v)]
	}
	if list, ok := r.StringList(key); ok {
		for _, item := range list {
			if set[normalize(item)] {
				return true
			}
		}
	}
	return false
}

func evalContains(r Reader, key string, literal interface{}) bool {
	needle, ok := literal.(string)
	if !ok || needle == "" {
		return false
	}
	needle = strings.ToLower(needle)

	if v, ok := r.String(key); ok {
		return strings.Contains(strings.ToLower(v), needle)
	}
	if list, ok := r.StringList(key); ok {
		for _, item := range list {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
	}
	return false
}

// numericOperands resolves both sides of an ordering comparison, float
// preferred with integer fallback on each side.
func numericOperands(r Reader, key string, literal interface{}) (value, lit float64, ok bool) {
	lit, litOK := numericLiteral(literal)
	if !litOK {
		return 0, 0, false
	}
	value, valOK := numericValue(r, key)
	return value, lit, valOK
}

func numericLiteral(literal interface{}) (float64, bool) {
	f, ok := literal.(float64)
	return f, ok
}

func numericValue(r Reader, key string) (float64, bool) {
	if f, ok := r.Float(key); ok {
		return f, true
	}
	if i, ok := r.Int(key); ok {
		return float64(i), true
	}
	return 0, false
}

// hasContent reports presence with non-empty content: empty strings and
// empty lists count as absent.
func hasContent(r Reader, key string) bool {
	if !r.Has(key) {
		return false
	}
	if v, ok := r.String(key); ok {
		return strings.TrimSpace(v) != ""
	}
	if list, ok := r.StringList(key); ok {
		return len(list) > 0
	}
	return true
}

// normalize folds case and surrounding whitespace for string equality.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
