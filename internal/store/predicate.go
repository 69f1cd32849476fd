package store

import "strings"

// Predicate is the metadata predicate grammar (§4.4): field equality, `$in`
// set membership, list-contains, and boolean `$and`/`$or` composition. A
// zero-value Predicate matches everything.
type Predicate struct {
	Eq       map[string]any   // field == value, all must hold
	In       map[string][]any // field's value is a member of the list
	Contains map[string]any   // field is a list containing value
	And      []Predicate
	Or       []Predicate
}

// Empty reports whether p imposes no constraint.
func (p Predicate) Empty() bool {
	return len(p.Eq) == 0 && len(p.In) == 0 && len(p.Contains) == 0 && len(p.And) == 0 && len(p.Or) == 0
}

// Eval evaluates the predicate against a chunk's metadata fields.
func (p Predicate) Eval(meta map[string]any) bool {
	if p.Empty() {
		return true
	}

	for field, want := range p.Eq {
		if !valuesEqual(meta[field], want) {
			return false
		}
	}
	for field, list := range p.In {
		if !memberOf(meta[field], list) {
			return false
		}
	}
	for field, want := range p.Contains {
		if !listContains(meta[field], want) {
			return false
		}
	}
	for _, sub := range p.And {
		if !sub.Eval(meta) {
			return false
		}
	}
	if len(p.Or) > 0 {
		matched := false
		for _, sub := range p.Or {
			if sub.Eval(meta) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	return toComparable(a) == toComparable(b)
}

func toComparable(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func memberOf(v any, list []any) bool {
	for _, item := range list {
		if valuesEqual(v, item) {
			return true
		}
	}
	return false
}

func listContains(field any, want any) bool {
	switch list := field.(type) {
	case []any:
		for _, item := range list {
			if valuesEqual(item, want) {
				return true
			}
		}
	case []string:
		s, ok := want.(string)
		if !ok {
			return false
		}
		for _, item := range list {
			if item == s {
				return true
			}
		}
	}
	return false
}

// SubstringPredicate is the §4.4 `$contains` predicate: a literal,
// case-sensitive substring match against one metadata field's text value.
type SubstringPredicate struct {
	Field     string
	Substring string
}

// Eval reports whether the named field's string value contains Substring.
func (s SubstringPredicate) Eval(meta map[string]any) bool {
	if s.Substring == "" {
		return true
	}
	v, ok := meta[s.Field].(string)
	if !ok {
		return false
	}
	return strings.Contains(v, s.Substring)
}
