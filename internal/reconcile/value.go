// Package reconcile picks one displayed value per field from several
// independently failing sources, without letting a stale or failed source
// regress what is already shown.
package reconcile

import "strconv"

// Value is an optional non-negative count. The zero Value is unknown.
type Value struct {
	N     int
	Known bool
}

// Unknown is the explicit loading/unresolved state, distinct from zero.
var Unknown = Value{}

// Some returns a known value; negative numbers are not valid and give Unknown.
func Some(n int) Value {
	if n < 0 {
		return Unknown
	}
	return Value{N: n, Known: true}
}

// Ptr returns nil for unknown values, for JSON encoding.
func (v Value) Ptr() *int {
	if !v.Known {
		return nil
	}
	n := v.N
	return &n
}

func (v Value) String() string {
	if !v.Known {
		return "unknown"
	}
	return strconv.Itoa(v.N)
}

// Choose applies the selection policy to candidates in priority order:
// the first positive candidate wins; otherwise a confirmed zero; otherwise
// the previously displayed value; otherwise Unknown.
func Choose(candidates []Value, prev Value) Value {
	sawZero := false
	for _, c := range candidates {
		if !c.Known || c.N < 0 {
			continue
		}
		if c.N > 0 {
			return c
		}
		sawZero = true
	}
	if sawZero {
		return Some(0)
	}
	if prev.Known {
		return prev
	}
	return Unknown
}
