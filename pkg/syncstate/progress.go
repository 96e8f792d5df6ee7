// Package syncstate is the device-resident half of progress syncing. It
// keeps a per-day completion cache that can grow fully offline and merges
// it with server state through a commutative, associative, idempotent
// merge, so syncs triggered by login, reconnect and timers can all run
// without coordinating with each other.
package syncstate

import (
	"encoding/json"
	"sort"
)

// StringSet is a grow-only set serialized as a sorted JSON array.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s StringSet) Items() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func (s *StringSet) UnmarshalJSON(raw []byte) error {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}

// DayProgress is one calendar day of completion state: singles complete at
// most once per day, repeatables carry a count that only grows.
type DayProgress struct {
	Singles     StringSet        `json:"singles"`
	Repeatables map[string]int64 `json:"repeatables"`
}

func NewDayProgress() DayProgress {
	return DayProgress{
		Singles:     make(StringSet),
		Repeatables: make(map[string]int64),
	}
}

// Merge is the convergence primitive: set union over singles, per-key max
// over repeatables. Commutative, associative and idempotent, so merge
// order never matters and re-merging is harmless. Neither input is
// mutated.
func Merge(a, b DayProgress) DayProgress {
	out := NewDayProgress()
	for it := range a.Singles {
		out.Singles[it] = struct{}{}
	}
	for it := range b.Singles {
		out.Singles[it] = struct{}{}
	}
	for k, v := range a.Repeatables {
		if v > out.Repeatables[k] {
			out.Repeatables[k] = v
		}
	}
	for k, v := range b.Repeatables {
		if v > out.Repeatables[k] {
			out.Repeatables[k] = v
		}
	}
	return out
}

func Equal(a, b DayProgress) bool {
	if len(a.Singles) != len(b.Singles) || len(a.Repeatables) != len(b.Repeatables) {
		return false
	}
	for it := range a.Singles {
		if !b.Singles.Has(it) {
			return false
		}
	}
	for k, v := range a.Repeatables {
		if b.Repeatables[k] != v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func Clone(p DayProgress) DayProgress {
	return Merge(p, NewDayProgress())
}
