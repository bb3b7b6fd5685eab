package domain

import "fmt"

// LifecycleState represents the lifecycle state of an index generation.
// The nominal progression is Draft -> Indexing -> Staging -> Production ->
// Deprecated -> Archived, but transitions are not validated unless strict
// mode is enabled.
type LifecycleState string

const (
	StateDraft      LifecycleState = "draft"
	StateIndexing   LifecycleState = "indexing"
	StateStaging    LifecycleState = "staging"
	StateProduction LifecycleState = "production"
	StateDeprecated LifecycleState = "deprecated"
	StateArchived   LifecycleState = "archived"
)

// stateRank orders states along the nominal lifecycle progression.
var stateRank = map[LifecycleState]int{
	StateDraft:      0,
	StateIndexing:   1,
	StateStaging:    2,
	StateProduction: 3,
	StateDeprecated: 4,
	StateArchived:   5,
}

// ParseLifecycleState converts a string into a LifecycleState.
// Parameters:
//   - s: state name, e.g. "production".
// Returns:
//   - LifecycleState: parsed state.
//   - error: non-nil if s names no known state.
func ParseLifecycleState(s string) (LifecycleState, error) {
	state := LifecycleState(s)
	if _, ok := stateRank[state]; !ok {
		return "", fmt.Errorf("unknown lifecycle state %q", s)
	}
	return state, nil
}

// IsValid reports whether the state is one of the defined lifecycle states.
func (s LifecycleState) IsValid() bool {
	_, ok := stateRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is a forward step
// in the lifecycle ordering. Only consulted when strict transitions are
// enabled; the permissive default accepts any target.
func (s LifecycleState) CanTransitionTo(target LifecycleState) bool {
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[target]
	if !ok {
		return false
	}
	return to > from
}
