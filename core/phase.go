package core

import (
	"cmp"
	"errors"
	"slices"
)

var (
	ErrMultipleActivePhases = errors.New("more than one phase is active")
	ErrPhaseOrder           = errors.New("a phase is active while an earlier phase is not finished")
	ErrPhaseAlreadyActive   = errors.New("a phase is already active")
	ErrNoPendingPhase       = errors.New("no pending phase left to activate")
)

// The result of a phase advancement: the active phase finishes and
// the next phase, if there is one, becomes active.
type PhaseTransition struct {
	FinishedPhaseID string `json:"finishedPhaseId,omitempty"`
	// Empty when the finished phase was the last one
	ActivatedPhaseID string `json:"activatedPhaseId,omitempty"`
}

func (t *PhaseTransition) ApplyTo(phases []*Phase) {
	for _, p := range phases {
		if t.FinishedPhaseID != "" && p.ID == t.FinishedPhaseID {
			p.Status = PhaseFinished
		}
		if t.ActivatedPhaseID != "" && p.ID == t.ActivatedPhaseID {
			p.Status = PhaseActive
		}
	}
}

func sortedPhases(phases []*Phase) []*Phase {
	sorted := slices.Clone(phases)
	slices.SortStableFunc(sorted, func(a, b *Phase) int { return cmp.Compare(a.Order, b.Order) })
	return sorted
}

// Checks that at most one phase is active and that all
// phases before the active one are finished
func ValidatePhases(phases []*Phase) error {
	sorted := sortedPhases(phases)

	active := slices.IndexFunc(sorted, func(p *Phase) bool { return p.Status == PhaseActive })
	if active < 0 {
		return nil
	}
	for _, p := range sorted[active+1:] {
		if p.Status == PhaseActive {
			return ErrMultipleActivePhases
		}
	}
	for _, p := range sorted[:active] {
		if p.Status != PhaseFinished {
			return ErrPhaseOrder
		}
	}
	return nil
}

// Returns the active phase or nil if none is active
func ActivePhase(phases []*Phase) *Phase {
	i := slices.IndexFunc(phases, func(p *Phase) bool { return p.Status == PhaseActive })
	if i < 0 {
		return nil
	}
	return phases[i]
}

// Returns true when the phase has at least one match
// and all of its matches are finished
func PhaseComplete(phaseID string, matches []*Match) bool {
	numMatches := 0
	for _, m := range matches {
		if m.PhaseID != phaseID {
			continue
		}
		if !m.IsFinished() {
			return false
		}
		numMatches += 1
	}
	return numMatches > 0
}

// Decides whether the active phase is complete.
//
// When it is, the returned transition finishes it and activates the
// next phase by order. Returns nil when no phase is active, the active
// phase is not complete or the phases violate their invariants.
func AdvancePhase(phases []*Phase, matches []*Match) *PhaseTransition {
	if ValidatePhases(phases) != nil {
		return nil
	}

	sorted := sortedPhases(phases)
	i := slices.IndexFunc(sorted, func(p *Phase) bool { return p.Status == PhaseActive })
	if i < 0 {
		return nil
	}

	active := sorted[i]
	if !PhaseComplete(active.ID, matches) {
		return nil
	}

	transition := &PhaseTransition{FinishedPhaseID: active.ID}
	if i+1 < len(sorted) {
		next := sorted[i+1]
		if next.Status != PhasePending {
			return nil
		}
		transition.ActivatedPhaseID = next.ID
	}

	return transition
}

// Returns the transition that activates the first phase of a
// tournament that has not started yet
func StartFirstPhase(phases []*Phase) (*PhaseTransition, error) {
	if ActivePhase(phases) != nil {
		return nil, ErrPhaseAlreadyActive
	}

	for _, p := range sortedPhases(phases) {
		switch p.Status {
		case PhaseFinished:
			continue
		case PhasePending:
			return &PhaseTransition{ActivatedPhaseID: p.ID}, nil
		}
	}

	return nil, ErrNoPendingPhase
}
