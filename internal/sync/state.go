package sync

import (
	"fmt"
	"time"
)

// EntityType names a collection tracked for synchronization.
type EntityType string

const (
	EntityEquipment    EntityType = "equipment"
	EntityPersonnel    EntityType = "personnel"
	EntityInstances    EntityType = "instances"
	EntityConsumptions EntityType = "consumptions"
	EntityFailures     EntityType = "failures"
)

// EntityTypes lists every tracked type in canonical order.
func EntityTypes() []EntityType {
	return []EntityType{EntityEquipment, EntityPersonnel, EntityInstances, EntityConsumptions, EntityFailures}
}

// ParseEntityType validates a type name.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range EntityTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Mode selects how a pass reaches the remote.
type Mode string

const (
	// ModeOnline pushes through the Remote and may fail.
	ModeOnline Mode = "online"
	// ModeLocal commits immediately without contacting the remote.
	ModeLocal Mode = "local"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnline, ModeLocal:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
}

// DefaultFrequency is the auto-sync period, in minutes, of a fresh state.
const DefaultFrequency = 30

// EntityState is the sync bookkeeping for one entity type.
type EntityState struct {
	PendingCount int        `json:"pendingCount"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
}

// State is the persisted sync record.
//
// PendingCount always equals the sum of Entities[*].PendingCount; it is
// recomputed after every change and never adjusted on its own.
type State struct {
	PendingCount       int                        `json:"pendingCount"`
	LastSyncAttempt    *time.Time                 `json:"lastSyncAttempt,omitempty"`
	LastSuccessfulSync *time.Time                 `json:"lastSuccessfulSync,omitempty"`
	AutoSync           bool                       `json:"autoSync"`
	SyncFrequency      int                        `json:"syncFrequency"`
	Entities           map[EntityType]EntityState `json:"entities"`
}

// DefaultState is the state used when nothing has been persisted yet.
func DefaultState() State {
	return State{
		SyncFrequency: DefaultFrequency,
		Entities:      map[EntityType]EntityState{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.LastSyncAttempt = cloneTime(s.LastSyncAttempt)
	out.LastSuccessfulSync = cloneTime(s.LastSuccessfulSync)
	out.Entities = make(map[EntityType]EntityState, len(s.Entities))
	for k, v := range s.Entities {
		v.LastSync = cloneTime(v.LastSync)
		out.Entities[k] = v
	}
	return out
}

// Pending returns the types with a non-zero pending count, in canonical
// order followed by any unknown types found in storage.
func (s State) Pending() []EntityType {
	var out []EntityType
	seen := map[EntityType]bool{}
	for _, t := range EntityTypes() {
		seen[t] = true
		if s.Entities[t].PendingCount > 0 {
			out = append(out, t)
		}
	}
	for t, e := range s.Entities {
		if !seen[t] && e.PendingCount > 0 {
			out = append(out, t)
		}
	}
	return out
}

// recompute restores the PendingCount invariant.
func (s *State) recompute() {
	total := 0
	for _, e := range s.Entities {
		total += e.PendingCount
	}
	s.PendingCount = total
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
