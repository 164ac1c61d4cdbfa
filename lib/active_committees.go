package lib

import (
	"encoding/json"
	"fmt"
)

/*
	This file implements the membership state machine of the node.

	ActiveCommittees is a window of at most three committee generations: previous (optional), current, and
	next (optional). CommitteeTracker pairs the window with a 'change in progress' flag and only permits
	the transitions below:

	  Stable    (next == nil, !changing) --SetCommitteeForNextEpoch--> NextKnown
	  NextKnown (next != nil, !changing) --StartChange-------------->  Changing
	  Changing  (next != nil,  changing) --EndChange---------------->  Stable (next promoted to current)
*/

// ActiveCommittees is the window of committees the node may interact with
type ActiveCommittees struct {
	previous *Committee
	current  *Committee
	next     *Committee
}

// NewActiveCommittees() creates a validated committee window; previous and next may be nil
func NewActiveCommittees(current, previous, next *Committee) (ActiveCommittees, ErrorI) {
	if current == nil {
		return ActiveCommittees{}, ErrInvalidCommittee("the current committee is required")
	}
	if previous != nil && previous.Epoch+1 != current.Epoch {
		return ActiveCommittees{}, ErrInvalidCommittee(fmt.Sprintf("previous committee epoch %d does not precede %d", previous.Epoch, current.Epoch))
	}
	if next != nil && next.Epoch != current.Epoch+1 {
		return ActiveCommittees{}, ErrInvalidNextEpoch(current.Epoch+1, next.Epoch)
	}
	return ActiveCommittees{previous: previous, current: current, next: next}, nil
}

// Epoch() returns the epoch of the current committee
func (a ActiveCommittees) Epoch() Epoch { return a.current.Epoch }

// NextEpoch() returns the epoch after the current one
func (a ActiveCommittees) NextEpoch() Epoch { return a.current.Epoch + 1 }

// NShards() returns the system shard count
func (a ActiveCommittees) NShards() uint16 { return a.current.NShards }

// CurrentCommittee() returns the committee of the current epoch
func (a ActiveCommittees) CurrentCommittee() *Committee { return a.current }

// PreviousCommittee() returns the committee of the previous epoch or nil
func (a ActiveCommittees) PreviousCommittee() *Committee { return a.previous }

// NextCommittee() returns the committee of the next epoch or nil
func (a ActiveCommittees) NextCommittee() *Committee { return a.next }

// CommitteeForEpoch() returns the committee in the window for the epoch or nil
func (a ActiveCommittees) CommitteeForEpoch(epoch Epoch) *Committee {
	for _, c := range []*Committee{a.previous, a.current, a.next} {
		if c != nil && c.Epoch == epoch {
			return c
		}
	}
	return nil
}

// Contains() returns true if the public key is a member of the previous, current or next committee
func (a ActiveCommittees) Contains(publicKey []byte) bool {
	for _, c := range []*Committee{a.previous, a.current, a.next} {
		if c != nil && c.Contains(publicKey) {
			return true
		}
	}
	return false
}

// Equals() returns true if both windows hold identical committees
func (a ActiveCommittees) Equals(o ActiveCommittees) bool {
	return a.previous.Equals(o.previous) && a.current.Equals(o.current) && a.next.Equals(o.next)
}

// jsonActiveCommittees is the wire representation of ActiveCommittees
type jsonActiveCommittees struct {
	Previous *Committee `json:"previous,omitempty"`
	Current  *Committee `json:"current"`
	Next     *Committee `json:"next,omitempty"`
}

// MarshalJSON() implements the json.Marshaler interface
func (a ActiveCommittees) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonActiveCommittees{Previous: a.previous, Current: a.current, Next: a.next})
}

// UnmarshalJSON() implements the json.Unmarshaler interface and validates the window
func (a *ActiveCommittees) UnmarshalJSON(bz []byte) error {
	j := new(jsonActiveCommittees)
	if err := json.Unmarshal(bz, j); err != nil {
		return err
	}
	for _, c := range []*Committee{j.Previous, j.Current, j.Next} {
		if c == nil {
			continue
		}
		if err := c.Check(); err != nil {
			return err
		}
	}
	ac, err := NewActiveCommittees(j.Current, j.Previous, j.Next)
	if err != nil {
		return err
	}
	*a = ac
	return nil
}

// TrackerState names the three valid states of a CommitteeTracker
type TrackerState int

const (
	TrackerStable TrackerState = iota
	TrackerNextKnown
	TrackerChanging
)

func (s TrackerState) String() string {
	switch s {
	case TrackerStable:
		return "stable"
	case TrackerNextKnown:
		return "next_known"
	case TrackerChanging:
		return "changing"
	default:
		return "unknown"
	}
}

// CommitteeTracker owns the committee window and whether an epoch change is in progress
// It is a value type: copies are independent snapshots that share the immutable committees
type CommitteeTracker struct {
	committees       ActiveCommittees
	changeInProgress bool
}

// NewCommitteeTracker() seeds a tracker from the committees reported by the lookup source
func NewCommitteeTracker(committees ActiveCommittees) CommitteeTracker {
	return CommitteeTracker{committees: committees}
}

// Committees() returns the committee window
func (t *CommitteeTracker) Committees() ActiveCommittees { return t.committees }

// Epoch() returns the current epoch
func (t *CommitteeTracker) Epoch() Epoch { return t.committees.Epoch() }

// NextEpoch() returns the epoch after the current one
func (t *CommitteeTracker) NextEpoch() Epoch { return t.committees.NextEpoch() }

// IsChangeInProgress() returns true between StartChange() and EndChange()
func (t *CommitteeTracker) IsChangeInProgress() bool { return t.changeInProgress }

// State() returns which of the three valid states the tracker is in
func (t *CommitteeTracker) State() TrackerState {
	switch {
	case t.changeInProgress:
		return TrackerChanging
	case t.committees.next != nil:
		return TrackerNextKnown
	default:
		return TrackerStable
	}
}

// SetCommitteeForNextEpoch() records the committee of the next epoch
// Setting an identical committee again is a no-op. A differing committee for an epoch that was already
// observed is a broken contract and panics
func (t *CommitteeTracker) SetCommitteeForNextEpoch(c *Committee) ErrorI {
	if c == nil || c.Epoch != t.NextEpoch() {
		var actual Epoch
		if c != nil {
			actual = c.Epoch
		}
		return ErrInvalidNextEpoch(t.NextEpoch(), actual)
	}
	if stored := t.committees.next; stored != nil {
		if !stored.Equals(c) {
			panic(fmt.Sprintf("committee for epoch %d cannot change after being fetched", c.Epoch))
		}
		return nil
	}
	t.committees.next = c
	return nil
}

// StartChange() moves the tracker from NextKnown to Changing
func (t *CommitteeTracker) StartChange() ErrorI {
	switch t.State() {
	case TrackerChanging:
		return ErrChangeInProgress()
	case TrackerStable:
		return ErrUnknownNextCommittee()
	}
	t.changeInProgress = true
	return nil
}

// EndChange() promotes next to current and current to previous, returning the retired committee
func (t *CommitteeTracker) EndChange() (outgoing *Committee, err ErrorI) {
	if t.State() != TrackerChanging {
		return nil, ErrChangeNotInProgress()
	}
	outgoing = t.committees.current
	t.committees = ActiveCommittees{previous: outgoing, current: t.committees.next}
	t.changeInProgress = false
	return outgoing, nil
}

// MarshalJSON() implements the json.Marshaler interface for debug output
func (t CommitteeTracker) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Committees       ActiveCommittees `json:"committees"`
		ChangeInProgress bool             `json:"changeInProgress"`
		State            string           `json:"state"`
	}{t.committees, t.changeInProgress, t.State().String()})
}
