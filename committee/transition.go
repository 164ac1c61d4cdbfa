package committee

import (
	"context"
	"fmt"

	"github.com/canopy-network/shardnode/lib"
)

/*
	The committee change is a two-phase protocol:

	  BeginCommitteeChange(e): the next committee is fetched, its member services are built outside of every
	    lock, then the tracker records the committee as 'next' and enters the Changing state. Members of both
	    the outgoing and incoming committees are reachable from this point on, so shards can be migrated.
	  EndCommitteeChange(e):   called once migration completes; 'next' becomes 'current', and services of
	    members that only served the outgoing committee are dropped.
*/

// BeginCommitteeChange() starts the change to the committee of newEpoch, which must be the next epoch
// The current epoch is unchanged until EndCommitteeChange()
func (s *Service) BeginCommitteeChange(ctx context.Context, newEpoch lib.Epoch) lib.ErrorI {
	t := s.tracker.Borrow()
	current, expected := t.Epoch(), t.NextEpoch()
	// classify without subtraction so epoch 0 cannot underflow
	switch {
	case newEpoch > expected:
		return ErrEpochIsNotSequential(expected, newEpoch)
	case newEpoch == current:
		return ErrEpochIsTheSameAsCurrent(newEpoch)
	case newEpoch < current:
		return ErrEpochIsLess(expected, newEpoch)
	}
	latest, err := s.lookup.GetActiveCommittees(ctx)
	if err != nil {
		return ErrLookup(err)
	}
	next := latest.CurrentCommittee()
	if next.Epoch != expected {
		return ErrLatestCommitteeEpochDiffers(next.Epoch, expected)
	}
	return s.beginCommitteeChangeTo(ctx, next)
}

// beginCommitteeChangeTo() pre-builds the services of the next committee and commits the tracker change
func (s *Service) beginCommitteeChangeTo(ctx context.Context, next *lib.Committee) lib.ErrorI {
	// the factory stays reserved for the whole attempt so concurrent attempts do not race on it
	if err := s.factory.Acquire(ctx, 1); err != nil {
		return ErrServiceConstruction(fmt.Sprintf("committee of epoch %d", next.Epoch), err)
	}
	defer s.factory.Release(1)
	// build the services into a temporary map to keep the critical section below free of I/O
	newServices, err := s.builder.fromCommittee(ctx, next)
	if err != nil {
		return err
	}
	s.services.Lock()
	defer s.services.Unlock()
	var result lib.ErrorI
	s.tracker.SendIfModified(func(t *lib.CommitteeTracker) bool {
		// an EndCommitteeChange() may have completed since the epoch was checked
		if t.NextEpoch() != next.Epoch {
			result = ErrEpochIsNotSequential(t.NextEpoch(), next.Epoch)
			return false
		}
		// panics if a different committee was already recorded for the epoch
		if e := t.SetCommitteeForNextEpoch(next); e != nil {
			result = e
			return false
		}
		if e := t.StartChange(); e != nil {
			result = e
			if e.Code() == lib.CodeChangeInProgress {
				result = ErrChangeAlreadyInProgress()
			}
			return false
		}
		return true
	})
	// the pre-built services are discarded on failure
	if result != nil {
		return result
	}
	s.services.extend(newServices)
	s.log.Infof("began the committee change to epoch %d with %d member services", next.Epoch, len(newServices))
	s.metrics.AddTransition("begin")
	s.updateMetricsLocked()
	return nil
}

// EndCommitteeChange() completes the change to epoch
// While a change is in progress the tracker's epoch is still the outgoing one, so epoch is compared with the
// epoch being changed to; otherwise it must equal the current epoch and the change is reported as done
func (s *Service) EndCommitteeChange(epoch lib.Epoch) lib.ErrorI {
	t := s.tracker.Borrow()
	current := t.Epoch()
	if t.IsChangeInProgress() {
		current = t.NextEpoch()
	}
	switch {
	case epoch > current:
		return ErrEpochInTheFuture(epoch, current)
	case epoch < current:
		return ErrEpochInThePast(epoch, current)
	}
	s.services.Lock()
	defer s.services.Unlock()
	var outgoing, incoming *lib.Committee
	s.tracker.SendIfModified(func(t *lib.CommitteeTracker) bool {
		// another caller already finished this change
		if t.NextEpoch() != epoch {
			return false
		}
		out, e := t.EndChange()
		if e != nil {
			return false
		}
		outgoing, incoming = out, t.Committees().CurrentCommittee()
		return true
	})
	if outgoing == nil {
		return ErrEpochChangeAlreadyDone()
	}
	// only drop members of the outgoing committee that do not serve the incoming one
	removed := 0
	for _, member := range outgoing.Members {
		if !incoming.Contains(member.PublicKey) {
			s.services.del(member.PublicKey)
			removed++
		}
	}
	s.log.Infof("ended the committee change to epoch %d, removed %d member services", epoch, removed)
	s.metrics.AddTransition("end")
	s.updateMetricsLocked()
	return nil
}
