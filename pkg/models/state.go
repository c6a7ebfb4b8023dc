package models

// SyncState is the explicit form of the meeting_requested /
// meeting_in_sync / lifecycle flag combinations. Each dequeuer priority
// class selects rows in exactly one of these states.
type SyncState int

const (
	// StateAbsent: no meeting wanted, none recorded, nothing to do.
	StateAbsent SyncState = iota
	// StateWanted: a meeting is requested and provider state does not
	// match yet; create or update work is pending.
	StateWanted
	// StateSynced: provider state matches the declared desire.
	StateSynced
	// StatePendingDeletion: a meeting row exists but the desire is gone
	// or the owner is no longer live; delete work is pending.
	StatePendingDeletion
	// StateOrphan: a meeting row with no owner at all.
	StateOrphan
)

func (s SyncState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateWanted:
		return "wanted"
	case StateSynced:
		return "synced"
	case StatePendingDeletion:
		return "pending_deletion"
	case StateOrphan:
		return "orphan"
	}
	return "unknown"
}

// DeriveState maps the flag combination of a sync target (or a bare
// meeting row, for the orphan case) to its state.
//
// requested: the target's meeting_requested flag.
// inSync: the target's meeting_in_sync flag.
// live: the owner is not deleted, not canceled, and published (for
// sessions the owning event's liveness is folded in by the caller).
// hasMeeting: a meeting row referencing the target exists.
// hasOwner: false only for bare meeting rows with no event or session.
func DeriveState(requested, inSync, live, hasMeeting, hasOwner bool) SyncState {
	if !hasOwner {
		return StateOrphan
	}
	if inSync {
		return StateSynced
	}
	if requested && live {
		return StateWanted
	}
	if hasMeeting {
		return StatePendingDeletion
	}
	if !requested {
		// Desire withdrawn before anything was created: deletion work
		// with nothing at the provider, resolved without a provider call.
		return StatePendingDeletion
	}
	// Requested but the owner is dead and nothing exists yet.
	return StatePendingDeletion
}
