package campaign

// Gating rules are pure functions of a snapshot. A nil snapshot allows nothing.

func IsDonatable(snapshot *Snapshot, id uint64) bool {
	return snapshot != nil && snapshot.HasActive() && id == snapshot.ActiveID
}

func IsVotable(snapshot *Snapshot, id uint64, hasVoted bool) bool {
	if !IsDonatable(snapshot, id) || hasVoted {
		return false
	}
	milestone, ok := snapshot.Milestone(id)
	return ok && !milestone.Released
}

// IsLocked labels milestones queued behind the active one. It is informational only.
func IsLocked(snapshot *Snapshot, id uint64) bool {
	return snapshot != nil && snapshot.HasActive() && id > snapshot.ActiveID
}

func StatusOf(snapshot *Snapshot, id uint64) Status {
	if snapshot == nil {
		return StatusUnknown
	}
	milestone, ok := snapshot.Milestone(id)
	switch {
	case !ok:
		return StatusUnknown
	case milestone.Released:
		return StatusReleased
	case id == snapshot.ActiveID:
		return StatusActive
	default:
		return StatusLocked
	}
}

// targetBlocker explains why milestone id cannot take a donation or a vote, or returns nil.
func targetBlocker(snapshot *Snapshot, id uint64) *Error {
	if snapshot == nil {
		return newError(KindValidation, "campaign state not loaded")
	}
	if IsDonatable(snapshot, id) {
		return nil
	}
	switch StatusOf(snapshot, id) {
	case StatusUnknown:
		return newError(KindValidation, "milestone %d does not exist", id)
	case StatusReleased:
		return newError(KindValidation, "milestone %d is already released", id)
	default:
		return newError(KindValidation, "milestone %d is locked until milestone %d is released", id, snapshot.ActiveID)
	}
}
