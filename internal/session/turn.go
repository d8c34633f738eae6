package session

// TurnArbiter holds the editing token for one room: either free or held by
// exactly one user. It carries no lock of its own; callers must hold the
// owning Room's mutex.
type TurnArbiter struct {
	holder string
}

// Request grants the turn only when it is free. A request while the turn is
// held, including by the requester, is ignored and returns false.
func (t *TurnArbiter) Request(userID string) bool {
	if t.holder != "" || userID == "" {
		return false
	}
	t.holder = userID
	return true
}

// Release frees the turn only if expectedHolder still holds it. Guards
// against stale releases arriving after a disconnect already freed the turn.
func (t *TurnArbiter) Release(expectedHolder string) {
	if t.holder == expectedHolder {
		t.holder = ""
	}
}

// ForceReleaseIfHolder frees the turn if userID holds it; no-op otherwise.
func (t *TurnArbiter) ForceReleaseIfHolder(userID string) {
	if t.holder == userID {
		t.holder = ""
	}
}

func (t *TurnArbiter) Holder() (string, bool) {
	return t.holder, t.holder != ""
}

func (t *TurnArbiter) clear() { t.holder = "" }
