package ledger

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"sort"
)

// Treasury guards the ledger: a single owner, the operational flag and the
// set of identities allowed to move funds.
type Treasury struct {
	owner       event.Address
	operational bool
	authorized  map[event.Address]struct{}
}

func NewTreasury(owner event.Address) *Treasury {
	return &Treasury{
		owner:       owner,
		operational: true,
		authorized:  make(map[event.Address]struct{}),
	}
}

func (t *Treasury) Owner() event.Address {
	return t.owner
}

func (t *Treasury) IsOperational() bool {
	return t.operational
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (t *Treasury) RequireOwner(caller event.Address) error {
	if caller != t.owner {
		return errs.ErrUnauthorized.With("caller %s is not the owner", caller)
	}
	return nil
}

// RequireOperational fails with ErrSystemPaused while the system is paused.
func (t *Treasury) RequireOperational() error {
	if !t.operational {
		return errs.ErrSystemPaused
	}
	return nil
}

// SetOperatingStatus toggles the operational flag. Owner only.
// It reports whether the flag actually changed.
func (t *Treasury) SetOperatingStatus(caller event.Address, operational bool) (bool, error) {
	if err := t.RequireOwner(caller); err != nil {
		return false, err
	}
	changed := t.operational != operational
	t.operational = operational
	return changed, nil
}

// Authorize adds (or with revoke, removes) target from the authorized set. Owner only.
func (t *Treasury) Authorize(caller, target event.Address, revoke bool) error {
	if err := t.RequireOwner(caller); err != nil {
		return err
	}
	if revoke {
		delete(t.authorized, target)
	} else {
		t.authorized[target] = struct{}{}
	}
	return nil
}

func (t *Treasury) IsAuthorized(id event.Address) bool {
	_, ok := t.authorized[id]
	return ok
}

// RequireAuthorized fails with ErrCallerNotAuthorized unless id may move funds.
func (t *Treasury) RequireAuthorized(id event.Address) error {
	if !t.IsAuthorized(id) {
		return errs.ErrCallerNotAuthorized.With("%s is not authorized on the ledger", id)
	}
	return nil
}

// AuthorizedCallers returns the authorized set in byte order.
func (t *Treasury) AuthorizedCallers() []event.Address {
	out := make([]event.Address, 0, len(t.authorized))
	for a := range t.authorized {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

// Restore overwrites the treasury; used only when loading a snapshot.
func (t *Treasury) Restore(operational bool, authorized []event.Address) {
	t.operational = operational
	t.authorized = make(map[event.Address]struct{}, len(authorized))
	for _, a := range authorized {
		t.authorized[a] = struct{}{}
	}
}
