package domain

// Status is the settlement state of a debt. It only ever moves
// from PENDING to PAID.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid
}

// ImportStatus is the status a debt takes after an import touches it.
// A settled debt stays settled; everything else is pending.
func ImportStatus(existing Status) Status {
	if existing == StatusPaid {
		return StatusPaid
	}
	return StatusPending
}

// CanSettle reports whether a debt in the given status may be marked paid.
func CanSettle(existing Status) bool {
	return existing == StatusPending
}
