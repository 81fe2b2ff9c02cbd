package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	// StatusRefunded is only reachable through an administrative refund.
	StatusRefunded Status = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusRefunded: true},
	StatusCancelled: {},
	StatusRefunded:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no automatic transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled || s == StatusRefunded
}

type SettleOutcome int

const (
	Applied SettleOutcome = iota + 1
	AlreadySettled
)

func (o SettleOutcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadySettled:
		return "already_settled"
	}
	return "unknown"
}
