package lifecycle

type Status string

const (
	StatusActive            Status = "active"
	StatusCheckoutInitiated Status = "checkout_initiated"
	StatusOrderPending      Status = "order_pending"
	StatusOrderComplete     Status = "order_complete"
	StatusOrderFailed       Status = "order_failed"
)

// validNext covers the guarded transitions (pending, complete). Initiate and
// fail are unconditional upserts and do not consult it. A missing record
// behaves like StatusActive.
var validNext = map[Status]map[Status]bool{
	StatusActive:            {StatusOrderPending: true, StatusOrderComplete: true},
	StatusCheckoutInitiated: {StatusOrderPending: true, StatusOrderComplete: true},
	StatusOrderPending:      {StatusOrderPending: true, StatusOrderComplete: true},
	StatusOrderComplete:     {},
	StatusOrderFailed:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
