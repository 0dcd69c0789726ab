package domain

// transitions lists the allowed next states for every non-terminal status.
// Statuses missing from the map are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	StatusHoldPendingPayment: {StatusAwaitShopConfirm, StatusHoldExpired, StatusCancelled},
	StatusAwaitShopConfirm:   {StatusConfirmed, StatusRejected},
	StatusConfirmed:          {StatusPickupAssigned, StatusCancelled},
	StatusPickupAssigned:     {StatusPickedUp, StatusNoShow},
	StatusPickedUp:           {StatusInWash},
	StatusInWash:             {StatusReadyForReturn},
	StatusReadyForReturn:     {StatusOnTheWayReturn},
	StatusOnTheWayReturn:     {StatusCompleted},
	StatusCompleted:          {StatusReviewed},
}

var allStatuses = []BookingStatus{
	StatusHoldPendingPayment,
	StatusAwaitShopConfirm,
	StatusConfirmed,
	StatusPickupAssigned,
	StatusPickedUp,
	StatusInWash,
	StatusReadyForReturn,
	StatusOnTheWayReturn,
	StatusCompleted,
	StatusReviewed,
	StatusRejected,
	StatusHoldExpired,
	StatusCancelled,
	StatusNoShow,
}

// AllStatuses returns every booking status in lifecycle order.
func AllStatuses() []BookingStatus {
	out := make([]BookingStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s BookingStatus) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	_, ok := transitions[s]
	return s.Valid() && !ok
}

// NextStatuses returns the statuses reachable from s in one step.
func (s BookingStatus) NextStatuses() []BookingStatus {
	next := transitions[s]
	out := make([]BookingStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError when to is not
// directly reachable from from.
func ValidateTransition(from, to BookingStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

type CapacityEffect int

const (
	EffectNone CapacityEffect = iota
	EffectConfirm
	EffectRelease
)

func (e CapacityEffect) String() string {
	switch e {
	case EffectConfirm:
		return "confirm"
	case EffectRelease:
		return "release"
	default:
		return "none"
	}
}

// CapacityEffectOf returns the ledger operation owed by a valid transition.
func CapacityEffectOf(from, to BookingStatus) CapacityEffect {
	switch {
	case from == StatusAwaitShopConfirm && to == StatusConfirmed:
		return EffectConfirm
	case from == StatusAwaitShopConfirm && to == StatusRejected,
		from == StatusHoldPendingPayment && to == StatusCancelled,
		from == StatusHoldPendingPayment && to == StatusHoldExpired,
		from == StatusConfirmed && to == StatusCancelled:
		return EffectRelease
	default:
		return EffectNone
	}
}

// FulfillmentPhase maps a fulfillment status onto the job phase it records.
func FulfillmentPhase(s BookingStatus) (JobPhase, bool) {
	switch s {
	case StatusPickupAssigned, StatusPickedUp:
		return PhasePickup, true
	case StatusInWash, StatusReadyForReturn:
		return PhaseWash, true
	case StatusOnTheWayReturn, StatusCompleted:
		return PhaseReturn, true
	default:
		return "", false
	}
}

// Closed reports statuses whose booking needs no further work: the terminal
// ones plus COMPLETED, which only awaits an optional review. Retention
// cleanup removes closed bookings.
func (s BookingStatus) Closed() bool {
	return s == StatusCompleted || s.Terminal()
}

func ClosedStatuses() []BookingStatus {
	var out []BookingStatus
	for _, s := range allStatuses {
		if s.Closed() {
			out = append(out, s)
		}
	}
	return out
}
