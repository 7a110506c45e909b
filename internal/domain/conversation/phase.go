package conversation

// Phase is the storefront protocol state for one end-user.
type Phase string

const (
	PhaseNew                   Phase = "NEW"
	PhaseGreeted               Phase = "GREETED"
	PhaseDeclined              Phase = "DECLINED"
	PhaseBrowsing              Phase = "BROWSING"
	PhaseCategoryChosen        Phase = "CATEGORY_CHOSEN"
	PhaseConfirming            Phase = "CONFIRMING"
	PhaseAwaitingPaymentMethod Phase = "AWAITING_PAYMENT_METHOD"
	PhaseAwaitingTransactionID Phase = "AWAITING_TRANSACTION_ID"
	PhaseAwaitingReorder       Phase = "AWAITING_REORDER"
)

// Phases lists every phase in protocol order.
var Phases = []Phase{
	PhaseNew,
	PhaseGreeted,
	PhaseDeclined,
	PhaseBrowsing,
	PhaseCategoryChosen,
	PhaseConfirming,
	PhaseAwaitingPaymentMethod,
	PhaseAwaitingTransactionID,
	PhaseAwaitingReorder,
}

func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Input is the category an inbound message falls into once classified against its phase.
type Input string

const (
	InputAny           Input = "ANY"
	InputDecline       Input = "DECLINE"
	InputBuy           Input = "BUY"
	InputCancel        Input = "CANCEL"
	InputCategory      Input = "CATEGORY"
	InputUnlimited     Input = "UNLIMITED"
	InputSelection     Input = "SELECTION"
	InputConfirm       Input = "CONFIRM"
	InputChange        Input = "CHANGE"
	InputPaymentMethod Input = "PAYMENT_METHOD"
	InputTransactionID Input = "TRANSACTION_ID"
	InputReorder       Input = "REORDER"
	InputUnknown       Input = "UNKNOWN"
)

// transitions is the phase x input table. A missing entry means the input does not move the phase.
// FULFILLED is instantaneous: a verified transaction id lands directly in AWAITING_REORDER.
var transitions = map[Phase]map[Input]Phase{
	PhaseNew: {
		InputAny: PhaseGreeted,
	},
	PhaseGreeted: {
		InputDecline: PhaseDeclined,
		InputBuy:     PhaseBrowsing,
	},
	PhaseBrowsing: {
		InputCategory:  PhaseCategoryChosen,
		InputUnlimited: PhaseConfirming,
		InputCancel:    PhaseDeclined,
	},
	PhaseCategoryChosen: {
		InputSelection: PhaseConfirming,
		InputChange:    PhaseBrowsing,
		InputCancel:    PhaseDeclined,
	},
	PhaseConfirming: {
		InputConfirm: PhaseAwaitingPaymentMethod,
		InputChange:  PhaseBrowsing,
		InputCancel:  PhaseDeclined,
	},
	PhaseAwaitingPaymentMethod: {
		InputPaymentMethod: PhaseAwaitingTransactionID,
		InputCancel:        PhaseDeclined,
	},
	PhaseAwaitingTransactionID: {
		InputTransactionID: PhaseAwaitingReorder,
		InputCancel:        PhaseDeclined,
	},
	PhaseAwaitingReorder: {
		InputReorder: PhaseBrowsing,
	},
	PhaseDeclined: {},
}

// Next returns the phase reached from p on input in, if the table allows it.
func Next(p Phase, in Input) (Phase, bool) {
	next, ok := transitions[p][in]
	return next, ok
}

// Accepts lists the inputs that can move p.
func Accepts(p Phase) []Input {
	out := make([]Input, 0, len(transitions[p]))
	for in := range transitions[p] {
		out = append(out, in)
	}
	return out
}

// Terminal reports whether no input can leave p.
func (p Phase) Terminal() bool {
	return len(transitions[p]) == 0
}
