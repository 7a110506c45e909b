package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// TransactionIDLength is the exact length of an accepted transaction id.
const TransactionIDLength = 17

var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{17}$`)

// ValidTransactionID accepts exactly 17 ASCII letters or digits.
func ValidTransactionID(s string) bool {
	return transactionIDPattern.MatchString(s)
}

// NormalizeTransactionID trims and uppercases a submitted id.
func NormalizeTransactionID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Key identifies one end-user's conversation with one identity.
type Key struct {
	Identity session.Fingerprint `json:"identity"`
	UserID   string              `json:"userId"`
}

// Line is one cart entry.
type Line struct {
	Description string         `json:"description"`
	Product     string         `json:"product"`
	Price       catalog.Amount `json:"price"`
}

// State is the persisted record for one conversation.
type State struct {
	Key               Key       `json:"key"`
	UserName          string    `json:"userName"`
	Phase             Phase     `json:"phase"`
	StopCommunication bool      `json:"stopCommunication"`
	Cart              []Line    `json:"cart"`
	Finalized         []string  `json:"finalized"`
	PaymentMethod     string    `json:"paymentMethod,omitempty"`
	TransactionID     string    `json:"transactionId,omitempty"`
	SelectedCategory  string    `json:"selectedCategory,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewState creates the record for a first-time end-user.
func NewState(key Key, userName string, now time.Time) *State {
	return &State{
		Key:       key,
		UserName:  userName,
		Phase:     PhaseNew,
		Cart:      []Line{},
		Finalized: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddLine appends a cart line and its delivery payload as one unit.
func (s *State) AddLine(line Line, payload string) {
	s.Cart = append(s.Cart, line)
	s.Finalized = append(s.Finalized, payload)
}

// HasLine reports whether a cart line with the given description exists.
func (s *State) HasLine(description string) bool {
	for _, l := range s.Cart {
		if l.Description == description {
			return true
		}
	}
	return false
}

// ClearCart empties the cart and the finalized payloads.
func (s *State) ClearCart() {
	s.Cart = []Line{}
	s.Finalized = []string{}
	s.SelectedCategory = ""
}

// ResetOrder clears every order field while keeping the greeting.
func (s *State) ResetOrder() {
	s.ClearCart()
	s.PaymentMethod = ""
	s.TransactionID = ""
}

// Total sums every cart line.
func (s *State) Total() (catalog.Amount, error) {
	var total catalog.Amount
	for _, l := range s.Cart {
		next, err := total.Add(l.Price)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// Consistent reports whether the cart and the finalized payloads line up.
func (s *State) Consistent() bool {
	return len(s.Cart) == len(s.Finalized)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Cart = append([]Line{}, s.Cart...)
	c.Finalized = append([]string{}, s.Finalized...)
	return &c
}

// Repository persists conversation state. Load returns nil, nil when no record exists.
type Repository interface {
	Load(ctx context.Context, key Key) (*State, error)
	Save(ctx context.Context, state *State) error
}
