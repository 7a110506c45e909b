package conversation

import (
	"errors"
	"fmt"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/phrase"
)

// Phrases is the configured phrase table. Match fields are compared after normalization,
// response fields are sent verbatim.
type Phrases struct {
	Greeting        string `json:"greeting"`
	Decline         string `json:"decline"`
	DeclineResponse string `json:"declineResponse"`
	Buy             string `json:"buy"`
	BuyResponse     string `json:"buyResponse"`
	Cancel          string `json:"cancel"`
	CancelResponse  string `json:"cancelResponse"`
	Reorder         string `json:"reorder"`
	ReorderResponse string `json:"reorderResponse"`
	ChooseQuestion  string `json:"chooseQuestion"`
	Confirm         string `json:"confirm"`
	Change          string `json:"change"`
}

// ApplyDefaults fills the optional phrases.
func (p *Phrases) ApplyDefaults() {
	if p.DeclineResponse == "" {
		p.DeclineResponse = "Bye!"
	}
	if p.Confirm == "" {
		p.Confirm = "confirm"
	}
	if p.Change == "" {
		p.Change = "change"
	}
}

// Validate checks the required phrases and that no two match phrases collide.
func (p *Phrases) Validate() error {
	required := map[string]string{
		"greeting":         p.Greeting,
		"decline":          p.Decline,
		"buy":              p.Buy,
		"buy_response":     p.BuyResponse,
		"reorder":          p.Reorder,
		"reorder_response": p.ReorderResponse,
		"choose_question":  p.ChooseQuestion,
		"confirm":          p.Confirm,
		"change":           p.Change,
	}
	for name, v := range required {
		if phrase.Normalize(v) == "" {
			return fmt.Errorf("phrases: %s is required", name)
		}
	}
	if p.Cancel != "" && p.CancelResponse == "" {
		return errors.New("phrases: cancel_response is required when cancel is set")
	}
	if phrase.Normalize(p.Decline) == phrase.Normalize(p.Buy) {
		return errors.New("phrases: decline and buy must differ")
	}
	if phrase.Normalize(p.Confirm) == phrase.Normalize(p.Change) {
		return errors.New("phrases: confirm and change must differ")
	}
	return nil
}

// PaymentMethod is a selectable payment option. Methods with a recipient send fixed instructions.
type PaymentMethod struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Recipient string `json:"recipient,omitempty"`
	Rules     string `json:"rules,omitempty"`
}

// HasInstructions reports whether selecting the method sends payment instructions.
func (m PaymentMethod) HasInstructions() bool {
	return m.Recipient != ""
}

// Storefront is everything a DM listener needs to sell: catalog, phrases and payment options.
type Storefront struct {
	Catalog        catalog.Catalog `json:"catalog"`
	Phrases        Phrases         `json:"phrases"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
	Currency       string          `json:"currency"`
}

// ApplyDefaults fills optional fields.
func (s *Storefront) ApplyDefaults() {
	s.Phrases.ApplyDefaults()
	if s.Currency == "" {
		s.Currency = "USD"
	}
}

// Validate is run once when a listener starts.
func (s *Storefront) Validate() error {
	if err := s.Catalog.Validate(); err != nil {
		return err
	}
	if err := s.Phrases.Validate(); err != nil {
		return err
	}
	if len(s.PaymentMethods) == 0 {
		return errors.New("payment methods: at least one is required")
	}
	seen := map[string]struct{}{}
	for _, m := range s.PaymentMethods {
		k := phrase.Normalize(m.Key)
		if k == "" || m.Name == "" {
			return errors.New("payment methods: key and name are required")
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("payment methods: duplicate key %q", m.Key)
		}
		seen[k] = struct{}{}
	}
	return s.checkCancelCollisions()
}

// checkCancelCollisions rejects product and payment keys equal to the cancel phrase,
// which is matched first and would make them unselectable.
func (s *Storefront) checkCancelCollisions() error {
	cancel := phrase.Normalize(s.Phrases.Cancel)
	if cancel == "" {
		return nil
	}
	for _, g := range s.Catalog.Groups {
		if phrase.Normalize(g.Key) == cancel {
			return fmt.Errorf("catalog: key %q collides with the cancel phrase", g.Key)
		}
	}
	for _, u := range s.Catalog.Unlimited {
		if phrase.Normalize(u.Key) == cancel {
			return fmt.Errorf("catalog: key %q collides with the cancel phrase", u.Key)
		}
	}
	for _, m := range s.PaymentMethods {
		if phrase.Normalize(m.Key) == cancel {
			return fmt.Errorf("payment methods: key %q collides with the cancel phrase", m.Key)
		}
	}
	return nil
}

// PaymentMethod looks up a payment option by key.
func (s *Storefront) PaymentMethod(key string) (PaymentMethod, bool) {
	k := phrase.Normalize(key)
	for _, m := range s.PaymentMethods {
		if phrase.Normalize(m.Key) == k {
			return m, true
		}
	}
	return PaymentMethod{}, false
}
