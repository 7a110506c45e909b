// Package storefront loads and stores the storefront definition: catalog, phrases and payment methods.
package storefront

import (
	"fmt"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
)

// Document is the on-disk and over-the-wire storefront schema. Prices are decimal numbers.
type Document struct {
	Currency       string         `toml:"currency,omitempty" json:"currency,omitempty"`
	Phrases        PhrasesDoc     `toml:"phrases" json:"phrases"`
	PaymentMethods []PaymentDoc   `toml:"payment_methods" json:"paymentMethods"`
	OneTime        []GroupDoc     `toml:"one_time" json:"oneTime"`
	Unlimited      []UnlimitedDoc `toml:"unlimited" json:"unlimited"`
}

type PhrasesDoc struct {
	Greeting        string `toml:"greeting" json:"greeting"`
	Decline         string `toml:"decline" json:"decline"`
	DeclineResponse string `toml:"decline_response,omitempty" json:"declineResponse,omitempty"`
	Buy             string `toml:"buy" json:"buy"`
	BuyResponse     string `toml:"buy_response" json:"buyResponse"`
	Cancel          string `toml:"cancel,omitempty" json:"cancel,omitempty"`
	CancelResponse  string `toml:"cancel_response,omitempty" json:"cancelResponse,omitempty"`
	Reorder         string `toml:"reorder" json:"reorder"`
	ReorderResponse string `toml:"reorder_response" json:"reorderResponse"`
	ChooseQuestion  string `toml:"choose_question" json:"chooseQuestion"`
	Confirm         string `toml:"confirm,omitempty" json:"confirm,omitempty"`
	Change          string `toml:"change,omitempty" json:"change,omitempty"`
}

type PaymentDoc struct {
	Key       string `toml:"key" json:"key"`
	Name      string `toml:"name" json:"name"`
	Recipient string `toml:"recipient,omitempty" json:"recipient,omitempty"`
	Rules     string `toml:"rules,omitempty" json:"rules,omitempty"`
}

type GroupDoc struct {
	Key   string    `toml:"key" json:"key"`
	Name  string    `toml:"name" json:"name"`
	Items []ItemDoc `toml:"items" json:"items"`
}

type ItemDoc struct {
	Name    string  `toml:"name" json:"name"`
	Price   float64 `toml:"price" json:"price"`
	Payload string  `toml:"payload" json:"payload"`
}

type UnlimitedDoc struct {
	Key     string  `toml:"key" json:"key"`
	Name    string  `toml:"name" json:"name"`
	Price   float64 `toml:"price" json:"price"`
	Payload string  `toml:"payload" json:"payload"`
}

// Storefront converts the document to the domain type, applies defaults and validates it.
func (d *Document) Storefront() (conversation.Storefront, error) {
	sf := conversation.Storefront{
		Currency: d.Currency,
		Phrases: conversation.Phrases{
			Greeting:        d.Phrases.Greeting,
			Decline:         d.Phrases.Decline,
			DeclineResponse: d.Phrases.DeclineResponse,
			Buy:             d.Phrases.Buy,
			BuyResponse:     d.Phrases.BuyResponse,
			Cancel:          d.Phrases.Cancel,
			CancelResponse:  d.Phrases.CancelResponse,
			Reorder:         d.Phrases.Reorder,
			ReorderResponse: d.Phrases.ReorderResponse,
			ChooseQuestion:  d.Phrases.ChooseQuestion,
			Confirm:         d.Phrases.Confirm,
			Change:          d.Phrases.Change,
		},
	}
	for _, m := range d.PaymentMethods {
		sf.PaymentMethods = append(sf.PaymentMethods, conversation.PaymentMethod(m))
	}
	for _, g := range d.OneTime {
		group := catalog.Group{Key: g.Key, Name: g.Name}
		for _, it := range g.Items {
			price, err := catalog.FromFloat(it.Price)
			if err != nil {
				return conversation.Storefront{}, fmt.Errorf("one_time %q item %q: %w", g.Key, it.Name, err)
			}
			group.Items = append(group.Items, catalog.Item{Name: it.Name, UnitPrice: price, Payload: it.Payload})
		}
		sf.Catalog.Groups = append(sf.Catalog.Groups, group)
	}
	for _, u := range d.Unlimited {
		price, err := catalog.FromFloat(u.Price)
		if err != nil {
			return conversation.Storefront{}, fmt.Errorf("unlimited %q: %w", u.Key, err)
		}
		sf.Catalog.Unlimited = append(sf.Catalog.Unlimited, catalog.Unlimited{Key: u.Key, Name: u.Name, Price: price, Payload: u.Payload})
	}

	sf.ApplyDefaults()
	if err := sf.Validate(); err != nil {
		return conversation.Storefront{}, err
	}
	return sf, nil
}

// FromStorefront builds a document from a domain storefront.
func FromStorefront(sf conversation.Storefront) Document {
	p := sf.Phrases
	d := Document{
		Currency: sf.Currency,
		Phrases: PhrasesDoc{
			Greeting:        p.Greeting,
			Decline:         p.Decline,
			DeclineResponse: p.DeclineResponse,
			Buy:             p.Buy,
			BuyResponse:     p.BuyResponse,
			Cancel:          p.Cancel,
			CancelResponse:  p.CancelResponse,
			Reorder:         p.Reorder,
			ReorderResponse: p.ReorderResponse,
			ChooseQuestion:  p.ChooseQuestion,
			Confirm:         p.Confirm,
			Change:          p.Change,
		},
	}
	for _, m := range sf.PaymentMethods {
		d.PaymentMethods = append(d.PaymentMethods, PaymentDoc(m))
	}
	for _, g := range sf.Catalog.Groups {
		gd := GroupDoc{Key: g.Key, Name: g.Name}
		for _, it := range g.Items {
			gd.Items = append(gd.Items, ItemDoc{Name: it.Name, Price: it.UnitPrice.Float(), Payload: it.Payload})
		}
		d.OneTime = append(d.OneTime, gd)
	}
	for _, u := range sf.Catalog.Unlimited {
		d.Unlimited = append(d.Unlimited, UnlimitedDoc{Key: u.Key, Name: u.Name, Price: u.Price.Float(), Payload: u.Payload})
	}
	return d
}
