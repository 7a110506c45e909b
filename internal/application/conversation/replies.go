package conversation

import (
	"fmt"
	"strings"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
)

const (
	replyNotUnderstood  = "Sorry, I didn't understand that. Please provide the correct input."
	replyRetry          = "An error occurred while processing your order. Please try again."
	replyDuplicate      = "You selected the same thing! Please choose a different product."
	replyInvalidChoice  = "Invalid choice. "
	replyBadSelection   = "Invalid selection. Please enter the product number and quantity again."
	replyBadFormat      = "Please enter the product number and quantity in the correct format (e.g., '1 3' to buy 3 units of product 1)."
	replyInvalidMethod  = "Invalid payment method selected. Please choose a valid payment method from the list."
	replyInvalidTxID    = "Invalid transaction ID. Please enter a valid 17-character transaction ID."
	replyTxIDNotFound   = "Transaction ID not found. Please make sure you have paid and provided the correct transaction ID."
	replyTxIDPromptFmt  = "Please provide your %s transaction ID after payment."
	replyDeliveryFmt    = "Here is your product: %s"
	replyConfirmedFmt   = "Payment confirmed! Your order for %s has been processed."
	replyFinalAmountFmt = "Your final amount is %s."
)

// renderer formats storefront replies.
type renderer struct {
	sf *conversation.Storefront
}

// catalogMessages lists both product kinds, one message each.
func (r renderer) catalogMessages() []string {
	var groups strings.Builder
	groups.WriteString("One-time products:")
	for _, g := range r.sf.Catalog.Groups {
		fmt.Fprintf(&groups, "\n%s. %s", g.Key, g.Name)
	}

	var unlimited strings.Builder
	unlimited.WriteString("Unlimited-use products:")
	for _, u := range r.sf.Catalog.Unlimited {
		fmt.Fprintf(&unlimited, "\n%s. %s --> %s", u.Key, u.Name, r.price(u.Price))
	}
	return []string{groups.String(), unlimited.String()}
}

// storefront is the full browse prompt: lead-in, catalog and choose question.
func (r renderer) storefront(lead string) []string {
	out := make([]string, 0, 4)
	if lead != "" {
		out = append(out, lead)
	}
	out = append(out, r.catalogMessages()...)
	return append(out, r.sf.Phrases.ChooseQuestion)
}

func (r renderer) category(g *catalog.Group) []string {
	out := make([]string, 0, len(g.Items)+1)
	out = append(out, fmt.Sprintf(
		"You have selected the category: '%s'. Please choose the specific product and quantity, in this format ['Product number' 'Quantity']. Example: 1 2 (Product number 1 - Quantity 2)",
		g.Name))
	for i, it := range g.Items {
		out = append(out, fmt.Sprintf("%d. %s --> %s", i+1, it.Name, r.price(it.UnitPrice)))
	}
	return out
}

func (r renderer) confirmPrompt(description string, price catalog.Amount) string {
	return fmt.Sprintf("Do you confirm buying %s for %s? Write '%s' or '%s' to change the product.",
		description, r.price(price), r.sf.Phrases.Confirm, r.sf.Phrases.Change)
}

func (r renderer) confirmOrChange() string {
	return fmt.Sprintf("Please write '%s' or '%s'.", r.sf.Phrases.Confirm, r.sf.Phrases.Change)
}

func (r renderer) paymentMethods() string {
	var b strings.Builder
	b.WriteString("Please select a payment method:")
	for _, m := range r.sf.PaymentMethods {
		fmt.Fprintf(&b, "\n%s. %s", m.Key, m.Name)
	}
	return b.String()
}

func (r renderer) price(a catalog.Amount) string {
	return a.String() + " " + r.sf.Currency
}

func productList(cart []conversation.Line) string {
	names := make([]string, len(cart))
	for i, l := range cart {
		names[i] = l.Description
	}
	return strings.Join(names, ", ")
}
