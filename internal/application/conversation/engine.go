package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/application/verification"
	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/phrase"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// ErrInconsistentCart is returned when a transition would leave cart and payloads out of step.
var ErrInconsistentCart = errors.New("cart and finalized payloads diverged")

// Verifier checks a transaction id against the mailbox.
type Verifier interface {
	Verify(ctx context.Context, req verification.Request) bool
}

// Inbound is one direct message addressed to the engine.
type Inbound struct {
	UserID   string
	UserName string
	Text     string
}

// Deps are the collaborators shared by every engine.
type Deps struct {
	Repo     conversation.Repository
	Ledger   catalog.Ledger
	Verifier Verifier
}

// Engine runs the storefront protocol for every end-user of one identity.
type Engine struct {
	identity   session.Fingerprint
	storefront *conversation.Storefront
	credential mailbox.Credential
	deps       Deps
	render     renderer
	now        func() time.Time
	logger     zerolog.Logger
}

// NewEngine validates the storefront and builds an engine for one identity.
func NewEngine(identity session.Fingerprint, sf conversation.Storefront, cred mailbox.Credential, deps Deps, logger zerolog.Logger) (*Engine, error) {
	if deps.Repo == nil || deps.Verifier == nil {
		return nil, errors.New("conversation repository and verifier are required")
	}
	sf.ApplyDefaults()
	if err := sf.Validate(); err != nil {
		return nil, session.Invalid("storefront", err.Error())
	}
	if !cred.Valid() {
		return nil, session.Invalid("mailbox", "address and app password are required")
	}
	e := &Engine{
		identity:   identity,
		storefront: &sf,
		credential: cred,
		deps:       deps,
		now:        func() time.Time { return time.Now().UTC() },
		logger: logger.With().
			Str("service", "conversation").
			Str("identity", identity.Short()).
			Logger(),
	}
	e.render = renderer{sf: e.storefront}
	return e, nil
}

// outcome is the result of one phase handler. Only inputs present in the transition table move the phase.
type outcome struct {
	input   conversation.Input
	replies []string
	sold    []*catalog.SoldRecord
}

func stay(replies ...string) outcome {
	return outcome{input: conversation.InputUnknown, replies: replies}
}

func move(in conversation.Input, replies ...string) outcome {
	return outcome{input: in, replies: replies}
}

// Handle processes one inbound message and returns the replies to send, in order.
// State is persisted before any reply is returned; a failed save discards the whole step.
func (e *Engine) Handle(ctx context.Context, in Inbound) ([]string, error) {
	key := conversation.Key{Identity: e.identity, UserID: in.UserID}
	log := e.logger.With().Str("user_id", in.UserID).Logger()

	st, err := e.deps.Repo.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if st == nil {
		st = conversation.NewState(key, in.UserName, e.now())
	}
	if st.StopCommunication {
		log.Debug().Msg("user opted out, ignoring message")
		return nil, nil
	}
	if in.UserName != "" {
		st.UserName = in.UserName
	}

	from := st.Phase
	out := e.step(ctx, st, in.Text)
	if !st.Consistent() {
		return nil, ErrInconsistentCart
	}
	if next, ok := conversation.Next(from, out.input); ok {
		st.Phase = next
	}
	st.UpdatedAt = e.now()

	if err := e.deps.Repo.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	if from != st.Phase {
		log.Info().Str("from", string(from)).Str("to", string(st.Phase)).Msg("conversation advanced")
	}

	if len(out.sold) > 0 && e.deps.Ledger != nil {
		if err := e.deps.Ledger.Append(ctx, out.sold); err != nil {
			log.Error().Err(err).Msg("failed to append sold records")
		}
	}
	return out.replies, nil
}

func (e *Engine) step(ctx context.Context, st *conversation.State, text string) outcome {
	switch st.Phase {
	case conversation.PhaseNew:
		return move(conversation.InputAny, e.storefront.Phrases.Greeting)
	case conversation.PhaseGreeted:
		return e.greeted(st, text)
	case conversation.PhaseBrowsing:
		return e.browsing(st, text)
	case conversation.PhaseCategoryChosen:
		return e.categoryChosen(st, text)
	case conversation.PhaseConfirming:
		return e.confirming(st, text)
	case conversation.PhaseAwaitingPaymentMethod:
		return e.awaitingPaymentMethod(st, text)
	case conversation.PhaseAwaitingTransactionID:
		return e.awaitingTransactionID(ctx, st, text)
	case conversation.PhaseAwaitingReorder:
		return e.awaitingReorder(st, text)
	default:
		return stay(replyNotUnderstood)
	}
}

func (e *Engine) greeted(st *conversation.State, text string) outcome {
	p := e.storefront.Phrases
	switch {
	case phrase.Match(text, p.Decline):
		st.StopCommunication = true
		return move(conversation.InputDecline, p.DeclineResponse)
	case phrase.Match(text, p.Buy):
		return move(conversation.InputBuy, e.render.storefront(p.BuyResponse)...)
	default:
		return stay(replyNotUnderstood)
	}
}

// cancel handles the cancel phrase in every phase that accepts it.
func (e *Engine) cancel(st *conversation.State, text string) (outcome, bool) {
	p := e.storefront.Phrases
	if !phrase.Match(text, p.Cancel) {
		return outcome{}, false
	}
	st.StopCommunication = true
	return move(conversation.InputCancel, p.CancelResponse), true
}

func (e *Engine) browsing(st *conversation.State, text string) outcome {
	if out, ok := e.cancel(st, text); ok {
		return out
	}
	cat := &e.storefront.Catalog
	if g, ok := cat.Group(text); ok {
		st.SelectedCategory = g.Key
		return move(conversation.InputCategory, e.render.category(g)...)
	}
	if u, ok := cat.UnlimitedItem(text); ok {
		// Duplicates are detected by display name.
		if st.HasLine(u.Name) {
			return stay(replyDuplicate, e.storefront.Phrases.ChooseQuestion)
		}
		st.AddLine(conversation.Line{Description: u.Name, Product: u.Name, Price: u.Price}, u.Payload)
		return move(conversation.InputUnlimited, e.render.confirmPrompt(u.Name, u.Price))
	}
	return stay(replyInvalidChoice + e.storefront.Phrases.ChooseQuestion)
}

func (e *Engine) categoryChosen(st *conversation.State, text string) outcome {
	if out, ok := e.cancel(st, text); ok {
		return out
	}
	g, ok := e.storefront.Catalog.Group(st.SelectedCategory)
	if !ok || phrase.Match(text, e.storefront.Phrases.Change) {
		st.SelectedCategory = ""
		return move(conversation.InputChange, e.storefront.Phrases.ChooseQuestion)
	}

	index, quantity, ok := parseSelection(text)
	if !ok {
		return stay(replyBadFormat)
	}
	item, ok := g.ItemAt(index)
	if !ok || quantity <= 0 {
		return stay(replyBadSelection)
	}
	total, err := item.UnitPrice.Mul(quantity)
	if err != nil {
		e.logger.Warn().Err(err).Str("item", item.Name).Int("quantity", quantity).Msg("line total failed")
		return stay(replyRetry)
	}

	description := fmt.Sprintf("%dx %s", quantity, item.Name)
	st.AddLine(conversation.Line{Description: description, Product: item.Name, Price: total}, item.Payload)
	st.SelectedCategory = ""
	return move(conversation.InputSelection, e.render.confirmPrompt(description, total))
}

// parseSelection accepts exactly two whitespace separated integers.
func parseSelection(text string) (index, quantity int, ok bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, 0, false
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	quantity, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}
	return index, quantity, true
}

func (e *Engine) confirming(st *conversation.State, text string) outcome {
	if out, ok := e.cancel(st, text); ok {
		return out
	}
	p := e.storefront.Phrases
	switch {
	case phrase.Match(text, p.Confirm):
		total, err := st.Total()
		if err != nil {
			e.logger.Error().Err(err).Str("user_id", st.Key.UserID).Msg("cart total failed")
			return stay(replyRetry)
		}
		return move(conversation.InputConfirm,
			fmt.Sprintf(replyFinalAmountFmt, e.render.price(total)),
			e.render.paymentMethods())
	case phrase.Match(text, p.Change):
		st.ClearCart()
		return move(conversation.InputChange, p.ChooseQuestion)
	default:
		return stay(e.render.confirmOrChange())
	}
}

func (e *Engine) awaitingPaymentMethod(st *conversation.State, text string) outcome {
	if out, ok := e.cancel(st, text); ok {
		return out
	}
	m, ok := e.storefront.PaymentMethod(text)
	if !ok {
		return stay(replyInvalidMethod, e.render.paymentMethods())
	}
	st.PaymentMethod = m.Name

	replies := make([]string, 0, 3)
	if m.HasInstructions() {
		replies = append(replies, fmt.Sprintf("Send the payment to %s.", m.Recipient))
		if m.Rules != "" {
			replies = append(replies, "Rules: "+m.Rules)
		}
	}
	replies = append(replies, fmt.Sprintf(replyTxIDPromptFmt, m.Name))
	return move(conversation.InputPaymentMethod, replies...)
}

// awaitingTransactionID records the id only once the mailbox confirms it.
func (e *Engine) awaitingTransactionID(ctx context.Context, st *conversation.State, text string) outcome {
	if out, ok := e.cancel(st, text); ok {
		return out
	}
	id := conversation.NormalizeTransactionID(text)
	if !conversation.ValidTransactionID(id) {
		return stay(replyInvalidTxID)
	}

	found := e.deps.Verifier.Verify(ctx, verification.Request{
		Identity:      string(e.identity),
		UserID:        st.Key.UserID,
		Credential:    e.credential,
		TransactionID: id,
	})
	if !found {
		return stay(replyTxIDNotFound)
	}
	st.TransactionID = id

	replies := make([]string, 0, len(st.Finalized)+1)
	replies = append(replies, fmt.Sprintf(replyConfirmedFmt, productList(st.Cart)))
	for _, payload := range st.Finalized {
		replies = append(replies, fmt.Sprintf(replyDeliveryFmt, payload))
	}
	out := move(conversation.InputTransactionID, replies...)
	out.sold = e.soldRecords(st)
	return out
}

func (e *Engine) soldRecords(st *conversation.State) []*catalog.SoldRecord {
	now := e.now()
	records := make([]*catalog.SoldRecord, len(st.Cart))
	for i, l := range st.Cart {
		records[i] = &catalog.SoldRecord{
			RecordID:      uuid.New(),
			Identity:      string(e.identity),
			Product:       l.Description,
			Price:         l.Price,
			BuyerID:       st.Key.UserID,
			BuyerName:     st.UserName,
			PaymentMethod: st.PaymentMethod,
			TransactionID: st.TransactionID,
			SoldAt:        now,
		}
	}
	return records
}

// awaitingReorder ignores everything except the reorder phrase.
func (e *Engine) awaitingReorder(st *conversation.State, text string) outcome {
	p := e.storefront.Phrases
	if !phrase.Match(text, p.Reorder) {
		return outcome{input: conversation.InputUnknown}
	}
	st.ResetOrder()
	return move(conversation.InputReorder, e.render.storefront(p.ReorderResponse)...)
}

// Storefront returns the validated storefront this engine sells from.
func (e *Engine) Storefront() *conversation.Storefront {
	return e.storefront
}
