package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmstore/dmstore/internal/domain/catalog"
)

func TestValidTransactionID(t *testing.T) {
	ok := []string{"ABCDEFGHIJ1234567", "abcdefghij1234567", "00000000000000000", "9X8Y7Z6W5V4U3T2S1"}
	for _, v := range ok {
		assert.True(t, ValidTransactionID(v), v)
	}
	bad := []string{
		"",
		"ABCDEFGHIJ123456",
		"ABCDEFGHIJ12345678",
		"ABCDEFGHIJ12345-7",
		"ABCDEFGHIJ 234567",
		"ÄBCDEFGHIJ1234567",
		"ABCDEFGHIJ123456\n",
		strings.Repeat("1", 17) + " ",
	}
	for _, v := range bad {
		assert.False(t, ValidTransactionID(v), v)
	}
	assert.Equal(t, "ABCDEFGHIJ1234567", NormalizeTransactionID("  abcdefghij1234567 "))
}

func TestTransitionTable(t *testing.T) {
	for _, p := range Phases {
		for _, in := range Accepts(p) {
			next, ok := Next(p, in)
			require.True(t, ok)
			assert.True(t, next.Valid(), "%s x %s", p, in)
		}
	}

	next, ok := Next(PhaseNew, InputAny)
	require.True(t, ok)
	assert.Equal(t, PhaseGreeted, next)

	next, ok = Next(PhaseAwaitingTransactionID, InputTransactionID)
	require.True(t, ok)
	assert.Equal(t, PhaseAwaitingReorder, next)

	next, ok = Next(PhaseAwaitingTransactionID, InputCancel)
	require.True(t, ok)
	assert.Equal(t, PhaseDeclined, next)

	_, ok = Next(PhaseAwaitingReorder, InputBuy)
	assert.False(t, ok)

	assert.True(t, PhaseDeclined.Terminal())
	assert.False(t, PhaseBrowsing.Terminal())
}

func TestStateCartUnit(t *testing.T) {
	s := NewState(Key{Identity: "id", UserID: "u1"}, "buyer", time.Now())
	s.AddLine(Line{Description: "2x Item", Price: 2528}, "payload-1")
	s.AddLine(Line{Description: "Link", Price: 1264}, "payload-2")
	assert.True(t, s.Consistent())
	assert.True(t, s.HasLine("Link"))

	total, err := s.Total()
	require.NoError(t, err)
	assert.Equal(t, catalog.Amount(3792), total)

	clone := s.Clone()
	clone.Cart[0].Description = "changed"
	assert.Equal(t, "2x Item", s.Cart[0].Description)

	s.PaymentMethod = "PayPal"
	s.TransactionID = "ABCDEFGHIJ1234567"
	s.SelectedCategory = "1"
	s.ResetOrder()
	assert.Empty(t, s.Cart)
	assert.Empty(t, s.Finalized)
	assert.Empty(t, s.PaymentMethod)
	assert.Empty(t, s.TransactionID)
	assert.Empty(t, s.SelectedCategory)
	assert.True(t, s.Consistent())
}

func TestStateTotalOverflow(t *testing.T) {
	s := NewState(Key{}, "", time.Now())
	s.AddLine(Line{Price: catalog.Amount(1 << 62)}, "a")
	s.AddLine(Line{Price: catalog.Amount(1 << 62)}, "b")
	_, err := s.Total()
	assert.ErrorIs(t, err, catalog.ErrAmountOverflow)
}

func TestStorefrontValidate(t *testing.T) {
	sf := Storefront{
		Catalog: catalog.Catalog{
			Groups:    []catalog.Group{{Key: "1", Name: "G", Items: []catalog.Item{{Name: "I", UnitPrice: 100, Payload: "p"}}}},
			Unlimited: []catalog.Unlimited{{Key: "2", Name: "U", Price: 100, Payload: "q"}},
		},
		Phrases: Phrases{
			Greeting: "hi", Decline: "friend", Buy: "buy", BuyResponse: "pick",
			Reorder: "buy again", ReorderResponse: "again?", ChooseQuestion: "which?",
		},
		PaymentMethods: []PaymentMethod{{Key: "1", Name: "PayPal", Recipient: "pay@example.com"}},
	}
	sf.ApplyDefaults()
	require.NoError(t, sf.Validate())
	assert.Equal(t, "USD", sf.Currency)
	assert.Equal(t, "Bye!", sf.Phrases.DeclineResponse)

	m, ok := sf.PaymentMethod(" 1 ")
	require.True(t, ok)
	assert.True(t, m.HasInstructions())

	sf.PaymentMethods = append(sf.PaymentMethods, PaymentMethod{Key: "1", Name: "Dup"})
	assert.ErrorContains(t, sf.Validate(), "duplicate")

	sf.PaymentMethods = sf.PaymentMethods[:1]
	sf.Phrases.Buy = "Friend"
	assert.Error(t, sf.Validate())
	sf.Phrases.Buy = "buy"

	sf.Phrases.Cancel, sf.Phrases.CancelResponse = " 2 ", "cancelled"
	assert.ErrorContains(t, sf.Validate(), "cancel phrase")

	sf.Phrases.Cancel = "1"
	assert.ErrorContains(t, sf.Validate(), "cancel phrase")

	sf.Catalog.Groups[0].Key = "3"
	assert.ErrorContains(t, sf.Validate(), "payment methods")

	sf.Phrases.Cancel = "stop"
	assert.NoError(t, sf.Validate())
}
