//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpapi "github.com/dmstore/dmstore/internal/api/http"
	appConversation "github.com/dmstore/dmstore/internal/application/conversation"
	appSession "github.com/dmstore/dmstore/internal/application/session"
	"github.com/dmstore/dmstore/internal/application/verification"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	mailmocks "github.com/dmstore/dmstore/internal/domain/mailbox/mocks"
	"github.com/dmstore/dmstore/internal/domain/messaging"
	"github.com/dmstore/dmstore/internal/domain/messaging/mocks"
	"github.com/dmstore/dmstore/internal/domain/session"
	"github.com/dmstore/dmstore/internal/infrastructure/postgres"
	"github.com/dmstore/dmstore/internal/infrastructure/storefront"
)

const (
	testToken     = "integration-token"
	transactionID = "ABCDEFGHIJ1234567"
)

type testServer struct {
	http    *httptest.Server
	gateway *mocks.Gateway
	pool    *pgxpool.Pool
}

func TestPurchaseIsPersistedInPostgres(t *testing.T) {
	srv := newTestServer(t)

	var started session.Session
	postJSON(t, srv.http.URL+"/v1/listeners", map[string]interface{}{
		"token":   testToken,
		"mailbox": map[string]string{"address": "shop@example.com", "appPassword": "secret"},
	}, http.StatusAccepted, &started)

	var conn *mocks.Conn
	select {
	case conn = <-srv.gateway.Opened():
	case <-time.After(5 * time.Second):
		t.Fatal("gateway was not opened")
	}
	conn.Ready("shop")
	for _, text := range []string{"hello", "buy", "1", "2 3", "confirm", "1", strings.ToLower(transactionID)} {
		conn.Emit(messaging.Event{Type: messaging.EventMessage, Message: &messaging.Message{
			ID: text, ChannelID: "dm-7", AuthorID: "user-7", AuthorName: "bob", Content: text, Direct: true,
		}})
	}

	require.Eventually(t, func() bool {
		for _, s := range conn.Sent() {
			if strings.Contains(s.Text, "account-2 credentials") {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	repo := postgres.NewConversationRepository(srv.pool)
	st, err := repo.Load(context.Background(), conversation.Key{Identity: started.Key.Identity, UserID: "user-7"})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, conversation.PhaseAwaitingReorder, st.Phase)
	assert.Equal(t, transactionID, st.TransactionID)
	assert.Equal(t, []string{"account-2 credentials"}, st.Finalized)

	var sold struct {
		Records []struct {
			Product string `json:"product"`
			Price   int64  `json:"price"`
			BuyerID string `json:"buyerId"`
		} `json:"records"`
	}
	getJSON(t, srv.http.URL+"/v1/sold", &sold)
	require.Len(t, sold.Records, 1)
	assert.Equal(t, "3x Fresh account (100 followers)", sold.Records[0].Product)
	assert.Equal(t, int64(3792), sold.Records[0].Price)
	assert.Equal(t, "user-7", sold.Records[0].BuyerID)

	var scans int
	require.NoError(t, srv.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM mailbox_scans WHERE user_id = $1 AND found`, "user-7").Scan(&scans))
	assert.Equal(t, 1, scans)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "db pool")
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool, postgres.Migrations()), "migrations")
	require.NoError(t, resetDatabase(ctx, pool), "reset db")

	files, err := storefront.Open(filepath.Join("..", "infrastructure", "storefront", "testdata", "storefront.toml"))
	require.NoError(t, err)

	fetcher := &mailmocks.MockFetcher{}
	fetcher.On("Recent", mock.Anything, mock.Anything, mailbox.DefaultWindow).
		Return([]mailbox.Summary{{Subject: "Payment received", Body: "Transaction ID: " + transactionID}}, nil)

	logger := zerolog.Nop()
	ledger := postgres.NewSoldRepository(pool)
	gw := mocks.NewGateway()
	manager := appSession.NewManager(gw, logger)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.StopAll(stopCtx)
	})

	apiServer := httpapi.NewServer(httpapi.Deps{
		Sessions:    manager,
		Directory:   &mocks.Directory{},
		Storefronts: files,
		Ledger:      ledger,
		Conversation: appConversation.Deps{
			Repo:     postgres.NewConversationRepository(pool),
			Ledger:   ledger,
			Verifier: verification.NewVerifier(fetcher, postgres.NewScanRepository(pool), mailbox.DefaultWindow, logger),
		},
		BroadcastMinInterval: time.Second,
	}, logger)
	server := httptest.NewServer(apiServer.Router())
	t.Cleanup(server.Close)

	return &testServer{http: server, gateway: gw, pool: pool}
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `TRUNCATE TABLE conversations, sold_records, mailbox_scans RESTART IDENTITY`)
	return err
}

func postJSON(t *testing.T, url string, body interface{}, want int, out interface{}) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, want, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
