package ws

import (
	"context"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kollektive-hackathon/luckybase-backend/internal/action"
	"github.com/kollektive-hackathon/luckybase-backend/internal/directory"
	"github.com/kollektive-hackathon/luckybase-backend/internal/duel"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	host  = common.HexToAddress("0x02ef5a3c4c14e23e10f1f0e7d91e0a8f7f3b5596")
	usdc  = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	units = model.AssetUnits{NativeSymbol: "ETH", TokenSymbol: "USDC", TokenDecimals: 6}
)

type server struct {
	hub       *ws.WebSocketNotificationHub
	sim       *blockchain.SimulatedGateway
	refresher *directory.Refresher
	submitter *action.Submitter
	http      *httptest.Server
}

func newServer(t *testing.T) *server {
	gin.SetMode(gin.TestMode)
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }

	s := &server{hub: ws.NewNotificationHub()}
	s.sim = blockchain.NewSimulatedGateway(usdc, host, now)
	s.sim.Fund(host, model.NativeAsset(), big.NewInt(1_000_000_000_000_000_000))

	store := directory.NewMemoryStore()
	s.refresher = directory.NewRefresher(directory.NewBuilder(s.sim, 20, units), store, s.hub, now)
	duelService := duel.NewService(store, s.sim, s.hub, units, now)
	s.refresher.OnRefresh(duelService.Broadcast)

	submitter, err := action.NewSubmitter(s.sim, action.NewMemoryLog(), action.Config{Units: units})
	require.NoError(t, err)
	s.submitter = submitter.WithNotifier(s.hub).WithClock(now)

	router := gin.New()
	RegisterRoutes(router.Group("/luckybase-api"), s.hub, duelService, s.submitter)
	s.http = httptest.NewServer(router)
	t.Cleanup(s.http.Close)
	return s
}

func (s *server) dial(t *testing.T, path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *server) waitForListener(t *testing.T, topic string) {
	require.Eventually(t, func() bool { return s.hub.ListenerCount(topic) > 0 }, 2*time.Second, 5*time.Millisecond)
}

func read[T any](t *testing.T, conn *websocket.Conn) T {
	var v T
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestDirectorySocketReceivesRefreshes(t *testing.T) {
	s := newServer(t)
	s.sim.Seed(model.GameRecord{Player1: host, Stake: big.NewInt(1), IsActive: true})
	_, err := s.refresher.Refresh(context.Background())
	require.NoError(t, err)

	conn := s.dial(t, "/luckybase-api/ws/directory")
	initial := read[model.DirectorySnapshot](t, conn)
	assert.Len(t, initial.Entries, 1)
	s.waitForListener(t, ws.DirectoryTopic)

	s.sim.Seed(model.GameRecord{Player1: host, Stake: big.NewInt(1), IsActive: true})
	_, err = s.refresher.Refresh(context.Background())
	require.NoError(t, err)

	next := read[model.DirectorySnapshot](t, conn)
	assert.Len(t, next.Entries, 2)
}

func TestDuelSocketGoesStale(t *testing.T) {
	s := newServer(t)
	s.sim.Seed(model.GameRecord{Player1: host, Stake: big.NewInt(1), IsActive: true})
	_, err := s.refresher.Refresh(context.Background())
	require.NoError(t, err)

	conn := s.dial(t, "/luckybase-api/ws/duel/0")
	initial := read[duel.SessionEvent](t, conn)
	assert.Equal(t, duel.SessionView, initial.Type)
	s.waitForListener(t, ws.DuelTopic(0))

	s.sim.UseSender(common.HexToAddress("0x0000000000000000000000000000000000000b0b"))
	s.sim.Fund(common.HexToAddress("0x0000000000000000000000000000000000000b0b"), model.NativeAsset(), big.NewInt(10))
	_, err = s.sim.JoinGame(context.Background(), 0, big.NewInt(1), model.NativeAsset())
	require.NoError(t, err)
	_, err = s.refresher.Refresh(context.Background())
	require.NoError(t, err)

	stale := read[duel.SessionEvent](t, conn)
	assert.Equal(t, duel.SessionStale, stale.Type)
	require.NotNil(t, stale.Problem)
	assert.Equal(t, "error.duel.stale-selection", stale.Problem.Code)
}

func TestActionSocketSendsCurrentState(t *testing.T) {
	s := newServer(t)
	a, err := s.submitter.Create(context.Background(), "0.1", model.AssetNative)
	require.NoError(t, err)

	conn := s.dial(t, "/luckybase-api/ws/action/"+a.Id.String())
	current := read[model.Action](t, conn)
	assert.Equal(t, model.StatusConfirmed, current.Status)
}
