package handshake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cubegame/internal/dependencies/mocks"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/storage/memory"
	redisstorage "github.com/mcoot/cubegame/internal/storage/redis"
	"github.com/mcoot/cubegame/internal/testutil"
)

// recordingAck captures in_game acknowledgements
type recordingAck struct {
	acked []model.NetworkID
}

func (r *recordingAck) AckInGame(_ context.Context, conn *model.Connection, _ *model.PlayerRecord) {
	r.acked = append(r.acked, conn.NetworkID)
}

// failingStore fails every read
type failingStore struct {
	storage.Storage
}

var errStoreDown = errors.New("store down")

func (failingStore) ListConnectionsAwaitingGame(context.Context) ([]*model.Connection, error) {
	return nil, errStoreDown
}

func (failingStore) ListJoinRequests(context.Context, model.Direction) ([]*model.JoinRequest, error) {
	return nil, errStoreDown
}

type HandshakeSuite struct {
	suite.Suite
	newStore func(t *testing.T) storage.Storage

	client   storage.Storage
	server   storage.Storage
	clock    *mocks.MockClock
	ids      *mocks.MockIDs
	ack      *recordingAck
	emitter  *Emitter
	handler  *Handler
	teardown *Teardown
	ctx      context.Context
}

func TestHandshakeMemorySuite(t *testing.T) {
	suite.Run(t, &HandshakeSuite{newStore: func(*testing.T) storage.Storage { return memory.New() }})
}

func TestHandshakeRedisSuite(t *testing.T) {
	suite.Run(t, &HandshakeSuite{newStore: func(t *testing.T) storage.Storage {
		mini := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return redisstorage.NewWithClient(client, redisstorage.DefaultConfig())
	}})
}

func (s *HandshakeSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.client = s.newStore(s.T())
	s.server = s.newStore(s.T())
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDs()
	s.ack = &recordingAck{}
	s.emitter = NewEmitter(s.client, s.clock, s.ids, logger)
	s.handler = NewHandler(s.server, s.clock, s.ids, logger, WithAcknowledger(s.ack))
	s.teardown = NewTeardown(s.server, logger)
	s.ctx = context.Background()
}

func (s *HandshakeSuite) saveConnection(store storage.Storage, handle model.ConnectionHandle, id model.NetworkID) {
	conn := &model.Connection{Handle: handle, NetworkID: id, ConnectedAt: s.clock.Now()}
	s.Require().NoError(store.Apply(s.ctx, storage.NewBatch().SaveConnection(conn)))
}

func (s *HandshakeSuite) receiveJoinRequest(handle model.ConnectionHandle) {
	req := &model.JoinRequest{
		ID:         model.JoinRequestID(s.ids.NewID()),
		Connection: handle,
		Direction:  model.DirectionIncoming,
		CreatedAt:  s.clock.Now(),
	}
	s.Require().NoError(s.server.Apply(s.ctx, storage.NewBatch().SaveJoinRequest(req)))
}

// deliver moves every outgoing client request to the server as an incoming request,
// mapping client handles to server handles
func (s *HandshakeSuite) deliver(handles map[model.ConnectionHandle]model.ConnectionHandle) {
	out, err := s.client.ListJoinRequests(s.ctx, model.DirectionOutgoing)
	s.Require().NoError(err)
	clientBatch := storage.NewBatch()
	for _, req := range out {
		s.receiveJoinRequest(handles[req.Connection])
		clientBatch.DeleteJoinRequest(req.ID)
	}
	s.Require().NoError(s.client.Apply(s.ctx, clientBatch))
}

func (s *HandshakeSuite) outgoing() []*model.JoinRequest {
	reqs, err := s.client.ListJoinRequests(s.ctx, model.DirectionOutgoing)
	s.Require().NoError(err)
	return reqs
}

func (s *HandshakeSuite) incoming() []*model.JoinRequest {
	reqs, err := s.server.ListJoinRequests(s.ctx, model.DirectionIncoming)
	s.Require().NoError(err)
	return reqs
}

func (s *HandshakeSuite) players() []*model.PlayerRecord {
	players, err := s.server.ListPlayers(s.ctx)
	s.Require().NoError(err)
	return players
}

// Emitter tests

func (s *HandshakeSuite) TestEmitterFlagsAndQueuesOneRequestPerConnection() {
	s.saveConnection(s.client, "a", 1)
	s.saveConnection(s.client, "b", 2)

	s.Require().NoError(s.emitter.Update(s.ctx, 0))

	for _, handle := range []model.ConnectionHandle{"a", "b"} {
		conn, err := s.client.GetConnection(s.ctx, handle)
		s.Require().NoError(err)
		s.True(conn.InGame)
	}
	reqs := s.outgoing()
	s.Require().Len(reqs, 2)
	s.ElementsMatch([]model.ConnectionHandle{"a", "b"}, []model.ConnectionHandle{reqs[0].Connection, reqs[1].Connection})
}

func (s *HandshakeSuite) TestEmitterIsIdempotent() {
	s.saveConnection(s.client, "a", 1)

	s.Require().NoError(s.emitter.Update(s.ctx, 0))
	s.Require().NoError(s.emitter.Update(s.ctx, 0))

	s.Len(s.outgoing(), 1)
}

func (s *HandshakeSuite) TestEmitterIgnoresUnidentifiedConnection() {
	s.saveConnection(s.client, "a", model.UnassignedNetworkID)

	s.Require().NoError(s.emitter.Update(s.ctx, 0))

	conn, err := s.client.GetConnection(s.ctx, "a")
	s.Require().NoError(err)
	s.False(conn.InGame)
	s.Empty(s.outgoing())
}

func (s *HandshakeSuite) TestEmitterSurfacesStoreErrors() {
	emitter := NewEmitter(failingStore{}, s.clock, s.ids, testutil.NopLogger())
	s.ErrorIs(emitter.Update(s.ctx, 0), errStoreDown)
}

// Handler tests

func (s *HandshakeSuite) TestHandlerSpawnsOwnedPlayerForLiveConnection() {
	s.saveConnection(s.server, "srv-a", 5)
	s.receiveJoinRequest("srv-a")

	s.Require().NoError(s.handler.Update(s.ctx, 0))

	conn, err := s.server.GetConnection(s.ctx, "srv-a")
	s.Require().NoError(err)
	s.True(conn.InGame)

	players := s.players()
	s.Require().Len(players, 1)
	s.Equal(model.NetworkID(5), players[0].Owner)
	s.Equal(model.ConnectionHandle("srv-a"), players[0].Connection)
	s.Equal(model.DefaultCubeTemplate.Name, players[0].Template)
	s.Equal(model.DefaultCubeTemplate.Tags, players[0].Tags)

	owned, err := s.server.ListOwned(s.ctx, "srv-a")
	s.Require().NoError(err)
	s.Equal([]model.PlayerID{players[0].ID}, owned)

	s.Empty(s.incoming())
	s.Equal([]model.NetworkID{5}, s.ack.acked)
}

func (s *HandshakeSuite) TestHandlerDiscardsRequestForMissingConnection() {
	s.receiveJoinRequest("gone")

	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.Empty(s.players())
	s.Empty(s.incoming())
	s.Empty(s.ack.acked)
}

func (s *HandshakeSuite) TestHandlerSpawnsOncePerConnectionWithinPass() {
	s.saveConnection(s.server, "srv-a", 5)
	s.receiveJoinRequest("srv-a")
	s.receiveJoinRequest("srv-a")

	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.Len(s.players(), 1)
	s.Empty(s.incoming())
}

func (s *HandshakeSuite) TestHandlerDoesNotSpawnTwiceAcrossPasses() {
	s.saveConnection(s.server, "srv-a", 5)
	s.receiveJoinRequest("srv-a")
	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.receiveJoinRequest("srv-a")
	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.Len(s.players(), 1)
	s.Empty(s.incoming())
	s.Len(s.ack.acked, 1)
}

func (s *HandshakeSuite) TestHandlerUsesConfiguredTemplate() {
	tmpl := model.Template{Name: "Sphere", Tags: model.TagInputDriven, Position: model.Vec3{Y: 1}}
	handler := NewHandler(s.server, s.clock, s.ids, testutil.NopLogger(), WithTemplate(tmpl))
	s.saveConnection(s.server, "srv-a", 3)
	s.receiveJoinRequest("srv-a")

	s.Require().NoError(handler.Update(s.ctx, 0))

	players := s.players()
	s.Require().Len(players, 1)
	s.Equal("Sphere", players[0].Template)
	s.Equal(model.Vec3{Y: 1}, players[0].Position)
	s.False(players[0].Tags.Has(model.TagCube))
}

func (s *HandshakeSuite) TestHandlerSurfacesStoreErrors() {
	handler := NewHandler(failingStore{}, s.clock, s.ids, testutil.NopLogger())
	s.ErrorIs(handler.Update(s.ctx, 0), errStoreDown)
}

// Scenarios

func (s *HandshakeSuite) TestScenarioJoinWithIdentity42() {
	s.saveConnection(s.client, "cli-a", 42)
	s.saveConnection(s.server, "srv-a", 42)

	s.Require().NoError(s.emitter.Update(s.ctx, 0))

	conn, err := s.client.GetConnection(s.ctx, "cli-a")
	s.Require().NoError(err)
	s.True(conn.InGame)
	s.Require().Len(s.outgoing(), 1)

	s.deliver(map[model.ConnectionHandle]model.ConnectionHandle{"cli-a": "srv-a"})
	s.Require().NoError(s.handler.Update(s.ctx, 0))

	players := s.players()
	s.Require().Len(players, 1)
	s.Equal(model.NetworkID(42), players[0].Owner)
	s.Empty(s.incoming())
}

func (s *HandshakeSuite) TestScenarioConnectionClosedBeforeHandlerPass() {
	s.saveConnection(s.client, "cli-a", 7)
	s.saveConnection(s.server, "srv-a", 7)
	s.Require().NoError(s.emitter.Update(s.ctx, 0))
	s.deliver(map[model.ConnectionHandle]model.ConnectionHandle{"cli-a": "srv-a"})

	// Drop only the connection so the request is still pending when the handler runs
	s.Require().NoError(s.server.Apply(s.ctx, storage.NewBatch().DeleteConnection("srv-a")))

	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.Empty(s.players())
	s.Empty(s.incoming())
}

// Teardown tests

func (s *HandshakeSuite) TestTeardownDestroysOwnedPlayer() {
	s.saveConnection(s.server, "srv-a", 5)
	s.saveConnection(s.server, "srv-b", 6)
	s.receiveJoinRequest("srv-a")
	s.receiveJoinRequest("srv-b")
	s.Require().NoError(s.handler.Update(s.ctx, 0))
	s.Require().Len(s.players(), 2)

	s.Require().NoError(s.teardown.Run(s.ctx, "srv-a"))

	players := s.players()
	s.Require().Len(players, 1)
	s.Equal(model.NetworkID(6), players[0].Owner)

	_, err := s.server.GetConnection(s.ctx, "srv-a")
	s.ErrorIs(err, model.ErrConnectionNotFound)

	owned, err := s.server.ListOwned(s.ctx, "srv-a")
	s.Require().NoError(err)
	s.Empty(owned)
}

func (s *HandshakeSuite) TestTeardownDropsPendingRequests() {
	s.saveConnection(s.server, "srv-a", 7)
	s.receiveJoinRequest("srv-a")

	s.Require().NoError(s.teardown.Run(s.ctx, "srv-a"))
	s.Require().NoError(s.handler.Update(s.ctx, 0))

	s.Empty(s.players())
	s.Empty(s.incoming())
}

func (s *HandshakeSuite) TestTeardownUnknownConnectionIsNoop() {
	s.NoError(s.teardown.Run(s.ctx, "unknown"))
}

func (s *HandshakeSuite) TestSweepRemovesConnectionsThatAreNotLive() {
	s.saveConnection(s.server, "srv-a", 1)
	s.saveConnection(s.server, "srv-b", 2)
	s.receiveJoinRequest("srv-a")
	s.receiveJoinRequest("srv-b")
	s.Require().NoError(s.handler.Update(s.ctx, 0))
	s.saveConnection(s.server, "srv-c", 3)
	s.receiveJoinRequest("srv-c")

	live := func(h model.ConnectionHandle) bool { return h == "srv-b" }
	swept, err := s.teardown.Sweep(s.ctx, live)
	s.Require().NoError(err)
	s.Equal(2, swept)

	players := s.players()
	s.Require().Len(players, 1)
	s.Equal(model.NetworkID(2), players[0].Owner)
	s.Empty(s.incoming())

	conns, err := s.server.ListConnections(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(conns, 1)
	s.Equal(model.ConnectionHandle("srv-b"), conns[0].Handle)

	owned, err := s.server.ListOwned(s.ctx, "srv-a")
	s.Require().NoError(err)
	s.Empty(owned)
}

func (s *HandshakeSuite) TestSweepRemovesOrphanedPlayers() {
	orphan := model.DefaultCubeTemplate.Instantiate("orphan", s.clock.Now())
	orphan.Owner = 9
	orphan.Connection = "gone"
	s.Require().NoError(s.server.Apply(s.ctx, storage.NewBatch().SavePlayer(orphan).LinkOwned("gone", "orphan")))

	swept, err := s.teardown.Sweep(s.ctx, func(model.ConnectionHandle) bool { return false })
	s.Require().NoError(err)
	s.Zero(swept)
	s.Empty(s.players())

	owned, err := s.server.ListOwned(s.ctx, "gone")
	s.Require().NoError(err)
	s.Empty(owned)
}

func (s *HandshakeSuite) TestSweepOfCleanStoreIsNoop() {
	swept, err := s.teardown.Sweep(s.ctx, func(model.ConnectionHandle) bool { return false })
	s.NoError(err)
	s.Zero(swept)
}
