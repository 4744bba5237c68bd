package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cubegame/internal/client"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/testutil"
)

type fakeHost struct {
	addrs []string
	err   error
}

func (h *fakeHost) Listen(ctx context.Context, addr string) error {
	if h.err != nil {
		return h.err
	}
	h.addrs = append(h.addrs, addr)
	return nil
}

type dial struct {
	address string
	port    int
}

type fakeClient struct {
	dials  []dial
	err    error
	status client.Status
}

func (c *fakeClient) Connect(ctx context.Context, address string, port int) error {
	if c.err != nil {
		return c.err
	}
	c.dials = append(c.dials, dial{address, port})
	return nil
}

func (c *fakeClient) Status(ctx context.Context) (client.Status, error) {
	return c.status, nil
}

type SessionSuite struct {
	suite.Suite
	ctx    context.Context
	host   *fakeHost
	client *fakeClient
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.ctx = context.Background()
	s.host = &fakeHost{}
	s.client = &fakeClient{}
}

func (s *SessionSuite) newSession(cfg Config) *Session {
	return New(cfg, s.host, s.client, testutil.NopLogger())
}

func (s *SessionSuite) TestHostListensOnAllInterfacesAndJoinsOverLoopback() {
	sess := s.newSession(DefaultConfig())

	s.Require().NoError(sess.Execute(s.ctx, Command{Kind: CommandHost}))

	s.Equal([]string{"0.0.0.0:7979"}, s.host.addrs)
	s.Equal([]dial{{"127.0.0.1", 7979}}, s.client.dials)
	s.True(sess.Started())
}

func (s *SessionSuite) TestHostRefusedOutsideClientAndServerMode() {
	cfg := DefaultConfig()
	cfg.PlayMode = PlayModeClient
	sess := s.newSession(cfg)

	err := sess.Host(s.ctx, 7979)

	s.ErrorIs(err, model.ErrHostNotAllowed)
	s.Empty(s.host.addrs)
	s.False(sess.Started())

	// A refused host does not use up the session
	s.NoError(sess.Join(s.ctx, "", 0))
}

func (s *SessionSuite) TestHostRefusedWithoutHost() {
	sess := New(DefaultConfig(), nil, s.client, testutil.NopLogger())
	s.ErrorIs(sess.Host(s.ctx, 0), model.ErrHostNotAllowed)
}

func (s *SessionSuite) TestJoinUsesDefaults() {
	sess := s.newSession(DefaultConfig())

	s.Require().NoError(sess.Execute(s.ctx, Command{Kind: CommandJoin}))

	s.Equal([]dial{{DefaultAddress, DefaultPort}}, s.client.dials)
	s.Empty(s.host.addrs)
}

func (s *SessionSuite) TestJoinExplicitEndpoint() {
	sess := s.newSession(DefaultConfig())

	s.Require().NoError(sess.Join(s.ctx, "10.0.0.5", 8000))

	s.Equal([]dial{{"10.0.0.5", 8000}}, s.client.dials)
}

func (s *SessionSuite) TestJoinRejectsInvalidAddress() {
	sess := s.newSession(DefaultConfig())

	s.ErrorIs(sess.Join(s.ctx, "not an address", 7979), model.ErrInvalidAddress)
	s.False(sess.Started())
}

func (s *SessionSuite) TestSecondCommandRejected() {
	sess := s.newSession(DefaultConfig())
	s.Require().NoError(sess.Host(s.ctx, 0))

	s.ErrorIs(sess.Join(s.ctx, "", 0), model.ErrAlreadyStarted)
	s.ErrorIs(sess.Host(s.ctx, 0), model.ErrAlreadyStarted)
	s.Len(s.host.addrs, 1)
	s.Len(s.client.dials, 1)
}

func (s *SessionSuite) TestFailedJoinCanBeRetried() {
	s.client.err = errors.New("connection refused")
	sess := s.newSession(DefaultConfig())

	s.Error(sess.Join(s.ctx, "", 0))
	s.False(sess.Started())

	s.client.err = nil
	s.NoError(sess.Join(s.ctx, "", 0))
}

func (s *SessionSuite) TestHostStaysStartedWhenLoopbackFails() {
	s.client.err = errors.New("connection refused")
	sess := s.newSession(DefaultConfig())

	s.Error(sess.Host(s.ctx, 0))
	s.True(sess.Started())
}

func (s *SessionSuite) TestFailedListenCanBeRetried() {
	s.host.err = errors.New("address in use")
	sess := s.newSession(DefaultConfig())

	s.Error(sess.Host(s.ctx, 0))
	s.False(sess.Started())
}

func (s *SessionSuite) TestBootstrapWaitsWithoutAutoConnect() {
	sess := s.newSession(DefaultConfig())

	started, err := sess.Bootstrap(s.ctx)

	s.Require().NoError(err)
	s.False(started)
	s.Empty(s.host.addrs)
}

func (s *SessionSuite) TestBootstrapHostsWithAutoConnect() {
	cfg := DefaultConfig()
	cfg.AutoConnect = true
	sess := s.newSession(cfg)

	started, err := sess.Bootstrap(s.ctx)

	s.Require().NoError(err)
	s.True(started)
	s.Equal([]string{"0.0.0.0:7979"}, s.host.addrs)
}

func (s *SessionSuite) TestUnknownCommand() {
	sess := s.newSession(DefaultConfig())
	s.Error(sess.Execute(s.ctx, Command{Kind: "spectate"}))
}

func (s *SessionSuite) TestStatusText() {
	s.client.status = client.Status{Active: true, Address: "127.0.0.1:7979"}
	sess := s.newSession(DefaultConfig())

	text, err := sess.StatusText(s.ctx)
	s.Require().NoError(err)
	s.Equal("127.0.0.1 | Connecting", text)
}

func TestFormatStatus(t *testing.T) {
	identified := &model.Connection{Handle: "c", NetworkID: 3}
	withRTT := &model.Connection{Handle: "c", NetworkID: 3, RTT: 42 * time.Millisecond}

	tests := []struct {
		name   string
		status client.Status
		want   string
	}{
		{"no connection", client.Status{}, "Not connected!"},
		{"dialling", client.Status{Active: true, Address: "10.0.0.5:7979"}, "10.0.0.5 | Connecting"},
		{"unidentified", client.Status{Active: true, Address: "10.0.0.5:7979", Connection: &model.Connection{Handle: "c"}}, "10.0.0.5 | Connecting"},
		{"identified without rtt", client.Status{Active: true, Address: "10.0.0.5:7979", Connection: identified}, "10.0.0.5 | Connected"},
		{"identified with rtt", client.Status{Active: true, Address: "10.0.0.5:7979", Connection: withRTT}, "10.0.0.5 | 42ms"},
		{"address without port", client.Status{Active: true, Address: "10.0.0.5", Connection: identified}, "10.0.0.5 | Connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatStatus(tt.status))
		})
	}
}

func TestParsePlayMode(t *testing.T) {
	mode, err := ParsePlayMode(" Client_And_Server ")
	assert.NoError(t, err)
	assert.Equal(t, PlayModeClientAndServer, mode)

	_, err = ParsePlayMode("spectator")
	assert.Error(t, err)
}
