package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/services/movement"
	"github.com/mcoot/cubegame/internal/storage"
	"github.com/mcoot/cubegame/internal/transport"
)

// outbox delivers outgoing join requests. Each request is sent at most once
// and deleted in the same pass whether or not the send succeeded.
type outbox struct {
	r *Runtime
}

func (o *outbox) Name() string {
	return "join_request_outbox"
}

func (o *outbox) Update(ctx context.Context, _ time.Duration) error {
	reqs, err := o.r.store.ListJoinRequests(ctx, model.DirectionOutgoing)
	if err != nil {
		return fmt.Errorf("list outgoing join requests: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}

	conn := o.r.current()
	batch := storage.NewBatch()
	for _, req := range reqs {
		batch.DeleteJoinRequest(req.ID)

		if conn == nil || conn.Handle() != req.Connection {
			o.r.logger.Debug("dropping join request for closed connection",
				slog.String("request_id", string(req.ID)))
			continue
		}
		if err := conn.Send(transport.TypeGoInGame, nil); err != nil {
			o.r.logger.Warn("failed to send join request",
				slog.String("request_id", string(req.ID)),
				slog.String("error", err.Error()))
		}
	}
	return o.r.store.Apply(ctx, batch)
}

// inputSender samples the movement keys once the server has acknowledged the
// join and forwards the input whenever it changes
type inputSender struct {
	r    *Runtime
	last model.Input
	sent bool
}

func (s *inputSender) Name() string {
	return "cube_input"
}

func (s *inputSender) Update(ctx context.Context, _ time.Duration) error {
	if s.r.input == nil {
		return nil
	}
	conn := s.r.current()
	if conn == nil {
		s.sent = false
		return nil
	}

	stored, err := s.r.store.GetConnection(ctx, conn.Handle())
	if errors.Is(err, model.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !stored.Acknowledged {
		return nil
	}

	in := movement.Sample(s.r.input.Keys())
	if s.sent && in == s.last {
		return nil
	}
	err = conn.Send(transport.TypeInput, transport.InputPayload{Horizontal: in.Horizontal, Vertical: in.Vertical})
	if err != nil {
		return fmt.Errorf("send input: %w", err)
	}
	s.last, s.sent = in, true
	return nil
}

// rttRefresher copies the transport round trip estimate into the stored
// connection every few ticks
type rttRefresher struct {
	r     *Runtime
	every int
	ticks int
}

func (p *rttRefresher) Name() string {
	return "connection_status"
}

func (p *rttRefresher) Update(ctx context.Context, _ time.Duration) error {
	p.ticks++
	if p.every > 1 && p.ticks%p.every != 0 {
		return nil
	}

	conn := p.r.current()
	if conn == nil {
		return nil
	}
	stored, err := p.r.store.GetConnection(ctx, conn.Handle())
	if errors.Is(err, model.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rtt := conn.RTT()
	if stored.RTT == rtt {
		return nil
	}
	stored.RTT = rtt
	return p.r.store.Apply(ctx, storage.NewBatch().SaveConnection(stored))
}
