package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/internal/metrics"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

const teardownTimeout = 5 * time.Second

var errSubscriptionEnded = errors.New("subscription ended")

// Client is one authenticated meeting connection. Three activities run for
// its lifetime: the reader (client frames), the subscriber (bus events) and
// the sender (delivery to the socket). Whichever finishes first ends the
// other two, and teardown runs once afterwards.
type Client struct {
	ID       string
	Identity domain.Identity

	hub     *Hub
	conn    *websocket.Conn
	handler Handler
	sub     pubsub.Subscription

	state        atomic.Int32
	teardownOnce sync.Once
}

// NewClient wraps an authenticated connection and its open subscription.
func NewClient(h *Hub, conn *websocket.Conn, id domain.Identity, handler Handler, sub pubsub.Subscription) *Client {
	c := &Client{
		ID:       uuid.New().String(),
		Identity: id,
		hub:      h,
		conn:     conn,
		handler:  handler,
		sub:      sub,
	}
	c.state.Store(int32(domain.StateAuthenticated))
	return c
}

// State returns the session's lifecycle state.
func (c *Client) State() domain.SessionState {
	return domain.SessionState(c.state.Load())
}

// Run registers the client and blocks until the session ends. The returned
// error is the reason the first activity stopped; nil means a clean close.
func (c *Client) Run(ctx context.Context) error {
	ctx = log.WithSession(ctx, c.ID, c.Identity.UserID, c.Identity.ClassID)
	l := log.Ctx(ctx)

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	events := make(chan *pubsub.Event, c.hub.config.SendQueueSize)

	g.Go(func() error {
		defer cancel()
		return c.readLoop(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return c.subscribeLoop(gctx, events)
	})
	g.Go(func() error {
		defer cancel()
		return c.sendLoop(gctx, events)
	})
	g.Go(func() error {
		<-gctx.Done()
		c.state.CompareAndSwap(int32(domain.StateAuthenticated), int32(domain.StateClosing))
		c.sub.Close()
		c.conn.Close()
		return nil
	})

	err := g.Wait()
	c.teardown(ctx)
	c.state.Store(int32(domain.StateClosed))

	if err != nil {
		l.Warn().Err(err).Bool(log.FieldIsOwner, c.Identity.IsOwner).Msg("session ended")
	} else {
		l.Info().Bool(log.FieldIsOwner, c.Identity.IsOwner).Msg("session closed")
	}
	return err
}

// Close sends a close frame and drops the connection.
func (c *Client) Close(code int, reason string) {
	c.state.CompareAndSwap(int32(domain.StateAuthenticated), int32(domain.StateClosing))
	deadline := time.Now().Add(c.hub.config.WriteWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.conn.Close()
}

func (c *Client) teardown(ctx context.Context) {
	c.teardownOnce.Do(func() {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		c.handler.Teardown(tctx, c.Identity)
	})
}

func (c *Client) closing(ctx context.Context) bool {
	return ctx.Err() != nil || c.State() >= domain.StateClosing
}

func (c *Client) readLoop(ctx context.Context) error {
	l := log.Ctx(ctx)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closing(ctx) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		cmd, err := domain.DecodeCommand(data)
		if err != nil {
			metrics.DecodeErrors.Inc()
			l.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}

		if err := c.handler.HandleCommand(ctx, c.Identity, cmd); err != nil {
			var de *domain.DecodeError
			if errors.As(err, &de) {
				metrics.DecodeErrors.Inc()
				l.Debug().Err(err).Str(log.FieldMsgType, cmd.CommandType()).Msg("command rejected")
				continue
			}
			if c.closing(ctx) {
				return nil
			}
			return fmt.Errorf("handle %s: %w", cmd.CommandType(), err)
		}
	}
}

func (c *Client) subscribeLoop(ctx context.Context, out chan<- *pubsub.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.sub.Events():
			if !ok {
				if c.closing(ctx) {
					return nil
				}
				if err := c.sub.Err(); err != nil {
					return fmt.Errorf("subscription: %w", err)
				}
				return errSubscriptionEnded
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Client) sendLoop(ctx context.Context, in <-chan *pubsub.Event) error {
	var ping <-chan time.Time
	if c.hub.config.PingInterval > 0 {
		ticker := time.NewTicker(c.hub.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-in:
			msg, deliver, err := c.handler.HandleEvent(ctx, c.Identity, ev)
			if err != nil {
				if c.closing(ctx) {
					return nil
				}
				_ = c.write(domain.ErrorFrame)
				return fmt.Errorf("deliver %s: %w", ev.Type, err)
			}
			if !deliver {
				continue
			}
			if err := c.write(msg); err != nil {
				if c.closing(ctx) {
					return nil
				}
				return fmt.Errorf("write: %w", err)
			}

		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if c.closing(ctx) {
					return nil
				}
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Client) write(v interface{}) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait))
	return c.conn.WriteJSON(v)
}
