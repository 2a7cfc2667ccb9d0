// Package publish mirrors session events onto NATS subjects so other
// processes (overlays, stats collectors) can follow a draft.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/lobby"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "draft.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc     conn
	closer func()
	prefix string
}

var _ lobby.Publisher = (*NATSPublisher)(nil)

func Connect(cfg Config, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name("nabi-draft"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := newPublisher(nc, cfg.SubjectPrefix)
	p.closer = nc.Close
	return p, nil
}

func newPublisher(nc conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject is <prefix>.<session id>.<event type>.
func (p *NATSPublisher) Subject(evt lobby.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, evt.SessionID, evt.Type)
}

func (p *NATSPublisher) Publish(ctx context.Context, evt lobby.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(evt), data); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// Multi fans an event out to several publishers, joining their errors.
type Multi []lobby.Publisher

func (m Multi) Publish(ctx context.Context, evt lobby.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
