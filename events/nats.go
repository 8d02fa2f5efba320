// Package events publishes report lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"community-help/logger"
	"community-help/models"

	"github.com/nats-io/nats.go"
)

// SubjectStatusChanged carries a models.StatusChangedEvent as JSON.
const SubjectStatusChanged = "reports.status_changed"

type conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	nc    conn
	close func()
}

// Connect dials the NATS server at url. The connection reconnects on its own.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("community-help"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Log.WithField("url", nc.ConnectedUrl()).Info("Connected to NATS")
	return &Publisher{nc: nc, close: nc.Close}, nil
}

func (p *Publisher) PublishStatusChange(_ context.Context, ev models.StatusChangedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(SubjectStatusChanged, data); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectStatusChanged, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
