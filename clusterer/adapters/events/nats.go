package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

const (
	SubjectClustered = "clustering.completed" // топик с итогами каждого прогона
	flushTimeout     = 5 * time.Second
)

type NatsPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

func NewNatsPublisher(address string, log *slog.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(address, nats.Name("clusterer"))
	if err != nil {
		return nil, err
	}
	log.Info("connected to broker", "address", address)

	return &NatsPublisher{
		log: log,
		nc:  nc,
	}, nil
}

func encode(ev core.ClusteringEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (p *NatsPublisher) NotifyClustered(ctx context.Context, ev core.ClusteringEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(SubjectClustered, data); err != nil {
		return err
	}
	return p.flush(ctx)
}

// flush waits for the server ack. FlushWithContext needs a deadline.
func (p *NatsPublisher) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return p.nc.FlushWithContext(ctx)
}

func (p *NatsPublisher) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return p.flush(ctx)
}

func (p *NatsPublisher) Close() error {
	p.nc.Close()
	return nil
}
