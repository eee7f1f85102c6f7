package heartbeat

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher sends heartbeat messages to NATS with a subject prefix.
type Publisher struct {
	nc     Conn
	prefix string
}

var hostname = os.Hostname

func NewPublisher(nc Conn, prefix string) *Publisher {
	return &Publisher{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
	}
}

// Publish sends a heartbeat to NATS using the configured prefix.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.GeneratedAt.IsZero() {
		msg.GeneratedAt = time.Now().UTC()
	}
	msg = applyHostDefault(msg)
	payload, err := msg.Marshal()
	if err != nil {
		return err
	}
	return p.nc.PublishMsg(&nats.Msg{
		Subject: p.fullSubject(msg.Subject),
		Data:    payload,
		Header:  cloneHeaders(ctx),
	})
}

func (p *Publisher) fullSubject(s string) string {
	if p.prefix == "" {
		return s
	}
	return fmt.Sprintf("%s.%s", p.prefix, s)
}

func applyHostDefault(msg Message) Message {
	if msg.Host != "" {
		return msg
	}
	if host, err := hostname(); err == nil && host != "" {
		msg.Host = host
	}
	return msg
}

// cloneHeaders extracts trace-like metadata from context if available.
func cloneHeaders(ctx context.Context) nats.Header {
	headers := nats.Header{}
	if deadline, ok := ctx.Deadline(); ok {
		headers.Set("Deadline", deadline.UTC().Format(time.RFC3339Nano))
	}
	return headers
}
