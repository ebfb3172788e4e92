package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/audit"
	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/metrics"
	"github.com/digiy/pulse/internal/stream"
)

const source = "nats"

// DefaultSubject matches one token per merchant.
const DefaultSubject = "pulse.ingest.*"

// Ingester records and broadcasts a payload for a merchant.
type Ingester interface {
	Ingest(ctx context.Context, merchantID string, p event.Payload) (event.Event, error)
}

// Publisher sends replies. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type reply struct {
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// Bridge subscribes to the ingestion subject and feeds the engine.
type Bridge struct {
	nc      *nats.Conn
	pub     Publisher
	engine  Ingester
	subject string
	audit   *audit.Logger
	log     logrus.FieldLogger
	sub     *nats.Subscription
}

// Connect dials NATS with reconnect and lifecycle logging.
func Connect(url string, log logrus.FieldLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("pulse"),
		nats.DrainTimeout(10*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := logrus.Fields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			log.WithFields(fields).WithError(err).Error("nats: async error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats: disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats: reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats: connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// New creates a bridge over an established connection. auditLog may be nil.
func New(nc *nats.Conn, engine Ingester, subject string, auditLog *audit.Logger, log logrus.FieldLogger) *Bridge {
	if subject == "" {
		subject = DefaultSubject
	}
	b := &Bridge{
		nc:      nc,
		engine:  engine,
		subject: subject,
		audit:   auditLog,
		log:     log.WithField("component", "bridge"),
	}
	if nc != nil {
		b.pub = nc
	}
	return b
}

// Start subscribes to the ingestion subject.
func (b *Bridge) Start() error {
	if b.nc == nil {
		return fmt.Errorf("connection to nats is missing")
	}

	sub, err := b.nc.Subscribe(b.subject, b.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	b.sub = sub
	b.log.WithField("subject", b.subject).Info("Bridge subscribed")
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (b *Bridge) Stop() error {
	if b.sub == nil {
		return nil
	}
	if err := b.sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}

func (b *Bridge) handle(msg *nats.Msg) {
	data := b.process(context.Background(), msg.Subject, msg.Data)
	if msg.Reply == "" || b.pub == nil {
		return
	}
	if err := b.pub.Publish(msg.Reply, data); err != nil {
		b.log.WithError(err).WithField("reply", msg.Reply).Warn("Failed to publish reply")
	}
}

// process ingests one message body and returns the encoded reply.
func (b *Bridge) process(ctx context.Context, subject string, data []byte) []byte {
	merchantID := MerchantFromSubject(subject)
	ctx = stream.WithSource(ctx, source)
	log := b.log.WithFields(logrus.Fields{"subject": subject, "merchantId": merchantID})

	var (
		payload event.Payload
		err     error
	)
	if merchantID == "" {
		err = stream.ErrNoTenant
	} else if payload, err = event.ParsePayload(data); err == nil {
		_, err = b.engine.Ingest(ctx, merchantID, payload)
	}
	b.audit.LogIngest(ctx, merchantID, source, map[string]interface{}(payload), err)

	if err != nil {
		code := errorCode(err)
		if code != "missing_fields" {
			metrics.IngestRejected.WithLabelValues(code).Inc()
		}
		log.WithError(err).Info("Bridge rejected message")
		return encode(reply{Error: code})
	}

	log.Debug("Bridge ingested message")
	return encode(reply{OK: true})
}

// MerchantFromSubject returns the last token of a subject.
func MerchantFromSubject(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, event.ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, event.ErrInvalidPayload):
		return "invalid_json"
	case errors.Is(err, stream.ErrNoTenant):
		return "missing_merchant"
	default:
		return "internal"
	}
}

func encode(r reply) []byte {
	data, _ := json.Marshal(r)
	return data
}
