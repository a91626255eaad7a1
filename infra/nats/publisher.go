// Package nats publishes arrival estimates on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kilianp07/bustrack/core/factory"
	coremon "github.com/kilianp07/bustrack/core/monitoring"
	"github.com/kilianp07/bustrack/core/publish"
	"github.com/kilianp07/bustrack/infra/logger"
)

// Config locates the NATS server.
type Config struct {
	URL           string        `json:"url"`
	SubjectPrefix string        `json:"subject_prefix"`
	Name          string        `json:"name"`
	Token         string        `json:"token"`
	LogSubjects   bool          `json:"log_subjects"`
	FlushTimeout  time.Duration `json:"flush_timeout"`
}

type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
	Close()
}

var connect = func(url string, opts ...nats.Option) (conn, error) {
	return nats.Connect(url, opts...)
}

// Publisher implements publish.Publisher on NATS. Each update goes to
// {subject_prefix}.{line}.{towards}.{watch}.
type Publisher struct {
	nc  conn
	cfg Config
	log logger.Logger
}

func init() {
	_ = publish.Register("nats", func(conf map[string]any) (publish.Publisher, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPublisher(c)
	})
}

// NewPublisher connects to the server.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "bustrack"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "bustrack"
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 2 * time.Second
	}
	log := logger.New("nats_publisher")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warnf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Infof("nats closed")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return &Publisher{nc: nc, cfg: cfg, log: log}, nil
}

// Subject returns the subject an update is published on.
func (p *Publisher) Subject(u publish.Update) string {
	parts := make([]string, 0, 4)
	for _, s := range strings.Split(p.cfg.SubjectPrefix, ".") {
		if s != "" {
			parts = append(parts, subjectToken(s))
		}
	}
	for _, s := range u.Path() {
		parts = append(parts, subjectToken(s))
	}
	return strings.Join(parts, ".")
}

// Publish sends the update as JSON and flushes so delivery errors surface.
func (p *Publisher) Publish(ctx context.Context, u publish.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	subject := p.Subject(u)
	if p.cfg.LogSubjects {
		p.log.Infof("nats publish subject=%s", subject)
	}
	err = p.nc.Publish(subject, b)
	if err == nil {
		timeout := p.cfg.FlushTimeout
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
			timeout = time.Until(dl)
		}
		err = p.nc.FlushTimeout(timeout)
	}
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "nats", "watch": u.Watch, "subject": subject})
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.nc.Close()
	return err
}

// subjectToken makes s a single NATS token: no spaces, wildcards or dots.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
