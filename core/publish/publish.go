// Package publish carries arrival estimates to external consumers.
package publish

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bustrack/core/factory"
)

// Arrival is the estimate for one journey.
type Arrival struct {
	JourneyID   string    `json:"journey_id"`
	VehicleName string    `json:"vehicle_name,omitempty"`
	Predicted   time.Time `json:"predicted"`
	InSeconds   float64   `json:"in_seconds"`
}

// Update is the set of estimates computed for one watch after one poll.
type Update struct {
	PollID   string    `json:"poll_id"`
	Watch    string    `json:"watch"`
	Line     string    `json:"line"`
	Towards  int64     `json:"towards"`
	Now      time.Time `json:"now"`
	Arrivals []Arrival `json:"arrivals"`
}

// Publisher sends updates to a transport.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
	Close() error
}

// Path returns the routing components of u: line, towards and watch.
func (u Update) Path() []string {
	return []string{u.Line, strconv.FormatInt(u.Towards, 10), u.Watch}
}

// Route joins prefix and the update path with sep, skipping empty parts.
func Route(prefix, sep string, u Update) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(prefix, sep); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, u.Path()...)
	return strings.Join(parts, sep)
}

// Nop discards updates.
type Nop struct{}

func (Nop) Publish(context.Context, Update) error { return nil }
func (Nop) Close() error                          { return nil }

// Multi publishes to every publisher and joins the errors.
type Multi struct {
	Publishers []Publisher
}

// NewMulti returns a Multi over ps.
func NewMulti(ps ...Publisher) *Multi { return &Multi{Publishers: ps} }

func (m *Multi) Publish(ctx context.Context, u Update) error {
	var errs []error
	for _, p := range m.Publishers {
		errs = append(errs, p.Publish(ctx, u))
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.Publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

var registry = factory.NewRegistry[Publisher]()

// Register adds a publisher factory identified by name.
func Register(name string, f factory.Factory[Publisher]) error {
	return registry.Register(name, f)
}

// New builds the configured publishers. No configuration yields Nop.
func New(cfgs []factory.ModuleConfig) (Publisher, error) {
	if len(cfgs) == 0 {
		return Nop{}, nil
	}
	ps := make([]Publisher, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := registry.Create(c)
		if err != nil {
			_ = NewMulti(ps...).Close()
			return nil, err
		}
		ps = append(ps, p)
	}
	if len(ps) == 1 {
		return ps[0], nil
	}
	return NewMulti(ps...), nil
}
