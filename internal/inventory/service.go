// Package inventory resolves items and warehouses by human keys and
// reconciles stock to target quantities through inventory adjustments.
package inventory

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/api"
)

// DefaultReason is used when a caller gives no adjustment reason.
const DefaultReason = "Stock override via API"

// API is the subset of *api.Client the service needs.
type API interface {
	Get(ctx context.Context, endpoint string, query url.Values) (*api.Response, error)
	Post(ctx context.Context, endpoint string, body any) (*api.Response, error)
	Put(ctx context.Context, endpoint string, body any) (*api.Response, error)
}

// Recorder receives every completed reconciliation.
type Recorder interface {
	Record(ctx context.Context, res AdjustmentResult) error
}

// Service holds no entity state between calls.
type Service struct {
	api      API
	now      func() time.Time
	newRef   func() string
	recorder Recorder
	log      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for adjustment dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a journal.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithReferenceFunc overrides reference number generation.
func WithReferenceFunc(f func() string) Option {
	return func(s *Service) { s.newRef = f }
}

// NewService creates a service over client.
func NewService(client API, opts ...Option) *Service {
	s := &Service{
		api:    client,
		now:    time.Now,
		newRef: newReference,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newReference tags each submission so it can be traced upstream.
func newReference() string {
	return "zinv-" + strings.ToUpper(uuid.NewString()[:8])
}

func itemPath(id ID) string {
	return "items/" + url.PathEscape(string(id))
}

func warehousePath(id ID) string {
	return "warehouses/" + url.PathEscape(string(id))
}
