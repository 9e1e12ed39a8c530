// Package tours is the caller-facing surface of the integration layer.
// The storefront and admin collaborators use these entry points and
// nothing below them; all CMS, content and payment concerns are
// strictly downstream consumers of the returned data.
package tours

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/thisisafrica/hostlink/internal/availability"
	"github.com/thisisafrica/hostlink/internal/booking"
	"github.com/thisisafrica/hostlink/internal/cache"
	"github.com/thisisafrica/hostlink/internal/config"
	"github.com/thisisafrica/hostlink/internal/hostconnect"
	"github.com/thisisafrica/hostlink/internal/log"
	"github.com/thisisafrica/hostlink/internal/metrics"
	"github.com/thisisafrica/hostlink/internal/transport"
)

// Service wires builder, executor, decoder, calendar engine,
// orchestrator and result cache behind the three-operation contract
// (search, calendar, booking) plus discovery and booking management.
type Service struct {
	cfg     config.Config
	builder *hostconnect.Builder
	exec    *transport.Executor
	orch    *booking.Orchestrator
	store   cache.Store
	logger  zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore replaces the default in-memory result cache, e.g. with the
// Redis-backed one.
func WithStore(s cache.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// New validates cfg and wires a Service.
func New(cfg config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exec, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}
	builder := hostconnect.NewBuilder(hostconnect.Credentials{
		AgentID:  cfg.AgentID,
		Password: cfg.Password,
	})
	svc := &Service{
		cfg:     cfg,
		builder: builder,
		exec:    exec,
		orch:    booking.New(builder, exec, cfg),
		store:   cache.NewMemory(),
		logger:  log.WithComponent("tours"),
	}
	if cfg.RedisAddr != "" {
		store, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log.WithComponent("cache"))
		if err != nil {
			return nil, err
		}
		svc.store = store
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.logger.Info().
		Str("endpoint", cfg.Endpoint).
		Int("max_in_flight", cfg.MaxInFlight).
		Bool("proxy", cfg.ProxyURL != "").
		Bool("redis", cfg.RedisAddr != "").
		Msg("hostconnect integration ready")
	return svc, nil
}

// Ping checks upstream connectivity and credentials.
func (s *Service) Ping(ctx context.Context) error {
	doc, err := s.builder.Ping()
	if err != nil {
		return err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{Operation: "ping"})
	if err != nil {
		return err
	}
	_, err = hostconnect.Decode(raw.Body, hostconnect.ReplyPing)
	return err
}

// AgentInfo fetches the agent's name and trading currency, doubling as
// a credentials check.
func (s *Service) AgentInfo(ctx context.Context) (*hostconnect.AgentInfo, error) {
	doc, err := s.builder.AgentInfo()
	if err != nil {
		return nil, err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{Operation: "agent_info"})
	if err != nil {
		return nil, err
	}
	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyAgentInfo)
	if err != nil {
		return nil, err
	}
	return decoded.Agent, nil
}

// SearchAvailability runs one availability search, memoized under the
// criteria's canonical key for the short search TTL.
func (s *Service) SearchAvailability(ctx context.Context, criteria hostconnect.SearchCriteria) ([]hostconnect.ProductOption, error) {
	key := "search:" + criteria.CanonicalKey()
	return cachedRead(s, key, s.cfg.SearchTTL, "search", func() ([]hostconnect.ProductOption, error) {
		return s.searchUncached(ctx, criteria)
	})
}

// GetCalendar fetches the product's date ranges and derives the
// day-by-day bookable calendar for the window. The calendar itself is
// never cached: it is recomputed per query from the (cached) product.
func (s *Service) GetCalendar(ctx context.Context, productCode string, window availability.Window) ([]availability.CalendarDay, error) {
	product, err := s.productDetail(ctx, productCode)
	if err != nil {
		return nil, err
	}
	return availability.ComputeCalendar(product, window), nil
}

// SubmitBooking drives one booking attempt through the orchestrator.
// Callers must de-duplicate their own retries; this layer will not.
func (s *Service) SubmitBooking(ctx context.Context, req booking.Request) (booking.Outcome, error) {
	return s.orch.Submit(ctx, req)
}

// GetBooking retrieves an existing booking by upstream id or reference.
func (s *Service) GetBooking(ctx context.Context, bookingID, ref string) (*hostconnect.Booking, error) {
	if bookingID != "" {
		ctx = log.ContextWithBookingID(ctx, bookingID)
	}
	doc, err := s.builder.GetBooking(bookingID, ref)
	if err != nil {
		return nil, err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{Operation: "get_booking"})
	if err != nil {
		return nil, err
	}
	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyGetBooking)
	if err != nil {
		return nil, err
	}
	return decoded.Booking, nil
}

// AmendBooking adds a service line to an existing booking. Like
// SubmitBooking this is a single unretried mutation.
func (s *Service) AmendBooking(ctx context.Context, bookingID string, p hostconnect.AddServiceParams) (*hostconnect.ServiceStatus, error) {
	ctx = log.ContextWithBookingID(ctx, bookingID)
	p.BookingID = bookingID
	p.NewBooking = nil
	doc, err := s.builder.AddService(p)
	if err != nil {
		return nil, err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{
		Operation: "add_service",
		Timeout:   s.cfg.BookingTimeout,
		Retries:   1,
	})
	if err != nil {
		return nil, err
	}
	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyAddService)
	if err != nil {
		return nil, err
	}
	return decoded.Service, nil
}

// ConvertQuote turns a quote into a firm booking.
func (s *Service) ConvertQuote(ctx context.Context, bookingID string, notifySupplier bool) error {
	ctx = log.ContextWithBookingID(ctx, bookingID)
	doc, err := s.builder.QuoteToBook(bookingID, notifySupplier)
	if err != nil {
		return err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{
		Operation: "quote_to_book",
		Timeout:   s.cfg.BookingTimeout,
		Retries:   1,
	})
	if err != nil {
		return err
	}
	_, err = hostconnect.Decode(raw.Body, hostconnect.ReplyAddService)
	return err
}

// CancelBooking cancels the services under a booking reference.
func (s *Service) CancelBooking(ctx context.Context, ref string) error {
	doc, err := s.builder.CancelServices(ref)
	if err != nil {
		return err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{
		Operation: "cancel_services",
		Timeout:   s.cfg.BookingTimeout,
		Retries:   1,
	})
	if err != nil {
		return err
	}
	_, err = hostconnect.Decode(raw.Body, hostconnect.ReplyAddService)
	return err
}

// ListDestinations returns the distinct localities selling the given
// product type, cached under the long static-data TTL.
func (s *Service) ListDestinations(ctx context.Context, productType string) ([]string, error) {
	key := "destinations:" + productType
	return cachedRead(s, key, s.cfg.StaticTTL, "destinations", func() ([]string, error) {
		options, err := s.searchUncached(ctx, hostconnect.SearchCriteria{
			ProductType: productType,
			Info:        hostconnect.InfoGeneral,
		})
		if err != nil {
			return nil, err
		}
		return distinctLocalities(options), nil
	})
}

// productDetail fetches full detail for one product, cached for the
// search TTL so repeated calendar queries do not hammer the upstream.
func (s *Service) productDetail(ctx context.Context, code string) (hostconnect.ProductOption, error) {
	key := "detail:" + code
	options, err := cachedRead(s, key, s.cfg.SearchTTL, "detail", func() ([]hostconnect.ProductOption, error) {
		doc, err := s.builder.OptionDetail(code, hostconnect.InfoFullDetail)
		if err != nil {
			return nil, err
		}
		raw, err := s.exec.Execute(ctx, doc, transport.Options{
			Operation: "option_info",
			Timeout:   s.cfg.DetailTimeout,
		})
		if err != nil {
			return nil, err
		}
		decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyOptionInfo)
		if err != nil {
			return nil, err
		}
		return decoded.Options, nil
	})
	if err != nil {
		return hostconnect.ProductOption{}, err
	}
	if len(options) == 0 {
		return hostconnect.ProductOption{}, &hostconnect.BusinessError{
			Code: hostconnect.CodeOptionNotFound,
			Text: "option not found: " + code,
		}
	}
	return options[0], nil
}

func (s *Service) searchUncached(ctx context.Context, criteria hostconnect.SearchCriteria) ([]hostconnect.ProductOption, error) {
	doc, err := s.builder.Search(criteria)
	if err != nil {
		return nil, err
	}
	raw, err := s.exec.Execute(ctx, doc, transport.Options{Operation: "option_info"})
	if err != nil {
		return nil, err
	}
	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyOptionInfo)
	if err != nil {
		return nil, err
	}
	return decoded.Options, nil
}

// cachedRead is the cache-aside wrapper for idempotent read operations.
func cachedRead[T any](s *Service, key string, ttl time.Duration, op string, producer func() (T, error)) (T, error) {
	produced := false
	out, err := cache.GetOrCompute(s.store, key, ttl, func() (T, error) {
		produced = true
		return producer()
	})
	if err != nil {
		return out, err
	}
	if produced {
		metrics.CacheMissesTotal.WithLabelValues(op).Inc()
	} else {
		metrics.CacheHitsTotal.WithLabelValues(op).Inc()
	}
	return out, err
}

func distinctLocalities(options []hostconnect.ProductOption) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, opt := range options {
		if opt.Locality == "" {
			continue
		}
		if _, ok := seen[opt.Locality]; ok {
			continue
		}
		seen[opt.Locality] = struct{}{}
		out = append(out, opt.Locality)
	}
	sort.Strings(out)
	return out
}
