// Package booking drives one reservation attempt through its state
// machine: Initiated, Searching, RateSelected, ServiceSubmitted and a
// terminal Confirmed, Queued, Declined or Unknown. It performs exactly
// one network mutation per invocation — the AddService call — and never
// retries it: a duplicate booking is worse than a failed one.
package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/thisisafrica/hostlink/internal/config"
	"github.com/thisisafrica/hostlink/internal/hostconnect"
	"github.com/thisisafrica/hostlink/internal/log"
	"github.com/thisisafrica/hostlink/internal/metrics"
	"github.com/thisisafrica/hostlink/internal/transport"
)

// Step names the state-machine step at which an error occurred, so
// callers can tell "product gone" from "upstream outage" from
// "submission ambiguous".
type Step string

const (
	StepInitiated        Step = "Initiated"
	StepSearching        Step = "Searching"
	StepRateSelected     Step = "RateSelected"
	StepServiceSubmitted Step = "ServiceSubmitted"
)

// Status is the normalized terminal outcome of one booking attempt.
type Status string

const (
	StatusConfirmed Status = "Confirmed"
	StatusQueued    Status = "Queued"
	StatusDeclined  Status = "Declined"
	StatusUnknown   Status = "Unknown"
)

// Decline reasons surfaced on Outcome.
const (
	ReasonProductNotFound = "ProductNotFound"
	ReasonUpstreamNo      = "UpstreamDeclined"
)

// Upstream status vocabulary on AddServiceReply.
const (
	upstreamOK          = "OK"
	upstreamRequested   = "RQ"
	upstreamNo          = "NO"
	upstreamUnspecified = "??"
)

// referencePattern matches the upstream's booking reference format,
// e.g. TAWB100445: an alphabetic prefix followed by a serial number.
var referencePattern = regexp.MustCompile(`^[A-Z]{2,6}[0-9]{4,}$`)

// Request is the caller-owned input of one booking attempt.
type Request struct {
	ProductCode  string
	RateID       string
	DateFrom     time.Time
	DateTo       time.Time
	Adults       int
	Children     int
	Infants      int
	RoomConfigs  []hostconnect.RoomConfig
	LeadTraveler LeadTraveler
	QuoteOnly    bool
	Note         string
}

// LeadTraveler identifies the booking's contact person upstream.
type LeadTraveler struct {
	Name   string
	Email  string
	Mobile string
}

// Outcome is the orchestrator's sole output, immutable once returned.
type Outcome struct {
	Status        Status
	Reference     string
	BookingID     string
	RawStatusCode string
	AttemptsMade  int
	DeclineReason string
}

// StepError annotates a transport or decode failure with the step at
// which it happened.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("booking: step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Orchestrator sequences builder, executor and decoder for the
// search, select-rate, create-service flow.
type Orchestrator struct {
	builder *hostconnect.Builder
	exec    *transport.Executor
	cfg     config.Config
}

// New wires an Orchestrator from its collaborators.
func New(builder *hostconnect.Builder, exec *transport.Executor, cfg config.Config) *Orchestrator {
	return &Orchestrator{builder: builder, exec: exec, cfg: cfg}
}

// Submit runs one booking attempt to a terminal state. The returned
// error is always a *StepError on failure; a nil error means the
// outcome is one of the four terminal statuses, Unknown included —
// an ambiguous submission is surfaced, never silently retried.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Outcome, error) {
	logger := log.WithComponentFromContext(ctx, "booking")
	logger.Info().
		Str("product", req.ProductCode).
		Str("date_from", req.DateFrom.Format(hostconnect.DateFormat)).
		Bool("quote_only", req.QuoteOnly).
		Msg("booking attempt initiated")

	// Searching: confirm the product and rate are still listed.
	options, err := o.search(ctx, req.ProductCode)
	if err != nil {
		var be *hostconnect.BusinessError
		if errors.As(err, &be) && be.Code == hostconnect.CodeOptionNotFound {
			logger.Info().Str("product", req.ProductCode).Msg("product not listed upstream, declining without submission")
			o.count(StatusDeclined)
			return Outcome{Status: StatusDeclined, DeclineReason: ReasonProductNotFound}, nil
		}
		return Outcome{}, &StepError{Step: StepSearching, Err: err}
	}
	if len(options) == 0 {
		logger.Info().Str("product", req.ProductCode).Msg("search returned no options, declining without submission")
		o.count(StatusDeclined)
		return Outcome{Status: StatusDeclined, DeclineReason: ReasonProductNotFound}, nil
	}

	// RateSelected: the requested rate, or the upstream default.
	rateID := req.RateID
	if rateID == "" {
		rateID = "Default"
	}

	// ServiceSubmitted: the single network mutation of this invocation.
	doc, err := o.builder.AddService(hostconnect.AddServiceParams{
		NewBooking: &hostconnect.NewBookingParams{
			Name:      req.LeadTraveler.Name,
			QuoteOnly: req.QuoteOnly,
			Email:     req.LeadTraveler.Email,
			Mobile:    req.LeadTraveler.Mobile,
		},
		Opt:         req.ProductCode,
		RateID:      rateID,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		SCUQty:      1,
		Adults:      req.Adults,
		Children:    req.Children,
		Infants:     req.Infants,
		RoomConfigs: req.RoomConfigs,
		Note:        req.Note,
	})
	if err != nil {
		return Outcome{}, &StepError{Step: StepServiceSubmitted, Err: err}
	}

	raw, err := o.exec.Execute(ctx, doc, transport.Options{
		Operation: "add_service",
		Timeout:   o.cfg.BookingTimeout,
		Retries:   1, // never retried: duplicate-booking risk
	})
	if err != nil {
		return Outcome{}, &StepError{Step: StepServiceSubmitted, Err: err}
	}

	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyAddService)
	if err != nil {
		var be *hostconnect.BusinessError
		if errors.As(err, &be) {
			logger.Info().Str("code", be.Code).Str("text", be.Text).Msg("upstream rejected service line")
			o.count(StatusDeclined)
			return Outcome{
				Status:        StatusDeclined,
				RawStatusCode: be.Code,
				AttemptsMade:  raw.Attempts,
				DeclineReason: ReasonUpstreamNo,
			}, nil
		}
		return Outcome{}, &StepError{Step: StepServiceSubmitted, Err: err}
	}

	outcome := mapServiceStatus(*decoded.Service)
	outcome.AttemptsMade = raw.Attempts
	logger.Info().
		Str("status", string(outcome.Status)).
		Str("raw_status", outcome.RawStatusCode).
		Str("reference", outcome.Reference).
		Msg("booking attempt finished")
	o.count(outcome.Status)
	return outcome, nil
}

// search issues the OptionInfo lookup for the product under the
// shorter detail timeout.
func (o *Orchestrator) search(ctx context.Context, code string) ([]hostconnect.ProductOption, error) {
	doc, err := o.builder.OptionDetail(code, hostconnect.InfoFullDetail)
	if err != nil {
		return nil, err
	}
	raw, err := o.exec.Execute(ctx, doc, transport.Options{
		Operation: "option_info",
		Timeout:   o.cfg.DetailTimeout,
	})
	if err != nil {
		return nil, err
	}
	decoded, err := hostconnect.Decode(raw.Body, hostconnect.ReplyOptionInfo)
	if err != nil {
		return nil, err
	}
	return decoded.Options, nil
}

// mapServiceStatus folds the upstream's status vocabulary into the
// normalized outcome. OK with a well-formed reference is machine
// confirmation; RQ and the unspecified two-character code with a
// reference mean manual queueing; anything else without a reference is
// ambiguous and surfaced as Unknown.
func mapServiceStatus(s hostconnect.ServiceStatus) Outcome {
	out := Outcome{
		RawStatusCode: s.Status,
		Reference:     s.Ref,
		BookingID:     s.BookingID,
	}
	hasRef := referencePattern.MatchString(s.Ref)
	switch s.Status {
	case upstreamNo:
		out.Status = StatusDeclined
		out.DeclineReason = ReasonUpstreamNo
	case upstreamOK:
		if hasRef {
			out.Status = StatusConfirmed
		} else {
			out.Status = StatusUnknown
		}
	case upstreamRequested, upstreamUnspecified:
		if hasRef {
			out.Status = StatusQueued
		} else {
			out.Status = StatusUnknown
		}
	default:
		out.Status = StatusUnknown
	}
	return out
}

func (o *Orchestrator) count(s Status) {
	metrics.BookingsTotal.WithLabelValues(string(s)).Inc()
}
