package booking

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisafrica/hostlink/internal/config"
	"github.com/thisisafrica/hostlink/internal/hostconnect"
	"github.com/thisisafrica/hostlink/internal/transport"
)

const optionFoundReply = `<Reply><OptionInfoReply><Options><Option>
  <Opt>BBKCRCHO018TIACP2</Opt>
  <OptGeneral><Description>Chobe Princess 2 Night Cruise</Description></OptGeneral>
</Option></Options></OptionInfoReply></Reply>`

const optionNotFoundReply = `<Reply><ErrorReply><Error>1052 SCN System.Option not found</Error></ErrorReply></Reply>`

// upstream fakes HostConnect: OptionInfoRequest documents get the
// configured search reply, AddServiceRequest documents the configured
// service reply.
type upstream struct {
	searchReply  string
	serviceReply string
	serviceCode  int

	searchCalls  atomic.Int32
	serviceCalls atomic.Int32
}

func (u *upstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(body), "<OptionInfoRequest>"):
			u.searchCalls.Add(1)
			w.Write([]byte(u.searchReply))
		case strings.Contains(string(body), "<AddServiceRequest>"):
			u.serviceCalls.Add(1)
			if u.serviceCode != 0 {
				w.WriteHeader(u.serviceCode)
				return
			}
			w.Write([]byte(u.serviceReply))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func serviceReply(status, bookingID, ref string) string {
	return `<Reply><AddServiceReply>
      <Status>` + status + `</Status>
      <BookingId>` + bookingID + `</BookingId>
      <Ref>` + ref + `</Ref>
      <TotalCost>250000</TotalCost>
      <Currency>AUD</Currency>
    </AddServiceReply></Reply>`
}

func newOrchestrator(t *testing.T, endpoint string) *Orchestrator {
	t.Helper()
	cfg := config.Config{
		Endpoint:       endpoint,
		AgentID:        "SAMAGT",
		Password:       "S@MAgt01",
		Timeout:        2 * time.Second,
		DetailTimeout:  2 * time.Second,
		BookingTimeout: 2 * time.Second,
		Retries:        3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     5 * time.Millisecond,
		MaxInFlight:    4,
		BreakerTrips:   100,
		BreakerReset:   time.Second,
	}
	exec, err := transport.New(cfg)
	require.NoError(t, err)
	builder := hostconnect.NewBuilder(hostconnect.Credentials{AgentID: cfg.AgentID, Password: cfg.Password})
	return New(builder, exec, cfg)
}

func testRequest() Request {
	return Request{
		ProductCode: "BBKCRCHO018TIACP2",
		DateFrom:    time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		Adults:      2,
		LeadTraveler: LeadTraveler{
			Name:  "Jane Traveler",
			Email: "jane@example.com",
		},
	}
}

func TestSubmit_ConfirmedOnOKWithReference(t *testing.T) {
	u := &upstream{searchReply: optionFoundReply, serviceReply: serviceReply("OK", "240001", "TAWB100445")}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, out.Status)
	assert.Equal(t, "TAWB100445", out.Reference)
	assert.Equal(t, "240001", out.BookingID)
	assert.Equal(t, "OK", out.RawStatusCode)
	assert.Equal(t, int32(1), u.serviceCalls.Load())
}

func TestSubmit_QueuedOnRQWithReference(t *testing.T) {
	u := &upstream{searchReply: optionFoundReply, serviceReply: serviceReply("RQ", "240002", "TAWB100446")}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, out.Status)
	assert.Equal(t, "TAWB100446", out.Reference)
}

func TestSubmit_DeclinedOnNO(t *testing.T) {
	u := &upstream{searchReply: optionFoundReply, serviceReply: serviceReply("NO", "", "")}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, out.Status)
	assert.Equal(t, ReasonUpstreamNo, out.DeclineReason)
}

func TestSubmit_UnknownWithoutReference(t *testing.T) {
	u := &upstream{searchReply: optionFoundReply, serviceReply: serviceReply("OK", "240003", "")}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, out.Status)
	assert.Equal(t, "240003", out.BookingID)
}

func TestSubmit_ProductNotFoundDeclinesWithoutSubmission(t *testing.T) {
	u := &upstream{searchReply: optionNotFoundReply}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, out.Status)
	assert.Equal(t, ReasonProductNotFound, out.DeclineReason)
	assert.Equal(t, int32(0), u.serviceCalls.Load(), "no service line may be submitted for a missing product")
}

func TestSubmit_EmptySearchDeclinesWithoutSubmission(t *testing.T) {
	u := &upstream{searchReply: `<Reply><OptionInfoReply><Options></Options></OptionInfoReply></Reply>`}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	out, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, out.Status)
	assert.Equal(t, ReasonProductNotFound, out.DeclineReason)
	assert.Equal(t, int32(0), u.serviceCalls.Load())
}

func TestSubmit_ServiceTransportFailureNeverRetried(t *testing.T) {
	u := &upstream{searchReply: optionFoundReply, serviceCode: http.StatusInternalServerError}
	srv := httptest.NewServer(u.handler())
	defer srv.Close()

	_, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepServiceSubmitted, se.Step)
	assert.ErrorIs(t, err, transport.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), u.serviceCalls.Load(), "AddService must be posted exactly once")
}

func TestSubmit_SearchOutageIsStepError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newOrchestrator(t, srv.URL).Submit(context.Background(), testRequest())
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepSearching, se.Step)
}

func TestMapServiceStatus(t *testing.T) {
	cases := []struct {
		name   string
		status hostconnect.ServiceStatus
		want   Status
	}{
		{"ok with ref", hostconnect.ServiceStatus{Status: "OK", Ref: "TAWB100445"}, StatusConfirmed},
		{"ok without ref", hostconnect.ServiceStatus{Status: "OK"}, StatusUnknown},
		{"rq with ref", hostconnect.ServiceStatus{Status: "RQ", Ref: "TAWB100445"}, StatusQueued},
		{"rq without ref", hostconnect.ServiceStatus{Status: "RQ"}, StatusUnknown},
		{"unspecified with ref", hostconnect.ServiceStatus{Status: "??", Ref: "TAWB100445"}, StatusQueued},
		{"no", hostconnect.ServiceStatus{Status: "NO"}, StatusDeclined},
		{"novel code", hostconnect.ServiceStatus{Status: "XX", Ref: "TAWB100445"}, StatusUnknown},
		{"malformed ref", hostconnect.ServiceStatus{Status: "OK", Ref: "not-a-ref"}, StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mapServiceStatus(tc.status).Status)
		})
	}
}
