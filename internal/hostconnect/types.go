// Package hostconnect builds and decodes HostConnect protocol documents:
// the XML request/reply dialect spoken by the Tourplan reservation
// backend. The builder is a pure mapping from typed parameters to a
// protocol-valid document; the decoder projects replies into the typed
// model and normalizes the upstream's singleton-vs-list ambiguity.
package hostconnect

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DTDVersion is the document type declared on every request. It is part
// of the wire contract and must match the upstream's deployed DTD.
const DTDVersion = "hostConnect_5_05_000.dtd"

// DateFormat is the upstream's date encoding on the wire.
const DateFormat = "2006-01-02"

// Info codes select which data groups an OptionInfoRequest returns.
const (
	InfoGeneral       = "G"
	InfoStay          = "S"
	InfoAvailability  = "I"
	InfoRate          = "R"
	InfoDayTour       = "D"
	InfoFullDetail    = "GMFTD"
	InfoGeneralStay   = "GS"
	InfoSearchDefault = "GSI"
)

// QB flag values on NewBookingInfo: firm booking or non-binding quote.
const (
	QBBooking = "B"
	QBQuote   = "Q"
)

// Room and cabin type codes accepted by the upstream.
const (
	RoomSingle    = "SG"
	RoomDouble    = "DB"
	RoomTwin      = "TW"
	RoomTriple    = "TR"
	RoomQuadruple = "QU"
)

// Credentials is the opaque upstream identity, injected at construction
// and never mutated.
type Credentials struct {
	AgentID  string
	Password string
}

func (c Credentials) valid() bool {
	return c.AgentID != "" && c.Password != ""
}

// RoomConfig is one requested room or cabin occupancy.
type RoomConfig struct {
	Adults   int
	Children int
	Infants  int
	Type     string // RoomSingle etc.
	Quantity int
}

// SearchCriteria is the value object behind one availability search.
type SearchCriteria struct {
	ProductType string // upstream button name, e.g. "Group Tours"
	Destination string
	DateFrom    time.Time
	DateTo      time.Time
	Adults      int
	Children    int
	RoomConfigs []RoomConfig
	Info        string // data groups, defaults to InfoSearchDefault
}

// CanonicalKey returns a deterministic serialization of the criteria,
// used as the result-cache key.
func (c SearchCriteria) CanonicalKey() string {
	parts := []string{
		"type=" + c.ProductType,
		"dest=" + c.Destination,
		fmt.Sprintf("adults=%d", c.Adults),
		fmt.Sprintf("children=%d", c.Children),
	}
	if !c.DateFrom.IsZero() {
		parts = append(parts, "from="+c.DateFrom.Format(DateFormat))
	}
	if !c.DateTo.IsZero() {
		parts = append(parts, "to="+c.DateTo.Format(DateFormat))
	}
	for _, rc := range c.RoomConfigs {
		parts = append(parts, fmt.Sprintf("room=%s/%d/%d/%d/%d",
			rc.Type, rc.Adults, rc.Children, rc.Infants, rc.Quantity))
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// WeekdayMask is the upstream's seven-flag day-of-week restriction,
// indexed by time.Weekday (Sunday = 0).
type WeekdayMask [7]bool

// Allows reports whether the mask permits the given weekday.
func (m WeekdayMask) Allows(d time.Weekday) bool {
	return m[int(d)]
}

// DateRange is one contiguous rate/availability period of a product.
// PerDayAvailability holds one token per day starting at DateFrom:
// a positive value is the remaining sellable units, non-positive means
// the day is not bookable. A nil slice makes the whole range
// unavailable (fail-closed).
type DateRange struct {
	DateFrom           time.Time
	DateTo             time.Time
	Currency           string
	RateID             string
	RateName           string
	SingleRate         int // in cents
	DoubleRate         int
	TwinRate           int
	DaysOfWeek         *WeekdayMask // nil when the range has no restriction
	PerDayAvailability []string
}

// PerPersonRate is the advisory per-person price of the range in cents:
// twin share when present, otherwise the single rate.
func (r DateRange) PerPersonRate() int {
	if r.TwinRate > 0 {
		return r.TwinRate / 2
	}
	if r.DoubleRate > 0 {
		return r.DoubleRate / 2
	}
	return r.SingleRate
}

// ProductOption is the upstream's sellable unit. Code is the stable
// external identifier; everything else is read-only downstream.
type ProductOption struct {
	Code         string
	Name         string
	Description  string
	SupplierName string
	Locality     string
	Periods      int
	Amenities    []string
	Notes        map[string]string // keyed by note category, last wins
	DateRanges   []DateRange
}

// ServiceStatus is the decoded AddServiceReply.
type ServiceStatus struct {
	Status    string // OK, RQ, NO, ?? or any other upstream vocabulary
	BookingID string
	Ref       string
	TotalCost int
	Currency  string
}

// ServiceLine is one booked service inside an existing booking.
type ServiceLine struct {
	ServiceLineID string
	Opt           string
	OptName       string
	DateFrom      time.Time
	DateTo        time.Time
	Status        string
	Adults        int
	Children      int
}

// Booking is the decoded GetBookingReply.
type Booking struct {
	BookingID    string
	Ref          string
	Status       string
	Name         string
	Email        string
	TotalCost    int
	TotalPaid    int
	Currency     string
	ServiceLines []ServiceLine
}

// AgentInfo is the decoded AgentInfoReply.
type AgentInfo struct {
	Name     string
	Currency string
}
