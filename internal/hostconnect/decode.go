package hostconnect

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReplyKind names the top-level reply node a caller expects.
type ReplyKind string

const (
	ReplyPing       ReplyKind = "PingReply"
	ReplyAgentInfo  ReplyKind = "AgentInfoReply"
	ReplyOptionInfo ReplyKind = "OptionInfoReply"
	ReplyAddService ReplyKind = "AddServiceReply"
	ReplyGetBooking ReplyKind = "GetBookingReply"
)

// DecodedReply holds the projection of one reply document. Exactly one
// field matching the requested kind is populated.
type DecodedReply struct {
	Kind    ReplyKind
	Options []ProductOption
	Service *ServiceStatus
	Booking *Booking
	Agent   *AgentInfo
}

// Reply wire structs. The upstream collapses repeated elements to a
// single occurrence; fields that may repeat are declared as slices so
// encoding/xml always yields a sequence.

type replyEnvelope struct {
	XMLName    xml.Name             `xml:"Reply"`
	Error      *errorReply          `xml:"ErrorReply"`
	Ping       *struct{}            `xml:"PingReply"`
	AgentInfo  *agentInfoReply      `xml:"AgentInfoReply"`
	OptionInfo *optionInfoReply     `xml:"OptionInfoReply"`
	AddService *addServiceReply     `xml:"AddServiceReply"`
	GetBooking *getBookingReply     `xml:"GetBookingReply"`
}

type errorReply struct {
	Error string `xml:"Error"`
}

type agentInfoReply struct {
	Name     string `xml:"Name"`
	Currency string `xml:"Currency"`
}

type optionInfoReply struct {
	Options []wireOption `xml:"Options>Option"`
	// Some upstream versions emit Option directly under the reply.
	BareOptions []wireOption `xml:"Option"`
}

type wireOption struct {
	Opt        string `xml:"Opt"`
	OptGeneral struct {
		Description         string `xml:"Description"`
		Comment             string `xml:"Comment"`
		SupplierName        string `xml:"SupplierName"`
		LocalityDescription string `xml:"LocalityDescription"`
		Periods             string `xml:"Periods"`
	} `xml:"OptGeneral"`
	Amenities  []string         `xml:"Amenities>Amenity"`
	Notes      []wireOptionNote `xml:"OptionNotes>OptionNote"`
	DateRanges []wireDateRange  `xml:"OptDateRanges>OptDateRange"`
}

type wireOptionNote struct {
	Category string `xml:"NoteCategory"`
	Text     string `xml:"NoteText"`
}

type wireDateRange struct {
	DateFrom string        `xml:"DateFrom"`
	DateTo   string        `xml:"DateTo"`
	Currency string        `xml:"Currency"`
	RateSets []wireRateSet `xml:"RateSets>RateSet"`
}

type wireRateSet struct {
	RateID     string          `xml:"RateId"`
	RateName   string          `xml:"RateName"`
	OptAvail   string          `xml:"OptAvail"`
	DaysOfWeek *wireDaysOfWeek `xml:"AppliesDaysOfWeek"`
	OptRate    struct {
		RoomRates struct {
			SingleRate string `xml:"SingleRate"`
			DoubleRate string `xml:"DoubleRate"`
			TwinRate   string `xml:"TwinRate"`
		} `xml:"RoomRates"`
	} `xml:"OptRate"`
}

type wireDaysOfWeek struct {
	Sun string `xml:"Sun,attr"`
	Mon string `xml:"Mon,attr"`
	Tue string `xml:"Tue,attr"`
	Wed string `xml:"Wed,attr"`
	Thu string `xml:"Thu,attr"`
	Fri string `xml:"Fri,attr"`
	Sat string `xml:"Sat,attr"`
}

type addServiceReply struct {
	Status    string `xml:"Status"`
	BookingID string `xml:"BookingId"`
	Ref       string `xml:"Ref"`
	TotalCost string `xml:"TotalCost"`
	Currency  string `xml:"Currency"`
}

type getBookingReply struct {
	BookingID    string            `xml:"BookingId"`
	Ref          string            `xml:"Ref"`
	Status       string            `xml:"Status"`
	Name         string            `xml:"Name"`
	Email        string            `xml:"Email"`
	TotalCost    string            `xml:"TotalCost"`
	TotalPaid    string            `xml:"TotalPaid"`
	Currency     string            `xml:"Currency"`
	ServiceLines []wireServiceLine `xml:"ServiceLines>ServiceLine"`
}

type wireServiceLine struct {
	ServiceLineID string `xml:"ServiceLineId"`
	Opt           string `xml:"Opt"`
	OptName       string `xml:"OptName"`
	DateFrom      string `xml:"DateFrom"`
	DateTo        string `xml:"DateTo"`
	Status        string `xml:"Status"`
	Adults        string `xml:"Adults"`
	Children      string `xml:"Children"`
}

// Decode parses a raw reply document. A well-formed ErrorReply becomes
// a *BusinessError; an absent expected node becomes a *ShapeError
// wrapping ErrReplyShapeMismatch.
func Decode(raw string, expected ReplyKind) (*DecodedReply, error) {
	var env replyEnvelope
	if err := xml.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &ShapeError{Expected: expected, Raw: raw}
	}
	if env.Error != nil {
		code, text := splitErrorText(env.Error.Error)
		return nil, &BusinessError{Code: code, Text: text}
	}

	out := &DecodedReply{Kind: expected}
	switch expected {
	case ReplyPing:
		if env.Ping == nil {
			return nil, &ShapeError{Expected: expected, Raw: raw}
		}
	case ReplyAgentInfo:
		if env.AgentInfo == nil {
			return nil, &ShapeError{Expected: expected, Raw: raw}
		}
		out.Agent = &AgentInfo{Name: env.AgentInfo.Name, Currency: env.AgentInfo.Currency}
	case ReplyOptionInfo:
		if env.OptionInfo == nil {
			return nil, &ShapeError{Expected: expected, Raw: raw}
		}
		opts := env.OptionInfo.Options
		if len(opts) == 0 {
			opts = env.OptionInfo.BareOptions
		}
		out.Options = make([]ProductOption, 0, len(opts))
		for _, wo := range opts {
			out.Options = append(out.Options, projectOption(wo))
		}
	case ReplyAddService:
		if env.AddService == nil {
			return nil, &ShapeError{Expected: expected, Raw: raw}
		}
		out.Service = &ServiceStatus{
			Status:    strings.TrimSpace(env.AddService.Status),
			BookingID: env.AddService.BookingID,
			Ref:       strings.TrimSpace(env.AddService.Ref),
			TotalCost: atoi(env.AddService.TotalCost),
			Currency:  env.AddService.Currency,
		}
	case ReplyGetBooking:
		if env.GetBooking == nil {
			return nil, &ShapeError{Expected: expected, Raw: raw}
		}
		out.Booking = projectBooking(*env.GetBooking)
	default:
		return nil, fmt.Errorf("hostconnect: unknown reply kind %q", expected)
	}
	return out, nil
}

func projectOption(wo wireOption) ProductOption {
	p := ProductOption{
		Code:         wo.Opt,
		Name:         wo.OptGeneral.Description,
		Description:  wo.OptGeneral.Comment,
		SupplierName: wo.OptGeneral.SupplierName,
		Locality:     wo.OptGeneral.LocalityDescription,
		Periods:      atoi(wo.OptGeneral.Periods),
		Amenities:    wo.Amenities,
	}
	if len(wo.Notes) > 0 {
		// Duplicate categories: last occurrence wins.
		p.Notes = make(map[string]string, len(wo.Notes))
		for _, n := range wo.Notes {
			p.Notes[n.Category] = n.Text
		}
	}
	for _, dr := range wo.DateRanges {
		from, okFrom := parseDate(dr.DateFrom)
		to, okTo := parseDate(dr.DateTo)
		if !okFrom || !okTo {
			continue
		}
		for _, rs := range dr.RateSets {
			rng := DateRange{
				DateFrom:   from,
				DateTo:     to,
				Currency:   dr.Currency,
				RateID:     rs.RateID,
				RateName:   rs.RateName,
				SingleRate: atoi(rs.OptRate.RoomRates.SingleRate),
				DoubleRate: atoi(rs.OptRate.RoomRates.DoubleRate),
				TwinRate:   atoi(rs.OptRate.RoomRates.TwinRate),
				DaysOfWeek: projectMask(rs.DaysOfWeek),
			}
			if avail := strings.TrimSpace(rs.OptAvail); avail != "" {
				rng.PerDayAvailability = strings.Fields(avail)
			}
			p.DateRanges = append(p.DateRanges, rng)
		}
	}
	return p
}

func projectMask(w *wireDaysOfWeek) *WeekdayMask {
	if w == nil {
		return nil
	}
	mask := WeekdayMask{
		w.Sun == "Y", w.Mon == "Y", w.Tue == "Y", w.Wed == "Y",
		w.Thu == "Y", w.Fri == "Y", w.Sat == "Y",
	}
	return &mask
}

func projectBooking(r getBookingReply) *Booking {
	b := &Booking{
		BookingID: r.BookingID,
		Ref:       r.Ref,
		Status:    r.Status,
		Name:      r.Name,
		Email:     r.Email,
		TotalCost: atoi(r.TotalCost),
		TotalPaid: atoi(r.TotalPaid),
		Currency:  r.Currency,
	}
	for _, l := range r.ServiceLines {
		from, _ := parseDate(l.DateFrom)
		to, _ := parseDate(l.DateTo)
		b.ServiceLines = append(b.ServiceLines, ServiceLine{
			ServiceLineID: l.ServiceLineID,
			Opt:           l.Opt,
			OptName:       l.OptName,
			DateFrom:      from,
			DateTo:        to,
			Status:        l.Status,
			Adults:        atoi(l.Adults),
			Children:      atoi(l.Children),
		})
	}
	return b
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// atoi tolerates the upstream's habit of emitting numbers with blanks
// or decimal points; anything unparseable decodes to zero.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
