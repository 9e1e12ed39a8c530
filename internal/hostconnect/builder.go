package hostconnect

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Builder constructs protocol-valid request documents. It performs no
// semantic validation beyond requiring credentials; the upstream is the
// authority on everything else.
type Builder struct {
	creds Credentials
}

// NewBuilder returns a Builder bound to the given upstream identity.
func NewBuilder(creds Credentials) *Builder {
	return &Builder{creds: creds}
}

// Wire structs. Field order matters: the DTD requires AgentID and
// Password as the first children of every operation element.

type wireRoomConfig struct {
	Adults   int    `xml:"Adults"`
	Children int    `xml:"Children,omitempty"`
	Infants  int    `xml:"Infants,omitempty"`
	Type     string `xml:"Type"`
	Quantity int    `xml:"Quantity"`
}

type wireRoomConfigs struct {
	RoomConfig []wireRoomConfig `xml:"RoomConfig"`
}

type pingRequest struct {
	XMLName  xml.Name `xml:"PingRequest"`
	AgentID  string   `xml:"AgentID"`
	Password string   `xml:"Password"`
}

type agentInfoRequest struct {
	XMLName  xml.Name `xml:"AgentInfoRequest"`
	AgentID  string   `xml:"AgentID"`
	Password string   `xml:"Password"`
}

type optionInfoRequest struct {
	XMLName         xml.Name         `xml:"OptionInfoRequest"`
	AgentID         string           `xml:"AgentID"`
	Password        string           `xml:"Password"`
	Opt             string           `xml:"Opt,omitempty"`
	ButtonName      string           `xml:"ButtonName,omitempty"`
	DestinationName string           `xml:"DestinationName,omitempty"`
	Info            string           `xml:"Info,omitempty"`
	DateFrom        string           `xml:"DateFrom,omitempty"`
	DateTo          string           `xml:"DateTo,omitempty"`
	Adults          int              `xml:"Adults,omitempty"`
	Children        int              `xml:"Children,omitempty"`
	RoomConfigs     *wireRoomConfigs `xml:"RoomConfigs,omitempty"`
}

type newBookingInfo struct {
	Name   string `xml:"Name"`
	QB     string `xml:"QB"`
	Email  string `xml:"Email,omitempty"`
	Mobile string `xml:"Mobile,omitempty"`
}

type addServiceRequest struct {
	XMLName        xml.Name         `xml:"AddServiceRequest"`
	AgentID        string           `xml:"AgentID"`
	Password       string           `xml:"Password"`
	NewBookingInfo *newBookingInfo  `xml:"NewBookingInfo,omitempty"`
	BookingID      string           `xml:"BookingId,omitempty"`
	Opt            string           `xml:"Opt"`
	RateID         string           `xml:"RateId"`
	DateFrom       string           `xml:"DateFrom"`
	DateTo         string           `xml:"DateTo,omitempty"`
	SCUQty         int              `xml:"SCUqty,omitempty"`
	Adults         int              `xml:"Adults,omitempty"`
	Children       int              `xml:"Children,omitempty"`
	Infants        int              `xml:"Infants,omitempty"`
	RoomConfigs    *wireRoomConfigs `xml:"RoomConfigs,omitempty"`
	Note           string           `xml:"Note,omitempty"`
}

type getBookingRequest struct {
	XMLName   xml.Name `xml:"GetBookingRequest"`
	AgentID   string   `xml:"AgentID"`
	Password  string   `xml:"Password"`
	BookingID string   `xml:"BookingId,omitempty"`
	Ref       string   `xml:"Ref,omitempty"`
}

type quoteToBookRequest struct {
	XMLName             xml.Name `xml:"QuoteToBookRequest"`
	AgentID             string   `xml:"AgentID"`
	Password            string   `xml:"Password"`
	BookingID           string   `xml:"BookingId"`
	SendSupplierMessage string   `xml:"SendSupplierMessage"`
}

type cancelServicesRequest struct {
	XMLName  xml.Name `xml:"CancelServicesRequest"`
	AgentID  string   `xml:"AgentID"`
	Password string   `xml:"Password"`
	Ref      string   `xml:"Ref"`
}

// build wraps the marshalled operation element in the Request root with
// the XML prologue and DTD declaration the upstream requires.
func (b *Builder) build(op any) (string, error) {
	if !b.creds.valid() {
		return "", ErrMissingCredentials
	}
	body, err := xml.MarshalIndent(op, "  ", "  ")
	if err != nil {
		return "", fmt.Errorf("hostconnect: marshal request: %w", err)
	}
	return `<?xml version="1.0"?>` + "\n" +
		`<!DOCTYPE Request SYSTEM "` + DTDVersion + `">` + "\n" +
		"<Request>\n" + string(body) + "\n</Request>\n", nil
}

// Ping builds the connectivity-check request.
func (b *Builder) Ping() (string, error) {
	return b.build(pingRequest{AgentID: b.creds.AgentID, Password: b.creds.Password})
}

// AgentInfo builds the agent identity lookup.
func (b *Builder) AgentInfo() (string, error) {
	return b.build(agentInfoRequest{AgentID: b.creds.AgentID, Password: b.creds.Password})
}

// Search builds an OptionInfoRequest from search criteria. Optional
// fields are omitted from the document entirely when unset.
func (b *Builder) Search(c SearchCriteria) (string, error) {
	req := optionInfoRequest{
		AgentID:         b.creds.AgentID,
		Password:        b.creds.Password,
		ButtonName:      c.ProductType,
		DestinationName: c.Destination,
		Info:            c.Info,
		Adults:          c.Adults,
		Children:        c.Children,
	}
	if req.Info == "" {
		req.Info = InfoSearchDefault
	}
	if !c.DateFrom.IsZero() {
		req.DateFrom = c.DateFrom.Format(DateFormat)
	}
	if !c.DateTo.IsZero() {
		req.DateTo = c.DateTo.Format(DateFormat)
	}
	if len(c.RoomConfigs) > 0 {
		req.RoomConfigs = wireRooms(c.RoomConfigs)
	}
	return b.build(req)
}

// OptionDetail builds the supplier-detail lookup for one product code.
func (b *Builder) OptionDetail(code, info string) (string, error) {
	if info == "" {
		info = InfoFullDetail
	}
	return b.build(optionInfoRequest{
		AgentID:  b.creds.AgentID,
		Password: b.creds.Password,
		Opt:      code,
		Info:     info,
	})
}

// AddServiceParams carries everything needed to create or amend one
// service line. When BookingID is set the line is added to an existing
// booking and NewBooking is ignored; otherwise a new booking is opened.
type AddServiceParams struct {
	BookingID   string
	NewBooking  *NewBookingParams
	Opt         string
	RateID      string
	DateFrom    time.Time
	DateTo      time.Time
	SCUQty      int
	Adults      int
	Children    int
	Infants     int
	RoomConfigs []RoomConfig
	Note        string
}

// NewBookingParams names the lead traveler and selects quote vs firm
// booking via the QB flag.
type NewBookingParams struct {
	Name      string
	QuoteOnly bool
	Email     string
	Mobile    string
}

// AddService builds the service-line creation or amendment request.
func (b *Builder) AddService(p AddServiceParams) (string, error) {
	req := addServiceRequest{
		AgentID:   b.creds.AgentID,
		Password:  b.creds.Password,
		BookingID: p.BookingID,
		Opt:       p.Opt,
		RateID:    p.RateID,
		DateFrom:  p.DateFrom.Format(DateFormat),
		SCUQty:    p.SCUQty,
		Adults:    p.Adults,
		Children:  p.Children,
		Infants:   p.Infants,
		Note:      p.Note,
	}
	if req.RateID == "" {
		req.RateID = "Default"
	}
	if !p.DateTo.IsZero() {
		req.DateTo = p.DateTo.Format(DateFormat)
	}
	if p.BookingID == "" && p.NewBooking != nil {
		qb := QBBooking
		if p.NewBooking.QuoteOnly {
			qb = QBQuote
		}
		req.NewBookingInfo = &newBookingInfo{
			Name:   p.NewBooking.Name,
			QB:     qb,
			Email:  p.NewBooking.Email,
			Mobile: p.NewBooking.Mobile,
		}
	}
	if len(p.RoomConfigs) > 0 {
		req.RoomConfigs = wireRooms(p.RoomConfigs)
	}
	return b.build(req)
}

// GetBooking builds the booking retrieval request. Either the upstream
// booking id or the agent-visible reference may be used.
func (b *Builder) GetBooking(bookingID, ref string) (string, error) {
	return b.build(getBookingRequest{
		AgentID:   b.creds.AgentID,
		Password:  b.creds.Password,
		BookingID: bookingID,
		Ref:       ref,
	})
}

// QuoteToBook builds the quote-to-firm-booking conversion request.
func (b *Builder) QuoteToBook(bookingID string, notifySupplier bool) (string, error) {
	flag := "N"
	if notifySupplier {
		flag = "Y"
	}
	return b.build(quoteToBookRequest{
		AgentID:             b.creds.AgentID,
		Password:            b.creds.Password,
		BookingID:           bookingID,
		SendSupplierMessage: flag,
	})
}

// CancelServices builds the cancellation request for a booking reference.
func (b *Builder) CancelServices(ref string) (string, error) {
	return b.build(cancelServicesRequest{
		AgentID:  b.creds.AgentID,
		Password: b.creds.Password,
		Ref:      ref,
	})
}

func wireRooms(rooms []RoomConfig) *wireRoomConfigs {
	out := &wireRoomConfigs{}
	for _, rc := range rooms {
		qty := rc.Quantity
		if qty == 0 {
			qty = 1
		}
		out.RoomConfig = append(out.RoomConfig, wireRoomConfig{
			Adults:   rc.Adults,
			Children: rc.Children,
			Infants:  rc.Infants,
			Type:     rc.Type,
			Quantity: qty,
		})
	}
	return out
}
