// hostlinkctl is a small operational CLI for probing the HostConnect
// upstream: connectivity checks, searches, calendars and test bookings,
// all configured from HOSTLINK_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thisisafrica/hostlink/internal/availability"
	"github.com/thisisafrica/hostlink/internal/booking"
	"github.com/thisisafrica/hostlink/internal/config"
	"github.com/thisisafrica/hostlink/internal/hostconnect"
	hlog "github.com/thisisafrica/hostlink/internal/log"
	"github.com/thisisafrica/hostlink/internal/tours"
)

var version = "dev"

func main() {
	hlog.Configure(hlog.Config{Service: "hostlinkctl"})
	baseLogger := hlog.Base()
	baseLogger.Debug().Str("version", version).Msg("starting")
	logger := hlog.WithComponent("cli")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Println(version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	svc, err := tours.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	var runErr error
	switch os.Args[1] {
	case "ping":
		runErr = runPing(ctx, svc)
	case "search":
		runErr = runSearch(ctx, svc, os.Args[2:])
	case "calendar":
		runErr = runCalendar(ctx, svc, os.Args[2:])
	case "book":
		runErr = runBook(ctx, svc, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error().Err(runErr).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hostlinkctl <ping|search|calendar|book|version> [flags]")
}

func runPing(ctx context.Context, svc *tours.Service) error {
	if err := svc.Ping(ctx); err != nil {
		return err
	}
	fmt.Println("upstream ok")
	return nil
}

func runSearch(ctx context.Context, svc *tours.Service, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	productType := fs.String("type", "Group Tours", "product type button name")
	destination := fs.String("dest", "", "destination name")
	dateFrom := fs.String("from", "", "start date (YYYY-MM-DD)")
	dateTo := fs.String("to", "", "end date (YYYY-MM-DD)")
	adults := fs.Int("adults", 2, "adult count")
	children := fs.Int("children", 0, "child count")
	if err := fs.Parse(args); err != nil {
		return err
	}

	criteria := hostconnect.SearchCriteria{
		ProductType: *productType,
		Destination: *destination,
		Adults:      *adults,
		Children:    *children,
	}
	var err error
	if criteria.DateFrom, err = parseDate(*dateFrom); err != nil {
		return err
	}
	if criteria.DateTo, err = parseDate(*dateTo); err != nil {
		return err
	}

	options, err := svc.SearchAvailability(ctx, criteria)
	if err != nil {
		return err
	}
	return printJSON(options)
}

func runCalendar(ctx context.Context, svc *tours.Service, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ExitOnError)
	code := fs.String("code", "", "product code (required)")
	from := fs.String("from", "", "window start (YYYY-MM-DD, default today)")
	months := fs.Int("months", 6, "window length in months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		return fmt.Errorf("calendar: -code is required")
	}

	start := time.Now()
	if *from != "" {
		var err error
		if start, err = parseDate(*from); err != nil {
			return err
		}
	}
	window := availability.Window{Start: start, End: start.AddDate(0, *months, 0)}

	days, err := svc.GetCalendar(ctx, *code, window)
	if err != nil {
		return err
	}
	for _, d := range days {
		if d.Bookable {
			fmt.Printf("%s %-9s units=%-3d %s\n",
				d.Date.Format(hostconnect.DateFormat), d.DayOfWeek, d.RemainingUnits, d.DisplayPrice)
		}
	}
	return nil
}

func runBook(ctx context.Context, svc *tours.Service, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	code := fs.String("code", "", "product code (required)")
	rateID := fs.String("rate", "", "rate id (default upstream rate)")
	from := fs.String("from", "", "travel start date (required, YYYY-MM-DD)")
	to := fs.String("to", "", "travel end date (YYYY-MM-DD)")
	adults := fs.Int("adults", 2, "adult count")
	children := fs.Int("children", 0, "child count")
	name := fs.String("name", "", "lead traveler name (required)")
	email := fs.String("email", "", "lead traveler email")
	quote := fs.Bool("quote", true, "request a quote instead of a firm booking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" || *from == "" || *name == "" {
		return fmt.Errorf("book: -code, -from and -name are required")
	}

	dateFrom, err := parseDate(*from)
	if err != nil {
		return err
	}
	dateTo, err := parseDate(*to)
	if err != nil {
		return err
	}

	outcome, err := svc.SubmitBooking(ctx, booking.Request{
		ProductCode:  *code,
		RateID:       *rateID,
		DateFrom:     dateFrom,
		DateTo:       dateTo,
		Adults:       *adults,
		Children:     *children,
		LeadTraveler: booking.LeadTraveler{Name: *name, Email: *email},
		QuoteOnly:    *quote,
	})
	if err != nil {
		return err
	}
	return printJSON(outcome)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(hostconnect.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
