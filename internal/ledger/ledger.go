// Package ledger reads the user's current bookings from the site's bookings table.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/parkbook/internal/page"
)

const (
	floorHeader   = "Floor"
	fromHeader    = "From"
	carParkMarker = "Car Park"

	// fromLayout is how the site renders the start of a booking, e.g. "13/09/2024 AM".
	// The unpadded day and month also accept "3/9/2024 AM".
	fromLayout     = "2/1/2006 PM"
	fromDateLayout = "2/1/2006"
)

// Booking is one row of the ledger that reserves a car-park space.
type Booking struct {
	Date     civil.Date
	Category string
	Raw      string
}

// ExtractCarParkBookings returns the car-park rows of a bookings table snapshot.
// A table without "Floor" and "From" columns (the site omits them when the user has
// no bookings) yields an empty result. Rows with an unreadable date are skipped.
func ExtractCarParkBookings(tableHTML string) ([]Booking, error) {
	doc, err := htmlquery.Parse(strings.NewReader(tableHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookings table: %w", err)
	}

	header := htmlquery.FindOne(doc, "(//tr[th])[1]")
	if header == nil {
		header = htmlquery.FindOne(doc, "(//tr)[1]")
	}
	if header == nil {
		return []Booking{}, nil
	}

	floorIdx, fromIdx := -1, -1
	for i, cell := range cells(header) {
		switch strings.TrimSpace(htmlquery.InnerText(cell)) {
		case floorHeader:
			floorIdx = i
		case fromHeader:
			fromIdx = i
		}
	}
	if floorIdx < 0 || fromIdx < 0 {
		return []Booking{}, nil
	}

	bookings := []Booking{}
	for _, row := range htmlquery.Find(doc, "//tr") {
		if row == header {
			continue
		}
		cs := cells(row)
		if len(cs) <= floorIdx || len(cs) <= fromIdx {
			continue
		}
		category := strings.TrimSpace(htmlquery.InnerText(cs[floorIdx]))
		if !strings.Contains(category, carParkMarker) {
			continue
		}
		from := strings.TrimSpace(htmlquery.InnerText(cs[fromIdx]))
		d, ok := parseFrom(from)
		if !ok {
			continue
		}
		bookings = append(bookings, Booking{Date: d, Category: category, Raw: from})
	}
	return bookings, nil
}

func cells(row *html.Node) []*html.Node {
	return htmlquery.Find(row, "./th|./td")
}

func parseFrom(s string) (civil.Date, bool) {
	if t, err := time.Parse(fromLayout, s); err == nil {
		return civil.DateOf(t), true
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return civil.Date{}, false
	}
	t, err := time.Parse(fromDateLayout, fields[0])
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// Contains reports whether any booking falls on d.
func Contains(bookings []Booking, d civil.Date) bool {
	for _, b := range bookings {
		if b.Date == d {
			return true
		}
	}
	return false
}

// Dates returns the booked dates in ledger order.
func Dates(bookings []Booking) []civil.Date {
	out := make([]civil.Date, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.Date)
	}
	return out
}

// Reader fetches the ledger from the page the client currently has open.
// Every call reads the page again; nothing is cached.
type Reader struct {
	client   page.Client
	selector string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewReader creates a Reader for the bookings table at selector.
func NewReader(client page.Client, selector string, timeout time.Duration, logger *zap.Logger) *Reader {
	return &Reader{
		client:   client,
		selector: selector,
		timeout:  timeout,
		logger:   logger.Named("ledger"),
	}
}

// Read waits for the bookings table and extracts its car-park bookings.
func (r *Reader) Read(ctx context.Context) ([]Booking, error) {
	table, err := r.client.WaitVisible(ctx, r.selector, r.timeout)
	if err != nil {
		return nil, fmt.Errorf("bookings table not available: %w", err)
	}
	raw, err := r.client.OuterHTML(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookings table: %w", err)
	}
	bookings, err := ExtractCarParkBookings(raw)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Ledger read.", zap.Int("car_park_bookings", len(bookings)))
	return bookings, nil
}
