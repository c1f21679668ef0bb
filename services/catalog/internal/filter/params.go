package filter

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedFilterInput = errors.New("malformed filter input")

const dateOnly = "2006-01-02"

// Params holds the optional search parameters of one request.
type Params struct {
	Genre     string
	Status    string
	Type      string
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	MinViews  *int64
	MaxViews  *int64
}

// ParseParams reads search parameters from a query string. Empty values are
// treated as absent. Non-integer or negative view bounds, unparsable dates and
// inverted ranges are rejected with an error wrapping ErrMalformedFilterInput.
//
// Dates are RFC 3339 or YYYY-MM-DD (UTC); a date-only endDate covers that whole day.
func ParseParams(v url.Values) (Params, error) {
	p := Params{
		Genre:  strings.TrimSpace(v.Get("genre")),
		Status: strings.TrimSpace(v.Get("status")),
		Type:   strings.TrimSpace(v.Get("type")),
		Search: strings.TrimSpace(v.Get("search")),
	}

	var err error
	if p.StartDate, err = parseDate("startDate", v.Get("startDate"), false); err != nil {
		return Params{}, err
	}
	if p.EndDate, err = parseDate("endDate", v.Get("endDate"), true); err != nil {
		return Params{}, err
	}
	if p.StartDate != nil && p.EndDate != nil && p.StartDate.After(*p.EndDate) {
		return Params{}, fmt.Errorf("%w: startDate is after endDate", ErrMalformedFilterInput)
	}

	if p.MinViews, err = parseViews("minViews", v.Get("minViews")); err != nil {
		return Params{}, err
	}
	if p.MaxViews, err = parseViews("maxViews", v.Get("maxViews")); err != nil {
		return Params{}, err
	}
	if p.MinViews != nil && p.MaxViews != nil && *p.MinViews > *p.MaxViews {
		return Params{}, fmt.Errorf("%w: minViews is greater than maxViews", ErrMalformedFilterInput)
	}
	return p, nil
}

func parseDate(name, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD, got %q", ErrMalformedFilterInput, name, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseViews(name, raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrMalformedFilterInput, name, raw)
	}
	return &n, nil
}
