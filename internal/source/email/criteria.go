package email

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailtriage/internal/source"
)

// searchDateLayout is the IMAP date form, e.g. 10-Jan-2025.
const searchDateLayout = "2-Jan-2006"

const searchDateExpected = "DD-Mon-YYYY (e.g. 10-Jan-2025)"

// Criteria is a date-bounded search. Zero times mean unbounded.
type Criteria struct {
	Since  time.Time
	Before time.Time
}

// BuildSearchCriteria validates optional DD-Mon-YYYY dates and returns the
// matching criteria. Both empty selects every message.
func BuildSearchCriteria(fromDate, toDate string) (Criteria, error) {
	var c Criteria
	var err error

	if c.Since, err = parseSearchDate("from_date", fromDate); err != nil {
		return Criteria{}, err
	}
	if c.Before, err = parseSearchDate("to_date", toDate); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

func parseSearchDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(searchDateLayout, value)
	if err != nil {
		return time.Time{}, &source.ValidationError{
			Field:    field,
			Value:    value,
			Expected: searchDateExpected,
		}
	}
	return t, nil
}

// String renders the criteria as an IMAP search expression.
func (c Criteria) String() string {
	var parts []string
	if !c.Since.IsZero() {
		parts = append(parts, `SINCE "`+c.Since.Format("02-Jan-2006")+`"`)
	}
	if !c.Before.IsZero() {
		parts = append(parts, `BEFORE "`+c.Before.Format("02-Jan-2006")+`"`)
	}
	if len(parts) == 0 {
		return "ALL"
	}
	return strings.Join(parts, " ")
}

// toIMAP converts the criteria to the go-imap representation. An empty
// SearchCriteria is sent as ALL.
func (c Criteria) toIMAP() *imap.SearchCriteria {
	return &imap.SearchCriteria{
		Since:  c.Since,
		Before: c.Before,
	}
}
