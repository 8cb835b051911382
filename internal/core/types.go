// Package core defines the fundamental types for the contact bot.
// Contacts and profiles are value objects: built once per directory fetch
// (or cache load) and only read afterwards.
package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// COUNTRY
// -----------------------------------------------------------------------------

// Country is an ISO country code recognised for phone classification
type Country string

const (
	CountryUnknown Country = ""
	CountryUS      Country = "US"
)

// ParseCountry resolves a country code case-insensitively
func ParseCountry(s string) (Country, error) {
	if strings.EqualFold(s, string(CountryUS)) {
		return CountryUS, nil
	}
	return CountryUnknown, fmt.Errorf("unknown country %q", s)
}

var usCanonicalNumber = regexp.MustCompile(`^(?:\+1\s?)?\d{10}$`)

// IsUSPhoneNumber reports whether number is a 10 digit US number with an optional +1 prefix
func IsUSPhoneNumber(number string) bool {
	return usCanonicalNumber.MatchString(number)
}

// -----------------------------------------------------------------------------
// CUSTOM FIELDS
// -----------------------------------------------------------------------------

// Custom field keys read from a contact's user defined metadata
const (
	FieldSalutation = "BOT_SALUATION"
	FieldOptOut     = "BOT_OPT_OUT"
)

// IsTruthy reports whether value case-insensitively matches "true" or "1"
func IsTruthy(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1":
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// DATES
// -----------------------------------------------------------------------------

// DateType identifies the kind of qualifying date
type DateType int

const (
	DateBirthday DateType = iota + 1
	DateAnniversary
)

func (d DateType) String() string {
	switch d {
	case DateBirthday:
		return "BIRTHDAY"
	case DateAnniversary:
		return "ANNIVERSARY"
	default:
		return "UNKNOWN"
	}
}

// Date is a calendar date without a time of day
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// Today returns the current UTC date
func Today() Date {
	return DateOf(time.Now().UTC())
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DateEvent is a birthday or anniversary
type DateEvent struct {
	Type DateType `json:"type"`
	Date Date     `json:"date"`
}

// IsToday compares month and day only; the year is ignored
func (e DateEvent) IsToday(today Date) bool {
	return e.Date.Month == today.Month && e.Date.Day == today.Day
}

func (e DateEvent) String() string {
	return fmt.Sprintf("%s (%s)", e.Date, e.Type)
}

// -----------------------------------------------------------------------------
// CHANNELS
// -----------------------------------------------------------------------------

// PhoneNumber is a mobile number of a contact
type PhoneNumber struct {
	Number    string `json:"number"`
	IsPrimary bool   `json:"is_primary"`
	IsBot     bool   `json:"is_bot"`
}

// Country classifies the number; only US numbers are recognised
func (p PhoneNumber) Country() Country {
	if IsUSPhoneNumber(p.Number) {
		return CountryUS
	}
	return CountryUnknown
}

// ShortNumber is the last 10 digits of a US number with dashes removed
func (p PhoneNumber) ShortNumber() string {
	if p.Country() != CountryUS {
		return p.Number
	}
	n := strings.ReplaceAll(p.Number, "-", "")
	if len(n) > 10 {
		n = n[len(n)-10:]
	}
	return n
}

func (p PhoneNumber) String() string {
	return p.Number
}

// EmailAddress is an email address of a contact. IsPhone marks a carrier gateway address.
type EmailAddress struct {
	Address   string `json:"address"`
	IsPrimary bool   `json:"is_primary"`
	IsPhone   bool   `json:"is_phone"`
	IsBot     bool   `json:"is_bot"`
}

func (e EmailAddress) String() string {
	return e.Address
}

// Address is a home postal address with its resolved IANA timezone (empty when unknown)
type Address struct {
	PostalCode string `json:"postal_code"`
	Timezone   string `json:"timezone,omitempty"`
}

// -----------------------------------------------------------------------------
// CONTACTS
// -----------------------------------------------------------------------------

// Contact is a normalized directory entry
type Contact struct {
	GivenName      string            `json:"given_name"`
	DisplayName    string            `json:"display_name"`
	Nickname       string            `json:"nickname,omitempty"`
	MobileNumbers  []PhoneNumber     `json:"mobile_numbers"`
	Dates          []DateEvent       `json:"dates"`
	HomeAddresses  []Address         `json:"home_addresses"`
	EmailAddresses []EmailAddress    `json:"email_addresses"`
	Groups         []string          `json:"groups"`
	Metadata       map[string]string `json:"metadata"`
}

func (c Contact) String() string {
	return c.DisplayName
}

// Salutation is the custom override, else the nickname, else the given name
func (c Contact) Salutation() string {
	if s := c.Metadata[FieldSalutation]; s != "" {
		return s
	}
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.GivenName
}

// OptedOut reports whether the contact asked not to receive messages
func (c Contact) OptedOut() bool {
	return IsTruthy(c.Metadata[FieldOptOut])
}

// DatesOn returns the events falling on today's month and day
func (c Contact) DatesOn(today Date) []DateEvent {
	var dates []DateEvent
	for _, d := range c.Dates {
		if d.IsToday(today) {
			dates = append(dates, d)
		}
	}
	return dates
}

// CanNotifyOn reports whether any event falls on today
func (c Contact) CanNotifyOn(today Date) bool {
	return len(c.DatesOn(today)) > 0
}

// IsMember reports whether the contact belongs to one of groups (lower-cased names)
func (c Contact) IsMember(groups map[string]bool) bool {
	for _, g := range c.Groups {
		if groups[strings.ToLower(g)] {
			return true
		}
	}
	return false
}

// Profile is the sender's own identity
type Profile struct {
	GivenName    string       `json:"given_name"`
	DisplayName  string       `json:"display_name"`
	MobileNumber PhoneNumber  `json:"mobile_number"`
	EmailAddress EmailAddress `json:"email_address"`
}

// ContactGroup is a user defined directory group
type ContactGroup struct {
	Name    string          `json:"name"`
	Members map[string]bool `json:"members"`
}

func (g ContactGroup) String() string {
	return g.Name
}
