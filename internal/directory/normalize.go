package directory

import (
	"context"
	"strings"
	"time"

	"google.golang.org/api/people/v1"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

// Directory labels, compared case-insensitively
const (
	labelHome   = "home"
	labelMobile = "mobile"
	labelPhone  = "phone"
	labelBot    = "bot"

	// Event types are matched exactly
	eventAnniversary = "anniversary"
)

// TimezoneResolver maps a postal code to a timezone, "" when unknown
type TimezoneResolver interface {
	Timezone(ctx context.Context, country core.Country, postalCode string) (string, error)
}

// Normalizer turns directory records into contacts
type Normalizer struct {
	geo      TimezoneResolver
	registry *core.CarrierRegistry
	today    func() core.Date
}

// NewNormalizer creates a normalizer. geo may be nil, leaving timezones empty.
func NewNormalizer(geo TimezoneResolver, registry *core.CarrierRegistry) *Normalizer {
	if registry == nil {
		registry = core.DefaultCarrierRegistry()
	}
	return &Normalizer{geo: geo, registry: registry, today: core.Today}
}

// Pass normalizes records with a shared per-pass timezone memo
type Pass struct {
	n      *Normalizer
	ctx    context.Context
	groups []core.ContactGroup
	zones  map[string]string
}

// NewPass starts a normalization pass for one directory fetch
func (n *Normalizer) NewPass(ctx context.Context, groups []core.ContactGroup) *Pass {
	return &Pass{n: n, ctx: ctx, groups: groups, zones: make(map[string]string)}
}

// Contacts normalizes every record, dropping those without a usable name
func (p *Pass) Contacts(records []*people.Person) []core.Contact {
	contacts := make([]core.Contact, 0, len(records))
	for _, r := range records {
		if c, ok := p.Contact(r); ok {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

// Contact normalizes one record. ok is false when the record has no display name.
func (p *Pass) Contact(r *people.Person) (core.Contact, bool) {
	given, display, ok := resolveName(r.Names)
	if !ok {
		return core.Contact{}, false
	}

	log := logging.FromContext(p.ctx).WithField("contact", display)
	log.Debug("Processing contact")

	return core.Contact{
		GivenName:      given,
		DisplayName:    display,
		Nickname:       nickname(r.Nicknames),
		MobileNumbers:  mobileNumbers(log, r.PhoneNumbers),
		Dates:          p.dates(log, r),
		HomeAddresses:  p.homeAddresses(log, r.Addresses),
		EmailAddresses: p.emailAddresses(r.EmailAddresses),
		Groups:         p.memberOf(r.ResourceName),
		Metadata:       metadata(r.UserDefined),
	}, true
}

// Profile normalizes the authenticated user's own record
func (p *Pass) Profile(r *people.Person) (core.Profile, bool) {
	given, display, ok := resolveName(r.Names)
	if !ok {
		return core.Profile{}, false
	}
	log := logging.FromContext(p.ctx).WithField("profile", display)

	c := core.Contact{
		MobileNumbers:  mobileNumbers(log, r.PhoneNumbers),
		EmailAddresses: p.emailAddresses(r.EmailAddresses),
	}

	profile := core.Profile{GivenName: given, DisplayName: display}
	for _, n := range c.MobileNumbers {
		if n.Country() == core.CountryUS {
			profile.MobileNumber = n
			break
		}
	}
	if email, ok := c.PrimaryEmail(); ok {
		profile.EmailAddress = email
	} else if len(r.EmailAddresses) > 0 {
		profile.EmailAddress = core.EmailAddress{Address: r.EmailAddresses[0].Value}
	}
	return profile, true
}

func resolveName(names []*people.Name) (given, display string, ok bool) {
	if len(names) == 0 || names[0] == nil {
		return "", "", false
	}
	display = strings.TrimSpace(names[0].DisplayName)
	if display == "" {
		return "", "", false
	}

	given = strings.TrimSpace(names[0].GivenName)
	if given == "" {
		given = strings.Fields(display)[0]
		logging.Warn("Defaulting given name from display name", "given_name", given, "display_name", display)
	}
	return given, display, true
}

func nickname(nicknames []*people.Nickname) string {
	for _, n := range nicknames {
		if n != nil && strings.TrimSpace(n.Value) != "" {
			return strings.TrimSpace(n.Value)
		}
	}
	return ""
}

func mobileNumbers(log *logging.Logger, numbers []*people.PhoneNumber) []core.PhoneNumber {
	var out []core.PhoneNumber
	for _, n := range numbers {
		if n == nil {
			continue
		}
		label := strings.ToLower(n.Type)
		if label != labelMobile && label != labelBot {
			continue
		}

		number := n.CanonicalForm
		if number == "" {
			number = strings.Join(strings.Fields(n.Value), "")
			log.Warn("No canonical phone number", "value", number)
		}
		if number == "" {
			continue
		}

		out = append(out, core.PhoneNumber{
			Number:    number,
			IsPrimary: n.Metadata != nil && n.Metadata.SourcePrimary,
			IsBot:     label == labelBot,
		})
	}
	return out
}

func (p *Pass) emailAddresses(emails []*people.EmailAddress) []core.EmailAddress {
	var out []core.EmailAddress
	for _, e := range emails {
		if e == nil || e.Value == "" {
			continue
		}
		label := strings.ToLower(e.Type)
		switch label {
		case labelHome, labelMobile, labelPhone, labelBot:
		default:
			continue
		}

		out = append(out, core.EmailAddress{
			Address:   e.Value,
			IsPrimary: e.Metadata != nil && e.Metadata.Primary,
			IsPhone:   label == labelMobile || label == labelPhone || p.n.registry.IsCarrier(e.Value),
			IsBot:     label == labelBot,
		})
	}
	return out
}

func (p *Pass) homeAddresses(log *logging.Logger, addresses []*people.Address) []core.Address {
	var out []core.Address
	for _, a := range addresses {
		if a == nil || !strings.EqualFold(a.Type, labelHome) {
			continue
		}
		postal := strings.TrimSpace(a.PostalCode)
		if postal == "" {
			continue
		}
		out = append(out, core.Address{PostalCode: postal, Timezone: p.timezone(log, postal)})
	}
	return out
}

func (p *Pass) timezone(log *logging.Logger, postal string) string {
	if p.n.geo == nil {
		return ""
	}
	if tz, ok := p.zones[postal]; ok {
		return tz
	}

	tz, err := p.n.geo.Timezone(p.ctx, core.CountryUS, postal)
	if err != nil {
		log.Warn("Timezone lookup failed", "postal_code", postal, "error", err)
	}
	p.zones[postal] = tz
	return tz
}

func (p *Pass) dates(log *logging.Logger, r *people.Person) []core.DateEvent {
	var out []core.DateEvent
	for _, b := range r.Birthdays {
		if b == nil || b.Date == nil || b.Metadata == nil || !b.Metadata.Primary {
			continue
		}
		if d, ok := p.convertDate(log, b.Date); ok {
			out = append(out, core.DateEvent{Type: core.DateBirthday, Date: d})
		}
	}
	for _, e := range r.Events {
		if e == nil || e.Date == nil || e.Type != eventAnniversary {
			continue
		}
		if d, ok := p.convertDate(log, e.Date); ok {
			out = append(out, core.DateEvent{Type: core.DateAnniversary, Date: d})
		}
	}
	return out
}

func (p *Pass) convertDate(log *logging.Logger, d *people.Date) (core.Date, bool) {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		log.Warn("Ignoring incomplete date", "month", d.Month, "day", d.Day)
		return core.Date{}, false
	}
	year := int(d.Year)
	if year == 0 {
		log.Debug("Year is not present", "month", d.Month, "day", d.Day)
		year = p.n.today().Year
	}
	return core.Date{Year: year, Month: time.Month(d.Month), Day: int(d.Day)}, true
}

func (p *Pass) memberOf(resourceName string) []string {
	var names []string
	if resourceName == "" {
		return names
	}
	for _, g := range p.groups {
		if g.Members[resourceName] {
			names = append(names, g.Name)
		}
	}
	return names
}

func metadata(fields []*people.UserDefined) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if f != nil && f.Key != "" {
			out[f.Key] = f.Value
		}
	}
	return out
}
