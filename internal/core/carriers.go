package core

import (
	"strings"
)

// Carrier is a mobile carrier email-to-SMS gateway
type Carrier struct {
	Name    string
	Country Country
	Domain  string
	Enabled bool
}

// Address formats the gateway address for number, or "" when the carrier does
// not serve the number's country or is disabled
func (c Carrier) Address(number PhoneNumber) string {
	if !c.Enabled || number.Country() != c.Country {
		return ""
	}
	return number.ShortNumber() + "@" + c.Domain
}

// DefaultCarriers returns the known US gateways, all enabled
func DefaultCarriers() []Carrier {
	return []Carrier{
		{Name: "ATT", Country: CountryUS, Domain: "txt.att.net", Enabled: true},
		{Name: "GoogleFi", Country: CountryUS, Domain: "msg.fi.google.com", Enabled: true},
		{Name: "TMobile", Country: CountryUS, Domain: "tmomail.com", Enabled: true},
		{Name: "Verizon", Country: CountryUS, Domain: "vtext.com", Enabled: true},
	}
}

// CarrierRegistry is a fixed, ordered list of carriers
type CarrierRegistry struct {
	carriers []Carrier
}

// NewCarrierRegistry creates a registry over carriers
func NewCarrierRegistry(carriers []Carrier) *CarrierRegistry {
	return &CarrierRegistry{carriers: append([]Carrier(nil), carriers...)}
}

// DefaultCarrierRegistry returns a registry of DefaultCarriers with the named carriers disabled
func DefaultCarrierRegistry(disabled ...string) *CarrierRegistry {
	carriers := DefaultCarriers()
	for i := range carriers {
		for _, name := range disabled {
			if strings.EqualFold(carriers[i].Name, name) {
				carriers[i].Enabled = false
			}
		}
	}
	return NewCarrierRegistry(carriers)
}

// Carriers returns a copy of the registered carriers
func (r *CarrierRegistry) Carriers() []Carrier {
	return append([]Carrier(nil), r.carriers...)
}

// GatewayAddresses derives one address per enabled carrier serving the number's country
func (r *CarrierRegistry) GatewayAddresses(number PhoneNumber) []EmailAddress {
	var out []EmailAddress
	for _, c := range r.carriers {
		if addr := c.Address(number); addr != "" {
			out = append(out, EmailAddress{
				Address:   addr,
				IsPrimary: number.IsPrimary,
				IsPhone:   true,
				IsBot:     number.IsBot,
			})
		}
	}
	return out
}

// IsCarrier reports whether address belongs to any registered carrier,
// disabled ones included
func (r *CarrierRegistry) IsCarrier(address string) bool {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(address[at+1:])
	for _, c := range r.carriers {
		if domain == c.Domain {
			return true
		}
	}
	return false
}
