package core

// Channel derivation. Every selection below follows the same precedence:
// bot designated, then primary flagged, then first in list, then none.

// pick returns the index of the preferred entry or -1
func pick(n int, isBot, isPrimary func(i int) bool) int {
	for i := 0; i < n; i++ {
		if isBot(i) {
			return i
		}
	}
	for i := 0; i < n; i++ {
		if isPrimary(i) {
			return i
		}
	}
	if n > 0 {
		return 0
	}
	return -1
}

// PrimaryMobileEmail selects among the contact's carrier gateway addresses
func (c Contact) PrimaryMobileEmail() (EmailAddress, bool) {
	var phones []EmailAddress
	for _, e := range c.EmailAddresses {
		if e.IsPhone {
			phones = append(phones, e)
		}
	}
	i := pick(len(phones),
		func(i int) bool { return phones[i].IsBot },
		func(i int) bool { return phones[i].IsPrimary })
	if i < 0 {
		return EmailAddress{}, false
	}
	return phones[i], true
}

// PrimaryEmail prefers a bot address, else a primary one. There is no first-in-list fallback.
func (c Contact) PrimaryEmail() (EmailAddress, bool) {
	for _, e := range c.EmailAddresses {
		if e.IsBot {
			return e, true
		}
	}
	for _, e := range c.EmailAddresses {
		if e.IsPrimary {
			return e, true
		}
	}
	return EmailAddress{}, false
}

// PreferredUSMobileNumber selects among the contact's US numbers
func (c Contact) PreferredUSMobileNumber() (PhoneNumber, bool) {
	var us []PhoneNumber
	for _, n := range c.MobileNumbers {
		if n.Country() == CountryUS {
			us = append(us, n)
		}
	}
	i := pick(len(us),
		func(i int) bool { return us[i].IsBot },
		func(i int) bool { return us[i].IsPrimary })
	if i < 0 {
		return PhoneNumber{}, false
	}
	return us[i], true
}

// AllMobileGatewayEmails derives gateway addresses for every mobile number and
// returns the set belonging to the preferred number that produced any
func (c Contact) AllMobileGatewayEmails(reg *CarrierRegistry) []EmailAddress {
	type candidate struct {
		number    PhoneNumber
		addresses []EmailAddress
	}
	var sets []candidate
	for _, n := range c.MobileNumbers {
		if addrs := reg.GatewayAddresses(n); len(addrs) > 0 {
			sets = append(sets, candidate{number: n, addresses: addrs})
		}
	}
	i := pick(len(sets),
		func(i int) bool { return sets[i].number.IsBot },
		func(i int) bool { return sets[i].number.IsPrimary })
	if i < 0 {
		return nil
	}
	return sets[i].addresses
}
