package testutil

import (
	"github.com/quantumlife/contactbot/internal/core"
)

// FixtureToday is the date every fixture celebrates on
var FixtureToday = core.Date{Year: 2030, Month: 3, Day: 15}

// SenderFixture is the bot owner's profile.
func SenderFixture() core.Profile {
	return core.Profile{
		GivenName:    "Clara",
		DisplayName:  "Clara Oswald",
		MobileNumber: core.PhoneNumber{Number: "+12025550199", IsPrimary: true},
		EmailAddress: core.EmailAddress{Address: "clara@example.com", IsPrimary: true},
	}
}

// TextContactFixture has a birthday today and only a US mobile number.
func TextContactFixture() core.Contact {
	return core.Contact{
		GivenName:     "Amy",
		DisplayName:   "Amy Pond",
		MobileNumbers: []core.PhoneNumber{{Number: "2025551234", IsPrimary: true}},
		Dates:         []core.DateEvent{{Type: core.DateBirthday, Date: core.Date{Year: 1989, Month: 3, Day: 15}}},
		Groups:        []string{"Family"},
		Metadata:      map[string]string{},
	}
}

// EmailContactFixture has an anniversary today and only a primary email address.
func EmailContactFixture() core.Contact {
	return core.Contact{
		GivenName:      "Rory",
		DisplayName:    "Rory Williams",
		EmailAddresses: []core.EmailAddress{{Address: "rory@example.com", IsPrimary: true}},
		Dates:          []core.DateEvent{{Type: core.DateAnniversary, Date: core.Date{Year: 2010, Month: 3, Day: 15}}},
		Groups:         []string{"Friends"},
		Metadata:       map[string]string{},
	}
}

// OptedOutContactFixture celebrates today but asked not to be messaged.
func OptedOutContactFixture() core.Contact {
	c := TextContactFixture()
	c.GivenName = "River"
	c.DisplayName = "River Song"
	c.MobileNumbers = []core.PhoneNumber{{Number: "2025559876", IsPrimary: true}}
	c.Metadata = map[string]string{core.FieldOptOut: "true"}
	return c
}
