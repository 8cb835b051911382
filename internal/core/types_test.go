package core

import (
	"testing"
	"time"
)

func TestIsUSPhoneNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"2025551234", true},
		{"+12025551234", true},
		{"+1 2025551234", true},
		{"202-555-1234", false},
		{"+442025551234", false},
		{"555123", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsUSPhoneNumber(tt.number); got != tt.want {
			t.Errorf("IsUSPhoneNumber(%q) = %v, want %v", tt.number, got, tt.want)
		}
	}
}

func TestPhoneNumber_ShortNumber(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"+12025551234", "2025551234"},
		{"+1 2025551234", "2025551234"},
		{"2025551234", "2025551234"},
		{"+442071234567", "+442071234567"},
	}
	for _, tt := range tests {
		p := PhoneNumber{Number: tt.number}
		if got := p.ShortNumber(); got != tt.want {
			t.Errorf("ShortNumber(%q) = %q, want %q", tt.number, got, tt.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "True", "1"} {
		if !IsTruthy(v) {
			t.Errorf("IsTruthy(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "false", "0", "yes", "no", " true ", "1 "} {
		if IsTruthy(v) {
			t.Errorf("IsTruthy(%q) = true, want false", v)
		}
	}
}

func TestDateEvent_IsToday(t *testing.T) {
	ev := DateEvent{Type: DateBirthday, Date: Date{Year: 2001, Month: time.March, Day: 15}}

	tests := []struct {
		name  string
		today Date
		want  bool
	}{
		{"same month and day", Date{2030, time.March, 15}, true},
		{"next day", Date{2030, time.March, 16}, false},
		{"next month", Date{2030, time.April, 15}, false},
		{"same year different day", Date{2001, time.March, 14}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.IsToday(tt.today); got != tt.want {
				t.Errorf("IsToday(%v) = %v, want %v", tt.today, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-03-15")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d != (Date{2030, time.March, 15}) {
		t.Errorf("ParseDate() = %v", d)
	}
	if d.String() != "2030-03-15" {
		t.Errorf("String() = %q", d.String())
	}

	if _, err := ParseDate("15/03/2030"); err == nil {
		t.Error("ParseDate() should fail on bad layout")
	}
}

func TestParseCountry(t *testing.T) {
	c, err := ParseCountry("us")
	if err != nil || c != CountryUS {
		t.Errorf("ParseCountry(us) = %v, %v", c, err)
	}
	if _, err := ParseCountry("CA"); err == nil {
		t.Error("ParseCountry(CA) should fail")
	}
}

func TestContact_Salutation(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{
			name:    "given name",
			contact: Contact{GivenName: "Amy", DisplayName: "Amy Pond"},
			want:    "Amy",
		},
		{
			name:    "nickname wins over given name",
			contact: Contact{GivenName: "Amelia", Nickname: "Amy"},
			want:    "Amy",
		},
		{
			name: "custom field wins over nickname",
			contact: Contact{
				GivenName: "Amelia",
				Nickname:  "Amy",
				Metadata:  map[string]string{FieldSalutation: "Pond"},
			},
			want: "Pond",
		},
		{
			name: "empty custom field is ignored",
			contact: Contact{
				GivenName: "Amelia",
				Metadata:  map[string]string{FieldSalutation: ""},
			},
			want: "Amelia",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.contact.Salutation(); got != tt.want {
				t.Errorf("Salutation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContact_OptedOut(t *testing.T) {
	if (Contact{}).OptedOut() {
		t.Error("contact without metadata should not be opted out")
	}
	c := Contact{Metadata: map[string]string{FieldOptOut: "True"}}
	if !c.OptedOut() {
		t.Error("BOT_OPT_OUT=True should opt out")
	}
	c = Contact{Metadata: map[string]string{FieldOptOut: "no"}}
	if c.OptedOut() {
		t.Error("BOT_OPT_OUT=no should not opt out")
	}
}

func TestContact_DatesOn(t *testing.T) {
	c := Contact{Dates: []DateEvent{
		{Type: DateBirthday, Date: Date{1990, time.March, 15}},
		{Type: DateAnniversary, Date: Date{2015, time.June, 1}},
		{Type: DateAnniversary, Date: Date{2016, time.March, 15}},
	}}

	got := c.DatesOn(Date{2030, time.March, 15})
	if len(got) != 2 {
		t.Fatalf("DatesOn() = %v, want 2 events", got)
	}
	if got[0].Type != DateBirthday || got[1].Type != DateAnniversary {
		t.Errorf("DatesOn() order = %v", got)
	}
	if c.CanNotifyOn(Date{2030, time.July, 4}) {
		t.Error("CanNotifyOn() should be false with no matching event")
	}
}

func TestContact_IsMember(t *testing.T) {
	c := Contact{Groups: []string{"Family", "Friends"}}
	if !c.IsMember(map[string]bool{"family": true}) {
		t.Error("IsMember should match case-insensitively")
	}
	if c.IsMember(map[string]bool{"work": true}) {
		t.Error("IsMember should not match unrelated group")
	}
}
