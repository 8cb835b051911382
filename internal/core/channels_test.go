package core

import (
	"fmt"
	"testing"
)

// flagCombos enumerates every assignment of (primary, bot) flags to n numbers
func flagCombos(n int) [][]PhoneNumber {
	if n == 0 {
		return [][]PhoneNumber{nil}
	}
	var out [][]PhoneNumber
	for _, rest := range flagCombos(n - 1) {
		for f := 0; f < 4; f++ {
			num := PhoneNumber{
				Number:    fmt.Sprintf("20255500%02d", n),
				IsPrimary: f&1 != 0,
				IsBot:     f&2 != 0,
			}
			combo := append([]PhoneNumber{num}, rest...)
			out = append(out, combo)
		}
	}
	return out
}

func TestContact_PreferredUSMobileNumber_AllFlagCombinations(t *testing.T) {
	for n := 0; n <= 3; n++ {
		for _, numbers := range flagCombos(n) {
			c := Contact{MobileNumbers: numbers}
			got, ok := c.PreferredUSMobileNumber()

			want := -1
			for i, num := range numbers {
				if num.IsBot {
					want = i
					break
				}
			}
			if want < 0 {
				for i, num := range numbers {
					if num.IsPrimary {
						want = i
						break
					}
				}
			}
			if want < 0 && len(numbers) > 0 {
				want = 0
			}

			if want < 0 {
				if ok {
					t.Errorf("%v: got %v, want none", numbers, got)
				}
				continue
			}
			if !ok || got != numbers[want] {
				t.Errorf("%v: got %v (ok=%v), want %v", numbers, got, ok, numbers[want])
			}
		}
	}
}

func TestContact_PreferredUSMobileNumber(t *testing.T) {
	tests := []struct {
		name    string
		numbers []PhoneNumber
		want    string
		wantOK  bool
	}{
		{"none", nil, "", false},
		{"single", []PhoneNumber{{Number: "2025551234"}}, "2025551234", true},
		{
			name: "primary over first",
			numbers: []PhoneNumber{
				{Number: "2025550001"},
				{Number: "2025550002", IsPrimary: true},
			},
			want: "2025550002", wantOK: true,
		},
		{
			name: "bot over primary",
			numbers: []PhoneNumber{
				{Number: "2025550001", IsPrimary: true},
				{Number: "2025550002"},
				{Number: "2025550003", IsBot: true},
			},
			want: "2025550003", wantOK: true,
		},
		{
			name: "non US numbers are ignored",
			numbers: []PhoneNumber{
				{Number: "+442071234567", IsBot: true},
				{Number: "2025550002"},
			},
			want: "2025550002", wantOK: true,
		},
		{
			name:    "only non US",
			numbers: []PhoneNumber{{Number: "+442071234567", IsPrimary: true}},
			wantOK:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Contact{MobileNumbers: tt.numbers}.PreferredUSMobileNumber()
			if ok != tt.wantOK || got.Number != tt.want {
				t.Errorf("PreferredUSMobileNumber() = %q, %v; want %q, %v", got.Number, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestContact_PrimaryMobileEmail(t *testing.T) {
	tests := []struct {
		name   string
		emails []EmailAddress
		want   string
		wantOK bool
	}{
		{"none", nil, "", false},
		{"no phone addresses", []EmailAddress{{Address: "amy@example.com", IsPrimary: true}}, "", false},
		{
			name: "first phone address",
			emails: []EmailAddress{
				{Address: "amy@example.com", IsPrimary: true},
				{Address: "2025551234@vtext.com", IsPhone: true},
				{Address: "2025551234@tmomail.com", IsPhone: true},
			},
			want: "2025551234@vtext.com", wantOK: true,
		},
		{
			name: "primary phone address",
			emails: []EmailAddress{
				{Address: "2025551234@vtext.com", IsPhone: true},
				{Address: "2025551234@tmomail.com", IsPhone: true, IsPrimary: true},
			},
			want: "2025551234@tmomail.com", wantOK: true,
		},
		{
			name: "bot phone address",
			emails: []EmailAddress{
				{Address: "2025551234@tmomail.com", IsPhone: true, IsPrimary: true},
				{Address: "2025551234@vtext.com", IsPhone: true, IsBot: true},
			},
			want: "2025551234@vtext.com", wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Contact{EmailAddresses: tt.emails}.PrimaryMobileEmail()
			if ok != tt.wantOK || got.Address != tt.want {
				t.Errorf("PrimaryMobileEmail() = %q, %v; want %q, %v", got.Address, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestContact_PrimaryEmail(t *testing.T) {
	tests := []struct {
		name   string
		emails []EmailAddress
		want   string
		wantOK bool
	}{
		{"none", nil, "", false},
		{"no flags means none", []EmailAddress{{Address: "amy@example.com"}}, "", false},
		{"primary", []EmailAddress{{Address: "a@example.com"}, {Address: "b@example.com", IsPrimary: true}}, "b@example.com", true},
		{"bot over primary", []EmailAddress{{Address: "a@example.com", IsPrimary: true}, {Address: "b@example.com", IsBot: true}}, "b@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Contact{EmailAddresses: tt.emails}.PrimaryEmail()
			if ok != tt.wantOK || got.Address != tt.want {
				t.Errorf("PrimaryEmail() = %q, %v; want %q, %v", got.Address, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestContact_AllMobileGatewayEmails(t *testing.T) {
	reg := DefaultCarrierRegistry()

	t.Run("no numbers", func(t *testing.T) {
		if got := (Contact{}).AllMobileGatewayEmails(reg); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("non US numbers produce nothing", func(t *testing.T) {
		c := Contact{MobileNumbers: []PhoneNumber{{Number: "+442071234567", IsPrimary: true}}}
		if got := c.AllMobileGatewayEmails(reg); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("one address per enabled carrier", func(t *testing.T) {
		c := Contact{MobileNumbers: []PhoneNumber{{Number: "+12025551234"}}}
		got := c.AllMobileGatewayEmails(reg)
		want := []string{
			"2025551234@txt.att.net",
			"2025551234@msg.fi.google.com",
			"2025551234@tmomail.com",
			"2025551234@vtext.com",
		}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i].Address != want[i] || !got[i].IsPhone {
				t.Errorf("got[%d] = %+v, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("bot number set wins", func(t *testing.T) {
		c := Contact{MobileNumbers: []PhoneNumber{
			{Number: "+442071234567", IsBot: true},
			{Number: "2025550001", IsPrimary: true},
			{Number: "2025550002", IsBot: true},
		}}
		got := c.AllMobileGatewayEmails(reg)
		if len(got) == 0 || got[0].Address != "2025550002@txt.att.net" {
			t.Errorf("got %v, want set for 2025550002", got)
		}
	})

	t.Run("primary number set wins over first", func(t *testing.T) {
		c := Contact{MobileNumbers: []PhoneNumber{
			{Number: "2025550001"},
			{Number: "2025550002", IsPrimary: true},
		}}
		got := c.AllMobileGatewayEmails(reg)
		if len(got) == 0 || got[0].Address != "2025550002@txt.att.net" {
			t.Errorf("got %v, want set for 2025550002", got)
		}
	})
}

func TestCarrierRegistry_Disabled(t *testing.T) {
	reg := DefaultCarrierRegistry("verizon", "GoogleFi")
	got := reg.GatewayAddresses(PhoneNumber{Number: "2025551234"})
	if len(got) != 2 {
		t.Fatalf("GatewayAddresses() = %v, want 2 addresses", got)
	}
	for _, e := range got {
		if e.Address == "2025551234@vtext.com" || e.Address == "2025551234@msg.fi.google.com" {
			t.Errorf("disabled carrier produced %s", e.Address)
		}
	}

	// Disabled carriers still classify existing addresses.
	if !reg.IsCarrier("2025551234@vtext.com") {
		t.Error("IsCarrier() should match disabled carrier domain")
	}
	if !reg.IsCarrier("2025551234@TMOMAIL.COM") {
		t.Error("IsCarrier() should match case-insensitively")
	}
	if reg.IsCarrier("amy@example.com") || reg.IsCarrier("not-an-address") {
		t.Error("IsCarrier() should not match non carrier addresses")
	}
}
