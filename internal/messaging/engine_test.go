package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/messages"
	"github.com/quantumlife/contactbot/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

func testTemplates() *messages.Templates {
	return messages.New(map[core.DateType]messages.Set{
		core.DateBirthday: {
			Bodies:   []string{"Happy birthday {GIVEN_NAME}!"},
			Subjects: []string{"Birthday wishes for {GIVEN_NAME}"},
		},
		core.DateAnniversary: {
			Bodies:   []string{"Happy anniversary {GIVEN_NAME}!"},
			Subjects: []string{"Anniversary wishes for {GIVEN_NAME}"},
		},
	}, nil)
}

type engineFixture struct {
	engine   *Engine
	email    *testutil.MockEmailTransport
	text     *testutil.MockTextTransport
	recorder *testutil.MockRecorder
}

func newEngine(t *testing.T, emailOK, textOK bool, disabled ...string) *engineFixture {
	t.Helper()
	f := &engineFixture{
		email:    &testutil.MockEmailTransport{Unsupported: !emailOK},
		text:     &testutil.MockTextTransport{Unsupported: !textOK},
		recorder: &testutil.MockRecorder{},
	}
	e, err := NewEngine(Config{
		Email:     f.email,
		Text:      f.text,
		Templates: testTemplates(),
		Registry:  core.DefaultCarrierRegistry(disabled...),
		Recorder:  f.recorder,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	f.engine = e
	return f
}

func (f *engineFixture) run(t *testing.T, contacts []core.Contact, opts RunOptions) *Report {
	t.Helper()
	if opts.Today == (core.Date{}) {
		opts.Today = testutil.FixtureToday
	}
	report, err := f.engine.Run(context.Background(), testutil.SenderFixture(), contacts, opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewEngine_RuleOrder(t *testing.T) {
	tests := []struct {
		name    string
		emailOK bool
		textOK  bool
		want    []RuleKind
	}{
		{"both", true, true, []RuleKind{RuleEmailMobile, RuleText, RuleEmailMobileWide, RuleEmail}},
		{"email only", true, false, []RuleKind{RuleEmailMobile, RuleEmailMobileWide, RuleEmail}},
		{"text only", false, true, []RuleKind{RuleText}},
		{"none", false, false, []RuleKind{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngine(t, tt.emailOK, tt.textOK)
			if diff := cmp.Diff(tt.want, f.engine.Rules()); diff != "" {
				t.Errorf("Rules() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewEngine_NoTemplates(t *testing.T) {
	_, err := NewEngine(Config{Templates: messages.New(nil, nil)})
	if !errors.Is(err, core.ErrNoTemplates) {
		t.Errorf("NewEngine() error = %v, want ErrNoTemplates", err)
	}
}

func TestSupportedProtocols(t *testing.T) {
	f := newEngine(t, true, true)
	got := f.engine.SupportedProtocols()
	if diff := cmp.Diff([]Protocol{ProtocolEmail, ProtocolText}, got); diff != "" {
		t.Errorf("SupportedProtocols() mismatch (-want +got):\n%s", diff)
	}
	if got := newEngine(t, false, false).engine.SupportedProtocols(); len(got) != 0 {
		t.Errorf("SupportedProtocols() = %v, want none", got)
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_TextOnly(t *testing.T) {
	f := newEngine(t, false, true)
	contacts := []core.Contact{
		testutil.TextContactFixture(),
		testutil.OptedOutContactFixture(),
		testutil.EmailContactFixture(),
	}

	report := f.run(t, contacts, RunOptions{})

	texts := f.text.Texts()
	if len(texts) != 1 {
		t.Fatalf("sent %d texts, want 1: %+v", len(texts), texts)
	}
	if texts[0].To != "2025551234" {
		t.Errorf("To = %q, want 2025551234", texts[0].To)
	}
	if texts[0].From != "+12025550199" {
		t.Errorf("From = %q, want sender mobile", texts[0].From)
	}
	if !strings.Contains(texts[0].Body, "Amy") {
		t.Errorf("Body = %q, want salutation", texts[0].Body)
	}

	statuses := make([]Status, len(report.Outcomes))
	for i, o := range report.Outcomes {
		statuses[i] = o.Status
	}
	want := []Status{StatusSent, StatusOptedOut, StatusNoChannel}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if report.Sent() != 1 {
		t.Errorf("Sent() = %d, want 1", report.Sent())
	}
}

func TestRun_OptedOutGetsNothing(t *testing.T) {
	f := newEngine(t, true, true)
	f.run(t, []core.Contact{testutil.OptedOutContactFixture()}, RunOptions{})

	if n := len(f.text.Texts()) + len(f.email.Emails()); n != 0 {
		t.Errorf("sent %d messages to an opted out contact", n)
	}
}

func TestRun_NotToday(t *testing.T) {
	f := newEngine(t, true, true)
	report := f.run(t, []core.Contact{testutil.TextContactFixture()}, RunOptions{
		Today: core.Date{Year: 2030, Month: 3, Day: 16},
	})

	if report.Outcomes[0].Status != StatusNotToday {
		t.Errorf("Status = %v, want %v", report.Outcomes[0].Status, StatusNotToday)
	}
	if len(f.text.Texts()) != 0 {
		t.Error("no text should be sent")
	}
}

func TestRun_EmailWithSubject(t *testing.T) {
	f := newEngine(t, true, false)
	report := f.run(t, []core.Contact{testutil.EmailContactFixture()}, RunOptions{})

	emails := f.email.Emails()
	if len(emails) != 1 {
		t.Fatalf("sent %d emails, want 1", len(emails))
	}
	got := emails[0]
	if diff := cmp.Diff([]string{"rory@example.com"}, got.To); diff != "" {
		t.Errorf("To mismatch (-want +got):\n%s", diff)
	}
	if got.Subject != "Anniversary wishes for Rory" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.Body != "Happy anniversary Rory!" {
		t.Errorf("Body = %q", got.Body)
	}
	if got.Sender.EmailAddress.Address != "clara@example.com" {
		t.Errorf("Sender = %+v", got.Sender)
	}
	if report.Outcomes[0].Rule != RuleEmail {
		t.Errorf("Rule = %v, want %v", report.Outcomes[0].Rule, RuleEmail)
	}
}

func TestRun_GatewayEmailWinsOverText(t *testing.T) {
	f := newEngine(t, true, true)
	c := testutil.TextContactFixture()
	c.EmailAddresses = []core.EmailAddress{{Address: "2025551234@vtext.com", IsPhone: true}}

	report := f.run(t, []core.Contact{c}, RunOptions{})

	if report.Outcomes[0].Rule != RuleEmailMobile {
		t.Errorf("Rule = %v, want %v", report.Outcomes[0].Rule, RuleEmailMobile)
	}
	if len(f.text.Texts()) != 0 {
		t.Error("text should not be used when a gateway email exists")
	}
	emails := f.email.Emails()
	if len(emails) != 1 || emails[0].Subject != "" {
		t.Errorf("gateway email should carry no subject: %+v", emails)
	}
}

func TestRun_FanOutToAllGateways(t *testing.T) {
	f := newEngine(t, true, false, "Verizon")
	f.run(t, []core.Contact{testutil.TextContactFixture()}, RunOptions{})

	emails := f.email.Emails()
	if len(emails) != 1 {
		t.Fatalf("sent %d emails, want 1", len(emails))
	}
	want := []string{"2025551234@txt.att.net", "2025551234@msg.fi.google.com", "2025551234@tmomail.com"}
	if diff := cmp.Diff(want, emails[0].To); diff != "" {
		t.Errorf("To mismatch (-want +got):\n%s", diff)
	}
	if emails[0].Subject != "" {
		t.Errorf("Subject = %q, want none", emails[0].Subject)
	}
}

func TestRun_FailedRuleFallsThrough(t *testing.T) {
	f := newEngine(t, true, true)
	f.email.SendFunc = func([]core.EmailAddress) error { return errors.New("smtp down") }

	amy := testutil.TextContactFixture()
	amy.EmailAddresses = []core.EmailAddress{{Address: "2025551234@vtext.com", IsPhone: true}}
	contacts := []core.Contact{amy, testutil.EmailContactFixture()}

	report := f.run(t, contacts, RunOptions{})

	if len(report.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(report.Outcomes))
	}
	first := report.Outcomes[0]
	if first.Status != StatusSent || first.Rule != RuleText {
		t.Errorf("first outcome = %+v, want sent by text", first)
	}
	if len(first.Failures) != 1 || first.Failures[0].Rule != RuleEmailMobile {
		t.Errorf("Failures = %+v", first.Failures)
	}
	if len(f.text.Texts()) != 1 {
		t.Errorf("sent %d texts, want 1", len(f.text.Texts()))
	}

	second := report.Outcomes[1]
	if second.Status != StatusNoChannel || len(second.Failures) != 1 {
		t.Errorf("second outcome = %+v", second)
	}
}

func TestRun_OneMessagePerEvent(t *testing.T) {
	f := newEngine(t, false, true)
	c := testutil.TextContactFixture()
	c.Dates = append(c.Dates, core.DateEvent{Type: core.DateAnniversary, Date: core.Date{Year: 2015, Month: 3, Day: 15}})

	f.run(t, []core.Contact{c}, RunOptions{})

	texts := f.text.Texts()
	if len(texts) != 2 {
		t.Fatalf("sent %d texts, want 2", len(texts))
	}
	if texts[0].Body != "Happy birthday Amy!" || texts[1].Body != "Happy anniversary Amy!" {
		t.Errorf("bodies = %q, %q", texts[0].Body, texts[1].Body)
	}
}

func TestRun_Salutation(t *testing.T) {
	f := newEngine(t, false, true)
	c := testutil.TextContactFixture()
	c.Nickname = "Pond"
	c.Metadata[core.FieldSalutation] = "Amelia"

	f.run(t, []core.Contact{c}, RunOptions{})

	if texts := f.text.Texts(); len(texts) != 1 || texts[0].Body != "Happy birthday Amelia!" {
		t.Errorf("texts = %+v", texts)
	}
}

func TestRun_GroupFilter(t *testing.T) {
	f := newEngine(t, true, true)
	contacts := []core.Contact{testutil.TextContactFixture(), testutil.EmailContactFixture()}

	report := f.run(t, contacts, RunOptions{Groups: []string{"FRIENDS"}})

	if len(report.Outcomes) != 1 || report.Outcomes[0].Contact != "Rory Williams" {
		t.Errorf("Outcomes = %+v", report.Outcomes)
	}
	if len(f.text.Texts()) != 0 {
		t.Error("Family contact should be filtered out")
	}

	report = f.run(t, contacts, RunOptions{Groups: []string{"Coworkers"}})
	if len(report.Outcomes) != 0 {
		t.Errorf("Outcomes = %+v, want none", report.Outcomes)
	}
}

func TestRun_NoProtocols(t *testing.T) {
	f := newEngine(t, false, false)
	report := f.run(t, []core.Contact{testutil.TextContactFixture()}, RunOptions{RunID: "run-0"})

	if report.RunID != "run-0" || len(report.Outcomes) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_RecordsDeliveries(t *testing.T) {
	f := newEngine(t, false, true)
	f.run(t, []core.Contact{testutil.TextContactFixture()}, RunOptions{RunID: "run-1", DryRun: true})

	if len(f.recorder.Deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(f.recorder.Deliveries))
	}
	d := f.recorder.Deliveries[0]
	if d.RunID != "run-1" || d.Rule != string(RuleText) || d.DateType != "BIRTHDAY" || !d.DryRun {
		t.Errorf("delivery = %+v", d)
	}
	if diff := cmp.Diff([]string{"2025551234"}, d.Recipients); diff != "" {
		t.Errorf("Recipients mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_GeneratesRunID(t *testing.T) {
	f := newEngine(t, false, true)
	report := f.run(t, nil, RunOptions{})
	if report.RunID == "" {
		t.Error("RunID should be generated")
	}
}

func TestDispatch_RecordsRunID(t *testing.T) {
	f := newEngine(t, false, true)
	outcome, err := f.engine.Dispatch(context.Background(), testutil.SenderFixture(), testutil.TextContactFixture(), testutil.FixtureToday)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if outcome.Status != StatusSent {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusSent)
	}
	if len(f.recorder.Deliveries) != 1 || f.recorder.Deliveries[0].RunID == "" {
		t.Errorf("deliveries = %+v, want one with a run id", f.recorder.Deliveries)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := newEngine(t, false, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Run(ctx, testutil.SenderFixture(), []core.Contact{testutil.TextContactFixture()}, RunOptions{Today: testutil.FixtureToday})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Preview Tests
// =============================================================================

func TestPreview(t *testing.T) {
	f := newEngine(t, true, true, "ATT", "GoogleFi", "TMobile")
	contacts := []core.Contact{
		testutil.TextContactFixture(),
		testutil.OptedOutContactFixture(),
		testutil.EmailContactFixture(),
		{DisplayName: "No Dates", GivenName: "No"},
	}

	entries := f.engine.Preview(context.Background(), contacts, nil)

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if diff := cmp.Diff([]string{"2025551234", "2025551234@vtext.com"}, entries[0].Channels); diff != "" {
		t.Errorf("Amy channels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rory@example.com"}, entries[1].Channels); diff != "" {
		t.Errorf("Rory channels mismatch (-want +got):\n%s", diff)
	}
	if entries[1].Salutation != "Rory" {
		t.Errorf("Salutation = %q", entries[1].Salutation)
	}
	if len(f.email.Emails())+len(f.text.Texts()) != 0 {
		t.Error("Preview() must not send")
	}
}

func TestFilterGroups(t *testing.T) {
	contacts := []core.Contact{testutil.TextContactFixture(), testutil.EmailContactFixture()}
	if got := FilterGroups(contacts, nil); len(got) != 2 {
		t.Errorf("FilterGroups(nil) kept %d", len(got))
	}
	if got := FilterGroups(contacts, []string{" "}); len(got) != 2 {
		t.Errorf("FilterGroups(blank) kept %d", len(got))
	}
	if got := FilterGroups(contacts, []string{"family"}); len(got) != 1 || got[0].GivenName != "Amy" {
		t.Errorf("FilterGroups(family) = %+v", got)
	}
}
