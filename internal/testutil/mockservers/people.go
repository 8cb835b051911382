// Package mockservers provides httptest mock servers for external APIs.
package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// PeopleMockServer provides a mock Google People API server for testing.
// Point a client at URL() + "/".
type PeopleMockServer struct {
	Server *httptest.Server

	mu          sync.Mutex
	profile     map[string]any
	connections []map[string]any
	groups      []map[string]any
	failures    int
	failStatus  int
	requests    []string
}

// NewPeopleMockServer creates a new mock People API server.
func NewPeopleMockServer(t *testing.T) *PeopleMockServer {
	t.Helper()

	mock := &PeopleMockServer{}
	mock.SetupDefaults()

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.serve))
	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// SetupDefaults installs a profile, three connections and one user group.
func (m *PeopleMockServer) SetupDefaults() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = Person("people/me", "Clara", "Clara Oswald").
		Phone("+12025550199", "mobile", true).
		Email("clara@example.com", "home", true).
		Build()

	m.connections = []map[string]any{
		Person("people/c1", "Amy", "Amy Pond").
			Phone("+12025551234", "mobile", true).
			Birthday(0, 3, 15, true).
			Build(),
		Person("people/c2", "Rory", "Rory Williams").
			Email("rory@example.com", "home", true).
			Event("anniversary", 2010, 6, 26).
			Build(),
		Person("people/c3", "", "River Song").
			UserDefined("BOT_OPT_OUT", "true").
			Birthday(1980, 3, 15, true).
			Build(),
	}

	m.groups = []map[string]any{
		{"resourceName": "contactGroups/myContacts", "name": "myContacts", "groupType": "SYSTEM_CONTACT_GROUP", "memberResourceNames": []string{"people/c1", "people/c2", "people/c3"}},
		{"resourceName": "contactGroups/family", "name": "Family", "groupType": "USER_CONTACT_GROUP", "memberResourceNames": []string{"people/c1"}},
	}
}

// URL returns the mock server URL.
func (m *PeopleMockServer) URL() string {
	return m.Server.URL
}

// SetConnections replaces the connections served.
func (m *PeopleMockServer) SetConnections(people ...map[string]any) {
	m.mu.Lock()
	m.connections = people
	m.mu.Unlock()
}

// SetProfile replaces the people/me record.
func (m *PeopleMockServer) SetProfile(profile map[string]any) {
	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()
}

// SetGroups replaces the contact groups served.
func (m *PeopleMockServer) SetGroups(groups ...map[string]any) {
	m.mu.Lock()
	m.groups = groups
	m.mu.Unlock()
}

// FailNext answers the next n requests with status.
func (m *PeopleMockServer) FailNext(n, status int) {
	m.mu.Lock()
	m.failures = n
	m.failStatus = status
	m.mu.Unlock()
}

// Requests returns the request paths received so far.
func (m *PeopleMockServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// Count returns how many requests hit path.
func (m *PeopleMockServer) Count(path string) int {
	n := 0
	for _, p := range m.Requests() {
		if p == path {
			n++
		}
	}
	return n
}

func (m *PeopleMockServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	if m.failures > 0 {
		m.failures--
		writeError(w, m.failStatus)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/v1/people/me/connections":
		m.listConnections(w, r)
	case path == "/v1/people/me":
		json.NewEncoder(w).Encode(m.profile)
	case path == "/v1/contactGroups":
		list := make([]map[string]any, 0, len(m.groups))
		for _, g := range m.groups {
			summary := map[string]any{}
			for k, v := range g {
				if k != "memberResourceNames" {
					summary[k] = v
				}
			}
			list = append(list, summary)
		}
		json.NewEncoder(w).Encode(map[string]any{"contactGroups": list, "totalItems": len(list)})
	case strings.HasPrefix(path, "/v1/contactGroups/"):
		name := strings.TrimPrefix(path, "/v1/")
		for _, g := range m.groups {
			if g["resourceName"] == name {
				json.NewEncoder(w).Encode(g)
				return
			}
		}
		writeError(w, http.StatusNotFound)
	default:
		writeError(w, http.StatusNotFound)
	}
}

func (m *PeopleMockServer) listConnections(w http.ResponseWriter, r *http.Request) {
	size, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || size <= 0 {
		size = 100
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	if start > len(m.connections) {
		start = len(m.connections)
	}
	end := start + size
	if end > len(m.connections) {
		end = len(m.connections)
	}

	resp := map[string]any{
		"connections": m.connections[start:end],
		"totalPeople": len(m.connections),
	}
	if end < len(m.connections) {
		resp["nextPageToken"] = strconv.Itoa(end)
	}
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": http.StatusText(status),
		},
	})
}

// PersonBuilder builds People API person JSON.
type PersonBuilder struct {
	p map[string]any
}

// Person starts a record. An empty displayName omits the names block.
func Person(resourceName, givenName, displayName string) *PersonBuilder {
	p := map[string]any{"resourceName": resourceName}
	if displayName != "" || givenName != "" {
		name := map[string]any{}
		if displayName != "" {
			name["displayName"] = displayName
		}
		if givenName != "" {
			name["givenName"] = givenName
		}
		p["names"] = []any{name}
	}
	return &PersonBuilder{p: p}
}

func (b *PersonBuilder) add(key string, v map[string]any) *PersonBuilder {
	list, _ := b.p[key].([]any)
	b.p[key] = append(list, v)
	return b
}

// Phone adds a phone number with its canonical form.
func (b *PersonBuilder) Phone(canonical, label string, sourcePrimary bool) *PersonBuilder {
	return b.add("phoneNumbers", map[string]any{
		"value":         canonical,
		"canonicalForm": canonical,
		"type":          label,
		"metadata":      map[string]any{"primary": sourcePrimary, "sourcePrimary": sourcePrimary},
	})
}

// RawPhone adds a phone number without a canonical form.
func (b *PersonBuilder) RawPhone(value, label string) *PersonBuilder {
	return b.add("phoneNumbers", map[string]any{"value": value, "type": label})
}

// Email adds an email address.
func (b *PersonBuilder) Email(address, label string, primary bool) *PersonBuilder {
	return b.add("emailAddresses", map[string]any{
		"value":    address,
		"type":     label,
		"metadata": map[string]any{"primary": primary},
	})
}

// Address adds a postal address.
func (b *PersonBuilder) Address(postalCode, label string) *PersonBuilder {
	return b.add("addresses", map[string]any{"postalCode": postalCode, "type": label})
}

// Birthday adds a birthday; year 0 omits the year.
func (b *PersonBuilder) Birthday(year, month, day int, primary bool) *PersonBuilder {
	return b.add("birthdays", map[string]any{
		"date":     date(year, month, day),
		"metadata": map[string]any{"primary": primary},
	})
}

// Event adds a dated event.
func (b *PersonBuilder) Event(eventType string, year, month, day int) *PersonBuilder {
	return b.add("events", map[string]any{"type": eventType, "date": date(year, month, day)})
}

// Nickname adds a nickname.
func (b *PersonBuilder) Nickname(value string) *PersonBuilder {
	return b.add("nicknames", map[string]any{"value": value})
}

// UserDefined adds a custom field.
func (b *PersonBuilder) UserDefined(key, value string) *PersonBuilder {
	return b.add("userDefined", map[string]any{"key": key, "value": value})
}

// Build returns the record.
func (b *PersonBuilder) Build() map[string]any {
	return b.p
}

func date(year, month, day int) map[string]any {
	d := map[string]any{"month": month, "day": day}
	if year != 0 {
		d["year"] = year
	}
	return d
}
