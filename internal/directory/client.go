package directory

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

const (
	// PersonFields are the fields read for every connection
	PersonFields = "names,nicknames,emailAddresses,phoneNumbers,birthdays,events,userDefined,addresses"
	// ProfileFields are the fields read for the authenticated user
	ProfileFields = "names,emailAddresses,phoneNumbers"

	selfResource    = "people/me"
	systemGroupType = "SYSTEM_CONTACT_GROUP"
	maxGroupMembers = 1000
)

// builtinGroups are never offered as filters, whatever their type
var builtinGroups = map[string]bool{
	"all":         true,
	"my contacts": true,
	"mycontacts":  true,
	"starred":     true,
}

// Source is the raw directory
type Source interface {
	Profile(ctx context.Context) (*people.Person, error)
	Connections(ctx context.Context) ([]*people.Person, error)
	Groups(ctx context.Context) ([]core.ContactGroup, error)
}

// Client wraps the People API
type Client struct {
	service  *people.Service
	pageSize int64
}

// ClientOption configures NewClient
type ClientOption func(*clientOptions)

type clientOptions struct {
	endpoint string
	pageSize int64
}

// WithEndpoint points the client at another base URL
func WithEndpoint(url string) ClientOption {
	return func(o *clientOptions) { o.endpoint = url }
}

// WithPageSize sets the connections page size
func WithPageSize(n int64) ClientOption {
	return func(o *clientOptions) { o.pageSize = n }
}

// NewClient creates a People API client on an authorized HTTP client
func NewClient(ctx context.Context, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	o := clientOptions{pageSize: 10}
	for _, opt := range opts {
		opt(&o)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := people.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create people service: %w", err)
	}
	return &Client{service: svc, pageSize: o.pageSize}, nil
}

// Profile reads the authenticated user
func (c *Client) Profile(ctx context.Context) (*people.Person, error) {
	p, err := c.service.People.Get(selfResource).PersonFields(ProfileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Connections pages through every contact of the user
func (c *Client) Connections(ctx context.Context) ([]*people.Person, error) {
	var all []*people.Person
	pageToken := ""

	for page := 1; ; page++ {
		call := c.service.People.Connections.List(selfResource).
			PersonFields(PersonFields).
			PageSize(c.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list connections page %d: %w", page, err)
		}

		logging.Debug("Fetched connections", "page", page, "from", len(all), "to", len(all)+len(resp.Connections))
		all = append(all, resp.Connections...)

		if resp.NextPageToken == "" {
			return all, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Groups lists the user's own contact groups with their members
func (c *Client) Groups(ctx context.Context) ([]core.ContactGroup, error) {
	var groups []core.ContactGroup
	pageToken := ""

	for {
		call := c.service.ContactGroups.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list contact groups: %w", err)
		}

		for _, g := range resp.ContactGroups {
			if g.GroupType == systemGroupType || builtinGroups[strings.ToLower(g.Name)] {
				continue
			}

			full, err := c.service.ContactGroups.Get(g.ResourceName).MaxMembers(maxGroupMembers).Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("get contact group %s: %w", g.Name, err)
			}

			members := make(map[string]bool, len(full.MemberResourceNames))
			for _, m := range full.MemberResourceNames {
				members[m] = true
			}
			groups = append(groups, core.ContactGroup{Name: full.Name, Members: members})
		}

		if resp.NextPageToken == "" {
			return groups, nil
		}
		pageToken = resp.NextPageToken
	}
}
