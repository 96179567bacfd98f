// Package onesignal is a thin client for the OneSignal REST API, covering
// the user-identity and email-notification operations this service uses.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const defaultBaseURL = "https://api.onesignal.com"

// Client wraps OneSignal API access. One long-lived instance is constructed
// at process start and shared by every request.
type Client struct {
	appID   string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a new OneSignal client.
func NewClient(appID, apiKey string) *Client {
	return &Client{
		appID:   appID,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Identity is OneSignal's view of a subscriber: the onesignal_id, the tag
// map, and the id of the email channel subscription.
type Identity struct {
	UserID              string
	EmailSubscriptionID string
	Tags                map[string]string
}

// CreateIdentityParams carries everything needed to register a subscriber
// with OneSignal. The geo fields are optional hints.
type CreateIdentityParams struct {
	Email     string
	Tags      map[string]string
	IP        string
	Latitude  *float64
	Longitude *float64
	Timezone  string
}

type apiUser struct {
	Identity      map[string]string `json:"identity"`
	Properties    *apiProperties    `json:"properties,omitempty"`
	Subscriptions []apiSubscription `json:"subscriptions,omitempty"`
}

type apiProperties struct {
	Tags       map[string]string `json:"tags,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Lat        *float64          `json:"lat,omitempty"`
	Long       *float64          `json:"long,omitempty"`
	TimezoneID string            `json:"timezone_id,omitempty"`
}

type apiSubscription struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// CreateIdentity registers a new OneSignal user with an email channel
// subscription and returns the ids the local store must remember.
func (c *Client) CreateIdentity(ctx context.Context, p CreateIdentityParams) (*Identity, error) {
	body := apiUser{
		Identity: map[string]string{"email": p.Email},
		Properties: &apiProperties{
			Tags:       p.Tags,
			IP:         p.IP,
			Lat:        p.Latitude,
			Long:       p.Longitude,
			TimezoneID: p.Timezone,
		},
		Subscriptions: []apiSubscription{{Type: "Email", Token: p.Email}},
	}

	var resp apiUser
	path := fmt.Sprintf("/apps/%s/users", c.appID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("create onesignal user: %w", err)
	}

	identity := identityFromAPI(&resp)
	if identity.UserID == "" || identity.EmailSubscriptionID == "" {
		return nil, fmt.Errorf("onesignal user response missing ids (onesignal_id=%q)", identity.UserID)
	}
	log.Printf("[OneSignal] Created user %s with email subscription %s", identity.UserID, identity.EmailSubscriptionID)
	return identity, nil
}

// FindIdentityByEmail returns the identity aliased by email, or nil when
// OneSignal does not know the address.
func (c *Client) FindIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	return c.findIdentity(ctx, "email", email)
}

// FindIdentityByID returns the identity for a onesignal_id, or nil.
func (c *Client) FindIdentityByID(ctx context.Context, id string) (*Identity, error) {
	return c.findIdentity(ctx, "onesignal_id", id)
}

func (c *Client) findIdentity(ctx context.Context, aliasLabel, aliasID string) (*Identity, error) {
	var resp apiUser
	path := fmt.Sprintf("/apps/%s/users/by/%s/%s", c.appID, aliasLabel, aliasID)

	// Lookups are idempotent, so transient failures are retried.
	err := retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, &resp)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, errNotFound)
		}),
	)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get onesignal user by %s: %w", aliasLabel, err)
	}
	return identityFromAPI(&resp), nil
}

// UpdateTags replaces the user's topic tags.
func (c *Client) UpdateTags(ctx context.Context, oneSignalUserID string, tags map[string]string) error {
	body := map[string]any{
		"properties": map[string]any{"tags": tags},
	}
	path := fmt.Sprintf("/apps/%s/users/by/onesignal_id/%s", c.appID, oneSignalUserID)
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update onesignal tags: %w", err)
	}
	return nil
}

type apiNotification struct {
	AppID                  string         `json:"app_id"`
	TemplateID             string         `json:"template_id,omitempty"`
	TargetChannel          string         `json:"target_channel"`
	EmailSubject           string         `json:"email_subject"`
	CustomData             map[string]any `json:"custom_data,omitempty"`
	IncludeSubscriptionIDs []string       `json:"include_subscription_ids,omitempty"`
	IncludedSegments       []string       `json:"included_segments,omitempty"`
}

// SendToSubscription sends a templated email notification to one channel
// subscription.
func (c *Client) SendToSubscription(ctx context.Context, subscriptionID, templateID, subject string, data map[string]any) error {
	return c.createNotification(ctx, apiNotification{
		AppID:                  c.appID,
		TemplateID:             templateID,
		TargetChannel:          "email",
		EmailSubject:           subject,
		CustomData:             data,
		IncludeSubscriptionIDs: []string{subscriptionID},
	})
}

// SendToSegment broadcasts a templated email notification to a named
// audience segment. OneSignal fans out to its members.
func (c *Client) SendToSegment(ctx context.Context, segment, templateID, subject string, data map[string]any) error {
	return c.createNotification(ctx, apiNotification{
		AppID:            c.appID,
		TemplateID:       templateID,
		TargetChannel:    "email",
		EmailSubject:     subject,
		CustomData:       data,
		IncludedSegments: []string{segment},
	})
}

func (c *Client) createNotification(ctx context.Context, n apiNotification) error {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/notifications", n, &resp); err != nil {
		return fmt.Errorf("create onesignal notification: %w", err)
	}
	log.Printf("[OneSignal] Notification created: %s", resp.ID)
	return nil
}

var errNotFound = errors.New("onesignal: not found")

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onesignal %s %s: HTTP %d: %s", method, path, resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func identityFromAPI(u *apiUser) *Identity {
	identity := &Identity{UserID: u.Identity["onesignal_id"]}
	if u.Properties != nil {
		identity.Tags = u.Properties.Tags
	}
	for _, s := range u.Subscriptions {
		if s.Type == "Email" {
			identity.EmailSubscriptionID = s.ID
			break
		}
	}
	return identity
}
