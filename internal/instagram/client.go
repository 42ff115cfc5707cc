package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.instagram.com/v1"

// Client is a minimal Instagram REST API client. Every request is a GET
// authenticated with the access_token query parameter.
type Client struct {
	base        string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a new Instagram API client. If base is empty, it defaults
// to https://api.instagram.com/v1.
func NewClient(base, accessToken string) *Client {
	if base == "" {
		base = defaultAPIBase
	}
	return &Client{
		base:        strings.TrimRight(base, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ID is a remote user id. The API has served ids both as JSON strings and as
// numbers, so both are accepted.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// SearchUser is a single candidate returned by users/search.
type SearchUser struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

// User is the data payload of users/{id}.
type User struct {
	ID             ID     `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	Bio            string `json:"bio"`
	Website        string `json:"website"`
	ProfilePicture string `json:"profile_picture"`
}

// Field returns the value of a remote profile field by its API name.
func (u *User) Field(name string) (string, bool) {
	switch name {
	case "id":
		return string(u.ID), true
	case "username":
		return u.Username, true
	case "full_name":
		return u.FullName, true
	case "bio":
		return u.Bio, true
	case "website":
		return u.Website, true
	case "profile_picture":
		return u.ProfilePicture, true
	default:
		return "", false
	}
}

// Media is one item of users/{id}/media/recent.
type Media struct {
	Type    string   `json:"type"`
	Images  *Images  `json:"images,omitempty"`
	Caption *Caption `json:"caption,omitempty"`
}

type Images struct {
	StandardResolution ImageRef `json:"standard_resolution"`
}

type ImageRef struct {
	URL string `json:"url"`
}

type Caption struct {
	Text string `json:"text"`
}

// SearchUsers calls users/search with q set to query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]SearchUser, error) {
	var resp struct {
		Data []SearchUser `json:"data"`
	}
	if err := c.get(ctx, "/users/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return resp.Data, nil
}

// GetUser calls users/{id}. It returns nil when the response has no data.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var resp struct {
		Data *User `json:"data"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return resp.Data, nil
}

// RecentMedia calls users/{id}/media/recent asking for up to count items.
func (c *Client) RecentMedia(ctx context.Context, id string, count int) ([]Media, error) {
	var resp struct {
		Data []Media `json:"data"`
	}
	q := url.Values{"count": {strconv.Itoa(count)}}
	if err := c.get(ctx, "/users/"+url.PathEscape(id)+"/media/recent", q, &resp); err != nil {
		return nil, fmt.Errorf("recent media: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.accessToken != "" {
		query.Set("access_token", c.accessToken)
	}

	endpoint := c.base + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
