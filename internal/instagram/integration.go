package instagram

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/logging"
)

const (
	name            = "Instagram"
	identifierField = "instagram"

	// tagSearchURL prefixes a hashtag to build its lookup link.
	tagSearchURL = "http://searchinstagram.com/"

	// Over-fetch so that videos can be weeded out.
	mediaFetchCount = 20

	// At most this many items are examined, whatever their type.
	mediaConsiderLimit = 10
)

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

var availableLeadFields = []domain.LeadField{
	{Name: "full_name", Type: "string"},
	{Name: "bio", Type: "string"},
	{Name: "website", Type: "string"},
}

// Integration pulls public profile and activity data for a lead from
// Instagram. It implements domain.Integration.
type Integration struct {
	client *Client
}

// NewIntegration creates an Instagram integration backed by client.
func NewIntegration(client *Client) *Integration {
	return &Integration{client: client}
}

func (i *Integration) Name() string { return name }

func (i *Integration) IdentifierField() string { return identifierField }

func (i *Integration) SupportedFeatures() []domain.Feature {
	return []domain.Feature{domain.FeaturePublicProfile, domain.FeaturePublicActivity}
}

func (i *Integration) AvailableLeadFields() []domain.LeadField {
	out := make([]domain.LeadField, len(availableLeadFields))
	copy(out, availableLeadFields)
	return out
}

// ResolveUserID returns the id cached in cache.ID if there is one. Otherwise
// it searches for the cleaned identifier and accepts only a candidate whose
// username matches it case-insensitively: the search also returns users whose
// name merely starts with the query, so searching "alan" may yield "alanh".
func (i *Integration) ResolveUserID(ctx context.Context, identifier string, cache *domain.SocialCache) (string, error) {
	if cache.ID != "" {
		return cache.ID, nil
	}

	cleaned := domain.CleanIdentifier(identifier)
	if cleaned == "" {
		return "", domain.ErrNotFound
	}

	l := logging.Ctx(ctx)

	users, err := i.client.SearchUsers(ctx, cleaned)
	if err != nil {
		l.Warn().Err(err).Str(logging.FieldIdentifier, cleaned).Msg("instagram user search failed")
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, cleaned)
	}

	for _, u := range users {
		if strings.EqualFold(u.Username, cleaned) && u.ID != "" {
			cache.ID = string(u.ID)
			l.Debug().
				Str(logging.FieldIdentifier, cleaned).
				Str(logging.FieldExternalID, cache.ID).
				Msg("resolved instagram user")
			return cache.ID, nil
		}
	}

	l.Debug().
		Str(logging.FieldIdentifier, cleaned).
		Int("candidates", len(users)).
		Msg("no exact instagram username match")
	return "", fmt.Errorf("%w: %s", domain.ErrNotFound, cleaned)
}

// FetchProfile stores the user's profile fields plus profileImage and
// profileHandle into cache.Profile. It does nothing when the user cannot be
// resolved or the API returns no data.
func (i *Integration) FetchProfile(ctx context.Context, identifier string, cache *domain.SocialCache) {
	id, err := i.ResolveUserID(ctx, identifier, cache)
	if err != nil {
		return
	}

	user, err := i.client.GetUser(ctx, id)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str(logging.FieldExternalID, id).Msg("instagram profile fetch failed")
		return
	}
	if user == nil {
		return
	}

	info := matchUpData(user)
	info["profileImage"] = user.ProfilePicture
	info["profileHandle"] = user.Username
	cache.Profile = info
}

// FetchPublicActivity collects up to ten recent photos and the hashtags in
// their captions into cache.Activity. cache.Has.Activity ends up true only if
// the API returned at least one media item.
//
// The ten-item limit counts every item examined, videos included, so fewer
// than ten photos may be collected even when more were fetched.
func (i *Integration) FetchPublicActivity(ctx context.Context, identifier string, cache *domain.SocialCache) {
	cache.Has.Activity = false

	id, err := i.ResolveUserID(ctx, identifier, cache)
	if err != nil {
		return
	}

	items, err := i.client.RecentMedia(ctx, id, mediaFetchCount)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str(logging.FieldExternalID, id).Msg("instagram media fetch failed")
		return
	}
	if len(items) == 0 {
		return
	}

	cache.Has.Activity = true
	activity := domain.NewActivity()
	cache.Activity = activity

	for n, m := range items {
		if n >= mediaConsiderLimit {
			break
		}
		// Images without a URL still count as considered.
		if m.Type != "image" || m.Images == nil || m.Images.StandardResolution.URL == "" {
			continue
		}
		activity.Photos = append(activity.Photos, domain.Photo{URL: m.Images.StandardResolution.URL})

		if m.Caption == nil || m.Caption.Text == "" {
			continue
		}
		for _, match := range hashtagPattern.FindAllStringSubmatch(m.Caption.Text, -1) {
			tag := match[1]
			activity.AddTag(tag, tagSearchURL+tag)
		}
	}
}

// matchUpData copies the non-empty available lead fields from user.
func matchUpData(user *User) map[string]string {
	info := make(map[string]string, len(availableLeadFields)+2)
	for _, f := range availableLeadFields {
		if v, ok := user.Field(f.Name); ok && v != "" {
			info[f.Name] = v
		}
	}
	return info
}
