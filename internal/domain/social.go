package domain

// Feature names an optional capability an integration can provide.
type Feature string

const (
	FeaturePublicProfile  Feature = "public_profile"
	FeaturePublicActivity Feature = "public_activity"
)

// SocialCache is the per-lead, per-network snapshot of data pulled from a
// social network. The JSON field names are the persisted document format.
type SocialCache struct {
	// ID is the resolved remote user id. Once set it is authoritative and is
	// only re-resolved after the cache is cleared.
	ID string `json:"id,omitempty"`

	// Profile maps lead field names to values pulled from the remote profile.
	Profile map[string]string `json:"profile,omitempty"`

	Activity *Activity `json:"activity,omitempty"`

	Has Has `json:"has"`
}

// Has carries presence flags for the optional sections of a SocialCache.
type Has struct {
	Activity bool `json:"activity"`
}

// Activity is recent public activity plus hashtag statistics derived from it.
type Activity struct {
	Photos []Photo              `json:"photos"`
	Tags   map[string]*TagCount `json:"tags"`
}

// Photo is a single image from the activity stream.
type Photo struct {
	URL string `json:"url"`
}

// TagCount is the number of times a hashtag appeared and a lookup URL for it.
type TagCount struct {
	Count int    `json:"count"`
	URL   string `json:"url"`
}

// NewActivity returns an Activity with empty, non-nil containers.
func NewActivity() *Activity {
	return &Activity{
		Photos: []Photo{},
		Tags:   map[string]*TagCount{},
	}
}

// AddTag increments the count for tag, inserting it with count 1 and the
// given lookup URL if it has not been seen yet.
func (a *Activity) AddTag(tag, url string) {
	if tc, ok := a.Tags[tag]; ok {
		tc.Count++
		return
	}
	a.Tags[tag] = &TagCount{Count: 1, URL: url}
}

// LeadField describes a lead field an integration can populate.
type LeadField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
