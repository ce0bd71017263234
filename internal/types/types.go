package types

import (
	"fmt"
	"time"
)

type User struct {
	ID        int        `json:"id"`
	Subject   string     `json:"subject"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Created   time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

// MediaItem is a movie as reported by the library server. Optional metadata
// has explicit zero values: no year, rating 0, empty cast and directors.
type MediaItem struct {
	Key           string     `json:"rating_key"`
	Title         string     `json:"title"`
	Year          *int       `json:"year"`
	Rating        float64    `json:"rating"`
	Cast          []string   `json:"actors"`
	Directors     []string   `json:"directors"`
	Watched       bool       `json:"watched"`
	LastViewedAt  *time.Time `json:"last_viewed_at"`
	Summary       string     `json:"summary"`
	Thumb         string     `json:"thumb"`
	Duration      int        `json:"duration"`
	ContentRating string     `json:"content_rating"`
}

// Decade returns the canonical decade label ("1990s") or "" when the year is unknown.
func (m MediaItem) Decade() string {
	if m.Year == nil {
		return ""
	}
	return DecadeOf(*m.Year)
}

func DecadeOf(year int) string {
	return fmt.Sprintf("%ds", (year/10)*10)
}

// RatingTier is the integer bucket for the item's rating; 0 means unrated.
func (m MediaItem) RatingTier() int {
	if m.Rating <= 0 {
		return 0
	}
	return int(m.Rating)
}

// FilterMode selects which mode-specific filter stage runs.
type FilterMode string

const (
	FilterModeLinked FilterMode = "linked"
	FilterModeSearch FilterMode = "search"
)

// LinkType selects the credit list compared in linked mode.
type LinkType string

const (
	LinkTypeActors    LinkType = "actors"
	LinkTypeDirectors LinkType = "directors"
)

type Preferences struct {
	ID                       int        `json:"-"`
	UserID                   int        `json:"-"`
	ExcludeWatched           bool       `json:"exclude_watched"`
	FilterMode               FilterMode `json:"filter_mode"`
	LinkType                 LinkType   `json:"link_type"`
	FilterDecade             string     `json:"filter_decade"`
	FilterActor              string     `json:"filter_actor"`
	PlaylistID               string     `json:"playlist_id"`
	SelectedClientName       string     `json:"selected_client_name"`
	SelectedClientIdentifier string     `json:"selected_client_identifier"`
	// Retained for older clients; not consulted by the filters.
	ExcludeSameActors   bool      `json:"exclude_same_actors"`
	ExcludeSameDirector bool      `json:"exclude_same_director"`
	Created             time.Time `json:"created_at"`
	Updated             time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences a user starts with.
func DefaultPreferences(userID int) Preferences {
	return Preferences{
		UserID:         userID,
		ExcludeWatched: true,
		FilterMode:     FilterModeLinked,
		LinkType:       LinkTypeActors,
	}
}

// PreferencesPatch carries a partial preferences update; nil fields are left untouched.
type PreferencesPatch struct {
	ExcludeWatched           *bool   `json:"exclude_watched"`
	FilterMode               *string `json:"filter_mode" validate:"omitempty,oneof=linked search"`
	LinkType                 *string `json:"link_type" validate:"omitempty,oneof=actors directors"`
	FilterDecade             *string `json:"filter_decade" validate:"omitempty,decade"`
	FilterActor              *string `json:"filter_actor" validate:"omitempty,max=200"`
	SelectedClientName       *string `json:"selected_client_name" validate:"omitempty,max=200"`
	SelectedClientIdentifier *string `json:"selected_client_identifier" validate:"omitempty,max=200"`
	ExcludeSameActors        *bool   `json:"exclude_same_actors"`
	ExcludeSameDirector      *bool   `json:"exclude_same_director"`
}

// Apply copies the set fields of the patch onto prefs.
func (p PreferencesPatch) Apply(prefs *Preferences) {
	if p.ExcludeWatched != nil {
		prefs.ExcludeWatched = *p.ExcludeWatched
	}
	if p.FilterMode != nil {
		prefs.FilterMode = FilterMode(*p.FilterMode)
	}
	if p.LinkType != nil {
		prefs.LinkType = LinkType(*p.LinkType)
	}
	if p.FilterDecade != nil {
		prefs.FilterDecade = *p.FilterDecade
	}
	if p.FilterActor != nil {
		prefs.FilterActor = *p.FilterActor
	}
	if p.SelectedClientName != nil {
		prefs.SelectedClientName = *p.SelectedClientName
	}
	if p.SelectedClientIdentifier != nil {
		prefs.SelectedClientIdentifier = *p.SelectedClientIdentifier
	}
	if p.ExcludeSameActors != nil {
		prefs.ExcludeSameActors = *p.ExcludeSameActors
	}
	if p.ExcludeSameDirector != nil {
		prefs.ExcludeSameDirector = *p.ExcludeSameDirector
	}
}

// PassWindow is how long a passed movie stays out of recommendations.
const PassWindow = 180 * 24 * time.Hour

type PassedRecord struct {
	ID        int       `json:"id"`
	UserID    int       `json:"-"`
	RatingKey string    `json:"rating_key"`
	Title     string    `json:"title"`
	PassedAt  time.Time `json:"passed_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsExpired bool      `json:"is_expired"`
}

// Expired reports whether the pass no longer excludes the movie at now.
func (r PassedRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Linkage names the person connecting a recommendation to the last watched movie.
type Linkage struct {
	Type LinkType `json:"type"`
	Name string   `json:"name"`
}

// ClientDescriptor is a playback client that can receive remote commands.
type ClientDescriptor struct {
	Name             string `json:"name"`
	ClientIdentifier string `json:"client_identifier"`
	Product          string `json:"product"`
	Platform         string `json:"platform"`
	Device           string `json:"device"`
	Address          string `json:"address"`
	Port             int    `json:"port"`
	Protocol         string `json:"protocol"`
	BaseURL          string `json:"-"`
	IsServer         bool   `json:"-"`
}

// URL returns the base URL used to send player commands to the client.
func (c ClientDescriptor) URL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	protocol := c.Protocol
	if protocol == "" {
		protocol = "http"
	}
	port := c.Port
	if port == 0 {
		port = 32500
	}
	return fmt.Sprintf("%s://%s:%d", protocol, c.Address, port)
}

// PlaybackSession is an active stream reported by the server.
type PlaybackSession struct {
	SessionKey string
	RatingKey  string
	Title      string
	State      string
	Player     ClientDescriptor
}

// RegisteredDevice is a device linked to the Plex account.
type RegisteredDevice struct {
	Name             string
	ClientIdentifier string
	Product          string
	Platform         string
	Device           string
	IsServer         bool
	ConnectionURIs   []string
}

type PlayQueue struct {
	ID                int
	SelectedItemID    int
	MachineIdentifier string
}

// PlaylistEntry is an item inside a playlist together with its playlist-scoped id.
type PlaylistEntry struct {
	EntryID string
	Item    MediaItem
}

type DeliveryStatus string

const (
	DeliveryOK                   DeliveryStatus = "ok"
	DeliveryNeedsClientSelection DeliveryStatus = "needs-client-selection"
	DeliveryFailed               DeliveryStatus = "failed"
)

type DeliveryOutcome struct {
	Status       DeliveryStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ManualLink   string         `json:"manual_link"`
	StrategyUsed string         `json:"strategy_used,omitempty"`
	ClientName   string         `json:"client_name,omitempty"`
}

type PlaylistAddResult struct {
	PlaylistID     string `json:"playlist_id"`
	Added          bool   `json:"added"`
	AlreadyPresent bool   `json:"already_present"`
	RemovedWatched int    `json:"removed_watched"`
	Message        string `json:"message"`
}
