package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"moviepicker/internal/logging"
	"moviepicker/internal/types"
)

// SectionFinder discovers the movie library section on the server.
type SectionFinder interface {
	FindMovieSection(ctx context.Context, libraryName string) (string, error)
}

type PlexClientConfig struct {
	BaseURL           string
	Token             string
	ClientIdentifier  string
	LibraryName       string
	LibrarySection    string
	MachineIdentifier string
	Timeout           time.Duration
}

// PlexClient talks to a single Plex Media Server over its JSON API. It is the
// catalog source, the player transport and the playlist library.
type PlexClient struct {
	baseURL      string
	token        string
	clientID     string
	product      string
	version      string
	device       string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	retryBackoff time.Duration
	sections     SectionFinder
	libraryName  string
	commandID    atomic.Int64

	mu        sync.Mutex
	sectionID string
	machineID string
}

func NewPlexClient(cfg PlexClientConfig, sections SectionFinder) *PlexClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	clientID := cfg.ClientIdentifier
	if clientID == "" {
		clientID = "moviepicker-" + uuid.NewString()
	}
	return &PlexClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		clientID:     clientID,
		product:      "Movie Picker",
		version:      "1.0.0",
		device:       "Server",
		httpClient:   &http.Client{Timeout: timeout},
		breaker:      newPlexBreaker("plex-server"),
		retryBackoff: 500 * time.Millisecond,
		sections:     sections,
		libraryName:  cfg.LibraryName,
		sectionID:    cfg.LibrarySection,
		machineID:    cfg.MachineIdentifier,
	}
}

func (p *PlexClient) BaseURL() string {
	return p.baseURL
}

type plexTag struct {
	Tag string `json:"tag"`
}

type plexPlayer struct {
	Address           string `json:"address"`
	MachineIdentifier string `json:"machineIdentifier"`
	Platform          string `json:"platform"`
	Product           string `json:"product"`
	Title             string `json:"title"`
	Device            string `json:"device"`
	State             string `json:"state"`
	Port              int    `json:"port"`
}

type plexMetadata struct {
	RatingKey      string      `json:"ratingKey"`
	Type           string      `json:"type"`
	Title          string      `json:"title"`
	Year           int         `json:"year"`
	AudienceRating float64     `json:"audienceRating"`
	UserRating     float64     `json:"userRating"`
	Rating         float64     `json:"rating"`
	ViewCount      int         `json:"viewCount"`
	LastViewedAt   int64       `json:"lastViewedAt"`
	Summary        string      `json:"summary"`
	Thumb          string      `json:"thumb"`
	Duration       int         `json:"duration"`
	ContentRating  string      `json:"contentRating"`
	PlaylistItemID int         `json:"playlistItemID"`
	SessionKey     string      `json:"sessionKey"`
	Role           []plexTag   `json:"Role"`
	Director       []plexTag   `json:"Director"`
	Player         *plexPlayer `json:"Player"`
}

type plexClientEntry struct {
	Name              string `json:"name"`
	Host              string `json:"host"`
	Address           string `json:"address"`
	Port              int    `json:"port"`
	MachineIdentifier string `json:"machineIdentifier"`
	Product           string `json:"product"`
	Protocol          string `json:"protocol"`
	DeviceClass       string `json:"deviceClass"`
}

type plexContainer struct {
	MediaContainer struct {
		Size                    int               `json:"size"`
		MachineIdentifier       string            `json:"machineIdentifier"`
		PlayQueueID             int               `json:"playQueueID"`
		PlayQueueSelectedItemID int               `json:"playQueueSelectedItemID"`
		Metadata                []plexMetadata    `json:"Metadata"`
		Server                  []plexClientEntry `json:"Server"`
	} `json:"MediaContainer"`
}

func (m plexMetadata) toMediaItem() types.MediaItem {
	item := types.MediaItem{
		Key:           m.RatingKey,
		Title:         m.Title,
		Rating:        m.rating(),
		Cast:          tagNames(m.Role),
		Directors:     tagNames(m.Director),
		Watched:       m.ViewCount > 0,
		Summary:       m.Summary,
		Thumb:         m.Thumb,
		Duration:      m.Duration,
		ContentRating: m.ContentRating,
	}
	if m.Year > 0 {
		year := m.Year
		item.Year = &year
	}
	if m.LastViewedAt > 0 {
		viewed := time.Unix(m.LastViewedAt, 0).UTC()
		item.LastViewedAt = &viewed
	}
	return item
}

// rating prefers the audience rating, then the user rating, then the critic rating.
func (m plexMetadata) rating() float64 {
	for _, r := range []float64{m.AudienceRating, m.UserRating, m.Rating} {
		if r > 0 {
			return r
		}
	}
	return 0
}

func tagNames(tags []plexTag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Tag != "" {
			names = append(names, t.Tag)
		}
	}
	return names
}

func (p *PlexClient) movieSection(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sectionID != "" {
		return p.sectionID, nil
	}
	if p.sections == nil {
		return "", fmt.Errorf("no library section configured")
	}
	id, err := p.sections.FindMovieSection(ctx, p.libraryName)
	if err != nil {
		return "", err
	}
	p.sectionID = id
	logging.Info().Str("section", id).Str("library", p.libraryName).Msg("Resolved movie library section")
	return id, nil
}

// ListMovies returns every movie in the configured library section.
func (p *PlexClient) ListMovies(ctx context.Context) ([]types.MediaItem, error) {
	section, err := p.movieSection(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve movie library: %w", err)
	}

	var container plexContainer
	err = p.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   "/library/sections/" + url.PathEscape(section) + "/all",
		query:  url.Values{"type": {"1"}},
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	items := make([]types.MediaItem, 0, len(container.MediaContainer.Metadata))
	for _, m := range container.MediaContainer.Metadata {
		if m.Type != "" && m.Type != "movie" {
			continue
		}
		items = append(items, m.toMediaItem())
	}
	return items, nil
}

// Details returns full metadata for one item, or nil when the server does not have it.
func (p *PlexClient) Details(ctx context.Context, key string) (*types.MediaItem, error) {
	var container plexContainer
	err := p.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   "/library/metadata/" + url.PathEscape(key),
	}, &container)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("movie details: %w", err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, nil
	}
	item := container.MediaContainer.Metadata[0].toMediaItem()
	return &item, nil
}

// ServerIdentity returns the server's machine identifier, cached after the first lookup.
func (p *PlexClient) ServerIdentity(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.machineID != "" {
		id := p.machineID
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	var container plexContainer
	if err := p.doRequest(ctx, requestConfig{method: http.MethodGet, path: "/identity"}, &container); err != nil {
		return "", fmt.Errorf("server identity: %w", err)
	}
	id := container.MediaContainer.MachineIdentifier
	if id == "" {
		return "", fmt.Errorf("server identity: empty machine identifier")
	}

	p.mu.Lock()
	p.machineID = id
	p.mu.Unlock()
	return id, nil
}

// AvailableClients lists players currently advertising remote control to the server.
func (p *PlexClient) AvailableClients(ctx context.Context) ([]types.ClientDescriptor, error) {
	var container plexContainer
	if err := p.doRequest(ctx, requestConfig{method: http.MethodGet, path: "/clients"}, &container); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	clients := make([]types.ClientDescriptor, 0, len(container.MediaContainer.Server))
	for _, c := range container.MediaContainer.Server {
		address := c.Address
		if address == "" {
			address = c.Host
		}
		clients = append(clients, types.ClientDescriptor{
			Name:             c.Name,
			ClientIdentifier: c.MachineIdentifier,
			Product:          c.Product,
			Device:           c.DeviceClass,
			Address:          address,
			Port:             c.Port,
			Protocol:         c.Protocol,
		})
	}
	return clients, nil
}

// ActiveSessions lists streams currently playing, with the player driving each.
func (p *PlexClient) ActiveSessions(ctx context.Context) ([]types.PlaybackSession, error) {
	var container plexContainer
	if err := p.doRequest(ctx, requestConfig{method: http.MethodGet, path: "/status/sessions"}, &container); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]types.PlaybackSession, 0, len(container.MediaContainer.Metadata))
	for _, m := range container.MediaContainer.Metadata {
		if m.Player == nil {
			continue
		}
		sessions = append(sessions, types.PlaybackSession{
			SessionKey: m.SessionKey,
			RatingKey:  m.RatingKey,
			Title:      m.Title,
			State:      m.Player.State,
			Player: types.ClientDescriptor{
				Name:             m.Player.Title,
				ClientIdentifier: m.Player.MachineIdentifier,
				Product:          m.Player.Product,
				Platform:         m.Player.Platform,
				Device:           m.Player.Device,
				Address:          m.Player.Address,
				Port:             m.Player.Port,
			},
		})
	}
	return sessions, nil
}

func (p *PlexClient) libraryURI(machineID, key string) string {
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, key)
}

// CreatePlayQueue creates a single-item play queue for the movie.
func (p *PlexClient) CreatePlayQueue(ctx context.Context, item types.MediaItem) (*types.PlayQueue, error) {
	machineID, err := p.ServerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var container plexContainer
	err = p.doRequest(ctx, requestConfig{
		method: http.MethodPost,
		path:   "/playQueues",
		query: url.Values{
			"type":       {"video"},
			"uri":        {p.libraryURI(machineID, item.Key)},
			"shuffle":    {"0"},
			"repeat":     {"0"},
			"continuous": {"0"},
			"own":        {"1"},
		},
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("create play queue: %w", err)
	}
	if container.MediaContainer.PlayQueueID == 0 {
		return nil, fmt.Errorf("create play queue: server returned no queue id")
	}

	return &types.PlayQueue{
		ID:                container.MediaContainer.PlayQueueID,
		SelectedItemID:    container.MediaContainer.PlayQueueSelectedItemID,
		MachineIdentifier: machineID,
	}, nil
}

func (p *PlexClient) playMediaQuery(item types.MediaItem, queue *types.PlayQueue) url.Values {
	q := url.Values{
		"key":               {"/library/metadata/" + item.Key},
		"offset":            {"0"},
		"machineIdentifier": {queue.MachineIdentifier},
		"containerKey":      {fmt.Sprintf("/playQueues/%d?window=100&own=1", queue.ID)},
		"commandID":         {strconv.FormatInt(p.commandID.Add(1), 10)},
		"type":              {"video"},
		"token":             {p.token},
	}
	if u, err := url.Parse(p.baseURL); err == nil {
		q.Set("protocol", u.Scheme)
		q.Set("address", u.Hostname())
		port := u.Port()
		if port == "" {
			port = "32400"
		}
		q.Set("port", port)
	}
	return q
}

// SendPlay sends a playMedia command straight to the player.
func (p *PlexClient) SendPlay(ctx context.Context, client types.ClientDescriptor, item types.MediaItem, queue *types.PlayQueue) error {
	err := p.doRequest(ctx, requestConfig{
		method:  http.MethodGet,
		baseURL: strings.TrimRight(client.URL(), "/"),
		path:    "/player/playback/playMedia",
		query:   p.playMediaQuery(item, queue),
		headers: map[string]string{"X-Plex-Target-Client-Identifier": client.ClientIdentifier},
		direct:  true,
	}, nil)
	if err != nil {
		return fmt.Errorf("play on %s: %w", client.Name, err)
	}
	return nil
}

// SendPlayViaServer asks the server to relay the playMedia command to clientID.
func (p *PlexClient) SendPlayViaServer(ctx context.Context, clientID string, item types.MediaItem, queue *types.PlayQueue) error {
	err := p.doRequest(ctx, requestConfig{
		method:  http.MethodGet,
		path:    "/player/playback/playMedia",
		query:   p.playMediaQuery(item, queue),
		headers: map[string]string{"X-Plex-Target-Client-Identifier": clientID},
		direct:  true,
	}, nil)
	if err != nil {
		return fmt.Errorf("relay play to %s: %w", clientID, err)
	}
	return nil
}

// ProbeClient checks that a player answers on baseURL.
func (p *PlexClient) ProbeClient(ctx context.Context, baseURL string) error {
	return p.doRequest(ctx, requestConfig{
		method:  http.MethodGet,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    "/resources",
		direct:  true,
	}, nil)
}
