package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"moviepicker/internal/config"
	"moviepicker/internal/database"
	"moviepicker/internal/logging"
)

// PlexIntegrationManager wires the Plex-backed services together and owns
// their background work.
type PlexIntegrationManager struct {
	prefs          *database.PreferenceStore
	passes         *database.PassedLedger
	plexClient     *PlexClient
	plexgoClient   *PlexgoClient
	recommender    *Recommender
	delivery       *PlaybackDelivery
	playlists      *PlaylistService
	cleanupService *CleanupService
	cleanupEvery   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPlexIntegrationManager(db *sql.DB, cfg *config.Config) *PlexIntegrationManager {
	prefs := database.NewPreferenceStore(db)
	passes := database.NewPassedLedger(db)

	plexClient := NewPlexClient(PlexClientConfig{
		BaseURL:           cfg.Plex.ServerURL,
		Token:             cfg.Plex.Token,
		ClientIdentifier:  cfg.Plex.ClientIdentifier,
		LibraryName:       cfg.Plex.LibraryName,
		LibrarySection:    cfg.Plex.LibrarySection,
		MachineIdentifier: cfg.Plex.MachineIdentifier,
		Timeout:           cfg.Plex.RequestTimeout,
	}, nil)
	plexgoClient := NewPlexgoClient(cfg.Plex.Token, plexClient.BaseURL(), plexClient.clientID)
	plexClient.sections = plexgoClient

	catalog := NewLibraryCatalog(plexClient, cfg.Plex.CatalogCacheTTL)

	var registry DeviceRegistry
	if cfg.Playback.DeviceRegistryFallback {
		registry = plexgoClient
	}

	m := &PlexIntegrationManager{
		prefs:        prefs,
		passes:       passes,
		plexClient:   plexClient,
		plexgoClient: plexgoClient,
		recommender:  NewRecommender(catalog, prefs, passes, NewSelector()),
		delivery: NewPlaybackDelivery(catalog, plexClient, plexClient.BaseURL(), cfg.Playback.StrategyTimeout,
			DefaultStrategies(plexClient, registry)...),
		playlists: NewPlaylistService(plexClient, catalog, prefs, cfg.Playback.PlaylistName),
	}
	if cfg.Cleanup.Enabled {
		m.cleanupService = NewCleanupService(db, passes)
		m.cleanupEvery = cfg.Cleanup.Interval
	}
	return m
}

func (m *PlexIntegrationManager) Preferences() *database.PreferenceStore { return m.prefs }
func (m *PlexIntegrationManager) Passes() *database.PassedLedger { return m.passes }
func (m *PlexIntegrationManager) Recommender() *Recommender { return m.recommender }
func (m *PlexIntegrationManager) Delivery() *PlaybackDelivery { return m.delivery }
func (m *PlexIntegrationManager) Playlists() *PlaylistService { return m.playlists }
func (m *PlexIntegrationManager) Players() PlayerTransport { return m.plexClient }

// Start launches background maintenance. A first cleanup runs immediately.
func (m *PlexIntegrationManager) Start(ctx context.Context) {
	if m.cleanupService == nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.cleanupService.RunFullCleanup(ctx)
		m.cleanupService.ScheduleCleanup(ctx, m.cleanupEvery)
	}()
	logging.Info().Dur("interval", m.cleanupEvery).Msg("Cleanup scheduler started")
}

// Stop cancels background work and waits for it to finish.
func (m *PlexIntegrationManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
