package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"moviepicker/internal/logging"
	"moviepicker/internal/metrics"
	"moviepicker/internal/types"
)

// PlayerTransport sends remote-control commands through the Plex server or to players.
type PlayerTransport interface {
	ServerIdentity(ctx context.Context) (string, error)
	AvailableClients(ctx context.Context) ([]types.ClientDescriptor, error)
	ActiveSessions(ctx context.Context) ([]types.PlaybackSession, error)
	CreatePlayQueue(ctx context.Context, item types.MediaItem) (*types.PlayQueue, error)
	SendPlay(ctx context.Context, client types.ClientDescriptor, item types.MediaItem, queue *types.PlayQueue) error
	SendPlayViaServer(ctx context.Context, clientID string, item types.MediaItem, queue *types.PlayQueue) error
	ProbeClient(ctx context.Context, baseURL string) error
}

// DeviceRegistry lists the devices registered to the Plex account.
type DeviceRegistry interface {
	Devices(ctx context.Context) ([]types.RegisteredDevice, error)
}

type AttemptResult int

const (
	AttemptSucceeded AttemptResult = iota
	AttemptSkipped
	AttemptFailed
)

func (r AttemptResult) String() string {
	switch r {
	case AttemptSucceeded:
		return "success"
	case AttemptSkipped:
		return "skip"
	default:
		return "fail"
	}
}

// StrategyResult is the outcome of one delivery strategy. Client is set when
// the strategy located the target, which lets the caller tailor advice.
type StrategyResult struct {
	Result AttemptResult
	Client *types.ClientDescriptor
	Err    error
}

func succeeded(client *types.ClientDescriptor) StrategyResult {
	return StrategyResult{Result: AttemptSucceeded, Client: client}
}

func skipped(reason error) StrategyResult {
	return StrategyResult{Result: AttemptSkipped, Err: reason}
}

func failed(client *types.ClientDescriptor, err error) StrategyResult {
	return StrategyResult{Result: AttemptFailed, Client: client, Err: err}
}

// DeliveryRequest is what each strategy receives. Queue creates the play
// queue on first use and returns the same one to later strategies.
type DeliveryRequest struct {
	Item     types.MediaItem
	ClientID string
	Queue    func(ctx context.Context) (*types.PlayQueue, error)
}

type DeliveryStrategy interface {
	Name() string
	Attempt(ctx context.Context, req DeliveryRequest) StrategyResult
}

var errClientNotFound = errors.New("target client not found")

// PlaybackDelivery starts a movie on a remote player, trying each strategy in
// order until one succeeds, and always returns a manual link to fall back on.
type PlaybackDelivery struct {
	items           ItemLookup
	transport       PlayerTransport
	strategies      []DeliveryStrategy
	serverURL       string
	strategyTimeout time.Duration
}

func NewPlaybackDelivery(items ItemLookup, transport PlayerTransport, serverURL string, strategyTimeout time.Duration, strategies ...DeliveryStrategy) *PlaybackDelivery {
	return &PlaybackDelivery{
		items:           items,
		transport:       transport,
		strategies:      strategies,
		serverURL:       strings.TrimRight(serverURL, "/"),
		strategyTimeout: strategyTimeout,
	}
}

// DefaultStrategies returns the canonical order: direct client, server relay,
// active session, then the account device registry when registry is non-nil.
func DefaultStrategies(transport PlayerTransport, registry DeviceRegistry) []DeliveryStrategy {
	strategies := []DeliveryStrategy{
		&directClientStrategy{transport: transport},
		&serverProxyStrategy{transport: transport},
		&sessionControlStrategy{transport: transport},
	}
	if registry != nil {
		strategies = append(strategies, &deviceRegistryStrategy{registry: registry, transport: transport})
	}
	return strategies
}

// ManualLink builds a deep link that opens the movie in Plex. When the server
// identity is unavailable it points at the server's own web app instead.
func (d *PlaybackDelivery) ManualLink(ctx context.Context, itemKey string) string {
	key := url.QueryEscape("/library/metadata/" + itemKey)
	machineID, err := d.transport.ServerIdentity(ctx)
	if err != nil || machineID == "" {
		logging.Ctx(ctx).Warn().Err(err).Msg("Server identity unavailable, using server web link")
		return fmt.Sprintf("%s/web/index.html#!/details?key=%s", d.serverURL, key)
	}
	return fmt.Sprintf("https://app.plex.tv/desktop#!/server/%s/details?key=%s", machineID, key)
}

func (d *PlaybackDelivery) Deliver(ctx context.Context, itemKey, clientID string) *types.DeliveryOutcome {
	outcome := d.deliver(ctx, itemKey, clientID)
	strategy := outcome.StrategyUsed
	if strategy == "" {
		strategy = "none"
	}
	metrics.Deliveries.WithLabelValues(string(outcome.Status), strategy).Inc()

	// Playback changes view state, so the next recommendation must reread it.
	if outcome.Status == types.DeliveryOK {
		if inv, ok := d.items.(cacheInvalidator); ok {
			inv.Invalidate()
		}
	}
	return outcome
}

type cacheInvalidator interface {
	Invalidate()
}

func (d *PlaybackDelivery) deliver(ctx context.Context, itemKey, clientID string) *types.DeliveryOutcome {
	outcome := &types.DeliveryOutcome{ManualLink: d.ManualLink(ctx, itemKey)}

	if clientID == "" {
		outcome.Status = types.DeliveryNeedsClientSelection
		outcome.ErrorMessage = "Choose a player to start playback, or use the link to open the movie in Plex."
		return outcome
	}

	item, err := d.items.Details(ctx, itemKey)
	if err != nil || item == nil {
		if err == nil {
			err = ErrNotFound
		}
		logging.Ctx(ctx).Warn().Err(err).Str("rating_key", itemKey).Msg("Cannot resolve movie for playback")
		outcome.Status = types.DeliveryFailed
		outcome.ErrorMessage = "The movie could not be loaded from the Plex server. Use the link to open it manually."
		return outcome
	}

	req := DeliveryRequest{
		Item:     *item,
		ClientID: clientID,
		Queue:    d.queueOnce(*item),
	}

	var seen *types.ClientDescriptor
	for _, strategy := range d.strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, d.strategyTimeout)
		res := strategy.Attempt(attemptCtx, req)
		cancel()

		metrics.StrategyAttempts.WithLabelValues(strategy.Name(), res.Result.String()).Inc()
		if res.Client != nil && seen == nil {
			seen = res.Client
		}

		switch res.Result {
		case AttemptSucceeded:
			logging.Ctx(ctx).Info().Str("strategy", strategy.Name()).Str("client_id", clientID).Str("rating_key", itemKey).Msg("Playback started")
			outcome.Status = types.DeliveryOK
			outcome.StrategyUsed = strategy.Name()
			if res.Client != nil {
				outcome.ClientName = res.Client.Name
			}
			return outcome
		case AttemptSkipped:
			logging.Ctx(ctx).Debug().Err(res.Err).Str("strategy", strategy.Name()).Str("client_id", clientID).Msg("Playback strategy skipped")
		default:
			logging.Ctx(ctx).Warn().Err(res.Err).Str("strategy", strategy.Name()).Str("client_id", clientID).Msg("Playback strategy failed")
		}

		if ctx.Err() != nil {
			break
		}
	}

	outcome.Status = types.DeliveryFailed
	outcome.ErrorMessage = RemediationMessage(seen)
	if seen != nil {
		outcome.ClientName = seen.Name
	}
	return outcome
}

func (d *PlaybackDelivery) queueOnce(item types.MediaItem) func(ctx context.Context) (*types.PlayQueue, error) {
	var mu sync.Mutex
	var queue *types.PlayQueue
	return func(ctx context.Context) (*types.PlayQueue, error) {
		mu.Lock()
		defer mu.Unlock()
		if queue != nil {
			return queue, nil
		}
		q, err := d.transport.CreatePlayQueue(ctx, item)
		if err != nil {
			return nil, err
		}
		queue = q
		return queue, nil
	}
}
