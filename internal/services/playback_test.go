package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"moviepicker/internal/types"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) ServerIdentity(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockTransport) AvailableClients(ctx context.Context) ([]types.ClientDescriptor, error) {
	args := m.Called(ctx)
	clients, _ := args.Get(0).([]types.ClientDescriptor)
	return clients, args.Error(1)
}

func (m *mockTransport) ActiveSessions(ctx context.Context) ([]types.PlaybackSession, error) {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]types.PlaybackSession)
	return sessions, args.Error(1)
}

func (m *mockTransport) CreatePlayQueue(ctx context.Context, item types.MediaItem) (*types.PlayQueue, error) {
	args := m.Called(ctx, item)
	queue, _ := args.Get(0).(*types.PlayQueue)
	return queue, args.Error(1)
}

func (m *mockTransport) SendPlay(ctx context.Context, client types.ClientDescriptor, item types.MediaItem, queue *types.PlayQueue) error {
	return m.Called(ctx, client, item, queue).Error(0)
}

func (m *mockTransport) SendPlayViaServer(ctx context.Context, clientID string, item types.MediaItem, queue *types.PlayQueue) error {
	return m.Called(ctx, clientID, item, queue).Error(0)
}

func (m *mockTransport) ProbeClient(ctx context.Context, baseURL string) error {
	return m.Called(ctx, baseURL).Error(0)
}

// scriptedStrategy returns a fixed result and counts its attempts.
type scriptedStrategy struct {
	name   string
	result StrategyResult
	calls  int
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Attempt(ctx context.Context, req DeliveryRequest) StrategyResult {
	s.calls++
	return s.result
}

type fakeRegistry struct {
	devices []types.RegisteredDevice
	err     error
}

func (f *fakeRegistry) Devices(ctx context.Context) ([]types.RegisteredDevice, error) {
	return f.devices, f.err
}

var (
	testQueue    = &types.PlayQueue{ID: 42, SelectedItemID: 7, MachineIdentifier: "srv-1"}
	heatCatalog  = &fakeCatalog{items: []types.MediaItem{movie("100", rated(8.3))}}
	livingRoom   = types.ClientDescriptor{Name: "Living Room", ClientIdentifier: "roku-1", Product: "Plex for Roku", Address: "10.0.0.5", Port: 8060}
	expectedLink = "https://app.plex.tv/desktop#!/server/srv-1/details?key=%2Flibrary%2Fmetadata%2F100"
)

func newIdentityTransport() *mockTransport {
	transport := &mockTransport{}
	transport.On("ServerIdentity", mock.Anything).Return("srv-1", nil).Maybe()
	return transport
}

func newTestDelivery(transport PlayerTransport, strategies ...DeliveryStrategy) *PlaybackDelivery {
	return NewPlaybackDelivery(heatCatalog, transport, "http://plex.local:32400/", time.Second, strategies...)
}

func TestDeliverWithoutClientNeedsSelection(t *testing.T) {
	strategy := &scriptedStrategy{name: "first", result: succeeded(nil)}
	d := newTestDelivery(newIdentityTransport(), strategy)

	outcome := d.Deliver(context.Background(), "100", "")

	assert.Equal(t, types.DeliveryNeedsClientSelection, outcome.Status)
	assert.Equal(t, expectedLink, outcome.ManualLink)
	assert.NotEmpty(t, outcome.ErrorMessage)
	assert.Zero(t, strategy.calls)
}

func TestDeliverStopsAtFirstSuccess(t *testing.T) {
	client := livingRoom
	first := &scriptedStrategy{name: "first", result: skipped(errClientNotFound)}
	second := &scriptedStrategy{name: "second", result: failed(nil, errors.New("refused"))}
	third := &scriptedStrategy{name: "third", result: succeeded(&client)}
	fourth := &scriptedStrategy{name: "fourth", result: succeeded(nil)}
	d := newTestDelivery(newIdentityTransport(), first, second, third, fourth)

	outcome := d.Deliver(context.Background(), "100", "roku-1")

	assert.Equal(t, types.DeliveryOK, outcome.Status)
	assert.Equal(t, "third", outcome.StrategyUsed)
	assert.Equal(t, "Living Room", outcome.ClientName)
	assert.Equal(t, expectedLink, outcome.ManualLink)
	assert.Equal(t, []int{1, 1, 1, 0}, []int{first.calls, second.calls, third.calls, fourth.calls})
}

func TestDeliverAllFailReturnsRemediation(t *testing.T) {
	client := livingRoom
	d := newTestDelivery(newIdentityTransport(),
		&scriptedStrategy{name: "a", result: skipped(errClientNotFound)},
		&scriptedStrategy{name: "b", result: failed(&client, errors.New("timeout"))},
		&scriptedStrategy{name: "c", result: failed(nil, errors.New("refused"))},
	)

	outcome := d.Deliver(context.Background(), "100", "roku-1")

	assert.Equal(t, types.DeliveryFailed, outcome.Status)
	assert.Empty(t, outcome.StrategyUsed)
	assert.Equal(t, RemediationMessage(&client), outcome.ErrorMessage)
	assert.Contains(t, outcome.ErrorMessage, "Roku")
	assert.Equal(t, "Living Room", outcome.ClientName)
	assert.Equal(t, expectedLink, outcome.ManualLink)
}

func TestDeliverUnknownMovieFails(t *testing.T) {
	strategy := &scriptedStrategy{name: "first", result: succeeded(nil)}
	d := newTestDelivery(newIdentityTransport(), strategy)

	outcome := d.Deliver(context.Background(), "missing", "roku-1")

	assert.Equal(t, types.DeliveryFailed, outcome.Status)
	assert.NotEmpty(t, outcome.ManualLink)
	assert.Zero(t, strategy.calls)
}

func TestManualLinkFallsBackToServerWebApp(t *testing.T) {
	transport := &mockTransport{}
	transport.On("ServerIdentity", mock.Anything).Return("", ErrUpstreamUnavailable)
	d := newTestDelivery(transport)

	link := d.ManualLink(context.Background(), "100")
	assert.Equal(t, "http://plex.local:32400/web/index.html#!/details?key=%2Flibrary%2Fmetadata%2F100", link)
}

func TestDeliverDirectClient(t *testing.T) {
	transport := newIdentityTransport()
	transport.On("AvailableClients", mock.Anything).Return([]types.ClientDescriptor{livingRoom}, nil)
	transport.On("CreatePlayQueue", mock.Anything, mock.MatchedBy(func(m types.MediaItem) bool { return m.Key == "100" })).Return(testQueue, nil).Once()
	transport.On("SendPlay", mock.Anything, livingRoom, mock.Anything, testQueue).Return(nil).Once()

	d := newTestDelivery(transport, DefaultStrategies(transport, nil)...)
	outcome := d.Deliver(context.Background(), "100", "roku-1")

	assert.Equal(t, types.DeliveryOK, outcome.Status)
	assert.Equal(t, StrategyDirectClient, outcome.StrategyUsed)
	transport.AssertExpectations(t)
	transport.AssertNotCalled(t, "SendPlayViaServer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverSharesPlayQueueAcrossStrategies(t *testing.T) {
	transport := newIdentityTransport()
	transport.On("AvailableClients", mock.Anything).Return([]types.ClientDescriptor{livingRoom}, nil)
	transport.On("CreatePlayQueue", mock.Anything, mock.Anything).Return(testQueue, nil).Once()
	transport.On("SendPlay", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	transport.On("SendPlayViaServer", mock.Anything, "roku-1", mock.Anything, testQueue).Return(nil)

	d := newTestDelivery(transport, DefaultStrategies(transport, nil)...)
	outcome := d.Deliver(context.Background(), "100", "roku-1")

	assert.Equal(t, types.DeliveryOK, outcome.Status)
	assert.Equal(t, StrategyServerProxy, outcome.StrategyUsed)
	transport.AssertNumberOfCalls(t, "CreatePlayQueue", 1)
}

func TestDefaultStrategiesOrder(t *testing.T) {
	names := func(strategies []DeliveryStrategy) []string {
		out := make([]string, 0, len(strategies))
		for _, s := range strategies {
			out = append(out, s.Name())
		}
		return out
	}

	transport := &mockTransport{}
	assert.Equal(t,
		[]string{StrategyDirectClient, StrategyServerProxy, StrategySessionControl, StrategyDeviceRegistry},
		names(DefaultStrategies(transport, &fakeRegistry{})))
	assert.Equal(t,
		[]string{StrategyDirectClient, StrategyServerProxy, StrategySessionControl},
		names(DefaultStrategies(transport, nil)))
}

func TestDirectClientStrategySkipsUnknownClient(t *testing.T) {
	transport := &mockTransport{}
	transport.On("AvailableClients", mock.Anything).Return([]types.ClientDescriptor{livingRoom}, nil)

	s := &directClientStrategy{transport: transport}
	res := s.Attempt(context.Background(), DeliveryRequest{ClientID: "other"})

	assert.Equal(t, AttemptSkipped, res.Result)
	transport.AssertNotCalled(t, "SendPlay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionControlStrategy(t *testing.T) {
	queue := func(ctx context.Context) (*types.PlayQueue, error) { return testQueue, nil }
	item := movie("100")

	t.Run("player without address fails", func(t *testing.T) {
		transport := &mockTransport{}
		transport.On("ActiveSessions", mock.Anything).Return([]types.PlaybackSession{
			{SessionKey: "1", Player: types.ClientDescriptor{Name: "Phone", ClientIdentifier: "phone-1", Platform: "Android"}},
		}, nil)

		res := (&sessionControlStrategy{transport: transport}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "phone-1", Queue: queue})

		assert.Equal(t, AttemptFailed, res.Result)
		require.NotNil(t, res.Client)
		assert.Equal(t, "Phone", res.Client.Name)
	})

	t.Run("streaming player is commanded", func(t *testing.T) {
		player := types.ClientDescriptor{Name: "Shield", ClientIdentifier: "shield-1", Address: "10.0.0.9", Port: 32500}
		transport := &mockTransport{}
		transport.On("ActiveSessions", mock.Anything).Return([]types.PlaybackSession{{SessionKey: "1", Player: player}}, nil)
		transport.On("SendPlay", mock.Anything, player, item, testQueue).Return(nil)

		res := (&sessionControlStrategy{transport: transport}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "shield-1", Queue: queue})

		assert.Equal(t, AttemptSucceeded, res.Result)
	})

	t.Run("not streaming skips", func(t *testing.T) {
		transport := &mockTransport{}
		transport.On("ActiveSessions", mock.Anything).Return(nil, nil)

		res := (&sessionControlStrategy{transport: transport}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "shield-1", Queue: queue})

		assert.Equal(t, AttemptSkipped, res.Result)
	})
}

func TestDeviceRegistryStrategy(t *testing.T) {
	queue := func(ctx context.Context) (*types.PlayQueue, error) { return testQueue, nil }
	item := movie("100")

	t.Run("servers are not players", func(t *testing.T) {
		registry := &fakeRegistry{devices: []types.RegisteredDevice{
			{Name: "NAS", ClientIdentifier: "srv-1", Product: plexMediaServerProduct, IsServer: true},
		}}
		res := (&deviceRegistryStrategy{registry: registry, transport: &mockTransport{}}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "srv-1", Queue: queue})

		assert.Equal(t, AttemptSkipped, res.Result)
	})

	t.Run("tries connections until one answers", func(t *testing.T) {
		registry := &fakeRegistry{devices: []types.RegisteredDevice{{
			Name:             "Bedroom TV",
			ClientIdentifier: "tv-1",
			Product:          "Plex for LG",
			ConnectionURIs:   []string{"http://10.0.0.20:32500", "https://relay.plex.direct:8443"},
		}}}
		transport := &mockTransport{}
		transport.On("ProbeClient", mock.Anything, "http://10.0.0.20:32500").Return(errors.New("no route to host"))
		transport.On("ProbeClient", mock.Anything, "https://relay.plex.direct:8443").Return(nil)
		transport.On("SendPlay", mock.Anything, mock.MatchedBy(func(c types.ClientDescriptor) bool {
			return c.BaseURL == "https://relay.plex.direct:8443" && c.ClientIdentifier == "tv-1"
		}), item, testQueue).Return(nil)

		res := (&deviceRegistryStrategy{registry: registry, transport: transport}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "tv-1", Queue: queue})

		assert.Equal(t, AttemptSucceeded, res.Result)
		transport.AssertExpectations(t)
	})

	t.Run("no connection answers", func(t *testing.T) {
		registry := &fakeRegistry{devices: []types.RegisteredDevice{{
			Name:             "Bedroom TV",
			ClientIdentifier: "tv-1",
			ConnectionURIs:   []string{"http://10.0.0.20:32500"},
		}}}
		transport := &mockTransport{}
		transport.On("ProbeClient", mock.Anything, mock.Anything).Return(errors.New("timeout"))

		res := (&deviceRegistryStrategy{registry: registry, transport: transport}).Attempt(context.Background(),
			DeliveryRequest{Item: item, ClientID: "tv-1", Queue: queue})

		assert.Equal(t, AttemptFailed, res.Result)
		require.NotNil(t, res.Client)
		assert.Equal(t, "Bedroom TV", res.Client.Name)
	})
}

func TestRemediationMessagePerPlatform(t *testing.T) {
	tests := []struct {
		client *types.ClientDescriptor
		want   clientPlatform
	}{
		{nil, platformUnknown},
		{&types.ClientDescriptor{Platform: "Android", Product: "Plex for Android (TV)"}, platformAndroid},
		{&types.ClientDescriptor{Platform: "tvOS", Product: "Plex for Apple TV"}, platformApple},
		{&types.ClientDescriptor{Product: "Plex for Roku"}, platformRoku},
		{&types.ClientDescriptor{Platform: "webOS", Product: "Plex for LG"}, platformTV},
		{&types.ClientDescriptor{Platform: "Chrome", Product: "Plex Web"}, platformWeb},
		{&types.ClientDescriptor{Platform: "Windows", Product: "Plex HTPC"}, platformDesktop},
		{&types.ClientDescriptor{Product: "Something New"}, platformUnknown},
		{&types.ClientDescriptor{Platform: "Xbox One", Product: "Plex for Xbox"}, platformConsole},
		{&types.ClientDescriptor{Platform: "PlayStation 5", Product: "Plex for PlayStation"}, platformConsole},
		{&types.ClientDescriptor{Platform: "Linux", Product: "Plex Web", Device: "Knowledge Base"}, platformDesktop},
		{&types.ClientDescriptor{Product: "Bulgarian Ledger Player", Device: "Hedgehog"}, platformUnknown},
		{&types.ClientDescriptor{Platform: "Microsoft Edge", Product: "Plex Web"}, platformWeb},
		{&types.ClientDescriptor{Platform: "Roku", Product: "Plex for Android"}, platformRoku},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, inferPlatform(tt.client), "%+v", tt.client)
		assert.NotEmpty(t, RemediationMessage(tt.client))
	}
}

func TestDeliverRefreshesCatalogAfterPlayback(t *testing.T) {
	source := &countingSource{
		items:   []types.MediaItem{movie("100")},
		details: map[string]types.MediaItem{"100": movie("100")},
	}
	catalog := NewLibraryCatalog(source, time.Minute)
	_, err := catalog.ListAll(context.Background())
	require.NoError(t, err)

	failing := NewPlaybackDelivery(catalog, newIdentityTransport(), "http://plex.local:32400/", time.Second,
		&scriptedStrategy{name: "first", result: failed(nil, errors.New("offline"))})
	outcome := failing.Deliver(context.Background(), "100", "roku-1")
	require.Equal(t, types.DeliveryFailed, outcome.Status)
	_, err = catalog.ListAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, source.listCalls.Load(), "failed delivery keeps the snapshot")

	working := NewPlaybackDelivery(catalog, newIdentityTransport(), "http://plex.local:32400/", time.Second,
		&scriptedStrategy{name: "first", result: succeeded(nil)})
	outcome = working.Deliver(context.Background(), "100", "roku-1")
	require.Equal(t, types.DeliveryOK, outcome.Status)
	_, err = catalog.ListAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, source.listCalls.Load())
}
