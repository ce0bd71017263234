package services

import (
	"context"
	"errors"
	"fmt"

	"moviepicker/internal/types"
)

const (
	StrategyDirectClient   = "direct_client"
	StrategyServerProxy    = "server_proxy"
	StrategySessionControl = "session_control"
	StrategyDeviceRegistry = "device_registry"
)

func matchesClient(c types.ClientDescriptor, clientID string) bool {
	return c.ClientIdentifier == clientID || (c.ClientIdentifier == "" && c.Name == clientID)
}

func sendWithQueue(ctx context.Context, transport PlayerTransport, client types.ClientDescriptor, req DeliveryRequest) error {
	queue, err := req.Queue(ctx)
	if err != nil {
		return fmt.Errorf("create play queue: %w", err)
	}
	return transport.SendPlay(ctx, client, req.Item, queue)
}

// directClientStrategy finds the target among players advertising to the server.
type directClientStrategy struct {
	transport PlayerTransport
}

func (s *directClientStrategy) Name() string { return StrategyDirectClient }

func (s *directClientStrategy) Attempt(ctx context.Context, req DeliveryRequest) StrategyResult {
	clients, err := s.transport.AvailableClients(ctx)
	if err != nil {
		return failed(nil, err)
	}
	for _, c := range clients {
		if !matchesClient(c, req.ClientID) {
			continue
		}
		client := c
		if err := sendWithQueue(ctx, s.transport, client, req); err != nil {
			return failed(&client, err)
		}
		return succeeded(&client)
	}
	return skipped(errClientNotFound)
}

// serverProxyStrategy lets the server relay the command by client identifier.
type serverProxyStrategy struct {
	transport PlayerTransport
}

func (s *serverProxyStrategy) Name() string { return StrategyServerProxy }

func (s *serverProxyStrategy) Attempt(ctx context.Context, req DeliveryRequest) StrategyResult {
	queue, err := req.Queue(ctx)
	if err != nil {
		return failed(nil, fmt.Errorf("create play queue: %w", err))
	}
	if err := s.transport.SendPlayViaServer(ctx, req.ClientID, req.Item, queue); err != nil {
		return failed(nil, err)
	}
	return succeeded(nil)
}

// sessionControlStrategy controls a player that is currently streaming.
type sessionControlStrategy struct {
	transport PlayerTransport
}

func (s *sessionControlStrategy) Name() string { return StrategySessionControl }

func (s *sessionControlStrategy) Attempt(ctx context.Context, req DeliveryRequest) StrategyResult {
	sessions, err := s.transport.ActiveSessions(ctx)
	if err != nil {
		return failed(nil, err)
	}
	for _, session := range sessions {
		if !matchesClient(session.Player, req.ClientID) {
			continue
		}
		player := session.Player
		if player.Address == "" {
			return failed(&player, errors.New("session player has no reachable address"))
		}
		if err := sendWithQueue(ctx, s.transport, player, req); err != nil {
			return failed(&player, err)
		}
		return succeeded(&player)
	}
	return skipped(errClientNotFound)
}

// deviceRegistryStrategy looks the target up among the account's registered
// devices and tries each of its connections until one answers.
type deviceRegistryStrategy struct {
	registry  DeviceRegistry
	transport PlayerTransport
}

func (s *deviceRegistryStrategy) Name() string { return StrategyDeviceRegistry }

func (s *deviceRegistryStrategy) Attempt(ctx context.Context, req DeliveryRequest) StrategyResult {
	devices, err := s.registry.Devices(ctx)
	if err != nil {
		return failed(nil, err)
	}

	for _, device := range devices {
		if device.ClientIdentifier != req.ClientID && device.Name != req.ClientID {
			continue
		}
		client := types.ClientDescriptor{
			Name:             device.Name,
			ClientIdentifier: device.ClientIdentifier,
			Product:          device.Product,
			Platform:         device.Platform,
			Device:           device.Device,
			IsServer:         device.IsServer,
		}
		if device.IsServer {
			return skipped(fmt.Errorf("%s is a media server, not a player", device.Name))
		}
		if len(device.ConnectionURIs) == 0 {
			return failed(&client, errors.New("device has no known connections"))
		}

		var lastErr error
		for _, uri := range device.ConnectionURIs {
			if err := s.transport.ProbeClient(ctx, uri); err != nil {
				lastErr = err
				continue
			}
			client.BaseURL = uri
			if err := sendWithQueue(ctx, s.transport, client, req); err != nil {
				lastErr = err
				continue
			}
			return succeeded(&client)
		}
		return failed(&client, fmt.Errorf("no connection to %s accepted the command: %w", device.Name, lastErr))
	}
	return skipped(errClientNotFound)
}
