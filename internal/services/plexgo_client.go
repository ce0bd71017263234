package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/LukeHagar/plexgo"
	"github.com/LukeHagar/plexgo/models/operations"

	"moviepicker/internal/logging"
	"moviepicker/internal/types"
)

const plexMediaServerProduct = "Plex Media Server"

// PlexgoClient wraps the plexgo SDK for account-level lookups: the device
// registry on plex.tv and library discovery on the server.
type PlexgoClient struct {
	token     string
	serverURL string
	clientID  string
}

// PlexConnection is one advertised address of a registered device.
type PlexConnection struct {
	Protocol string
	Address  string
	Port     int
	URI      string
	Local    bool
	Relay    bool
}

// PlexLibrary represents a Plex library section
type PlexLibrary struct {
	Key   string
	Title string
	Type  string
	UUID  string
}

func NewPlexgoClient(token, serverURL, clientID string) *PlexgoClient {
	return &PlexgoClient{
		token:     token,
		serverURL: serverURL,
		clientID:  clientID,
	}
}

// Devices lists every device registered to the account, servers included.
func (p *PlexgoClient) Devices(ctx context.Context) ([]types.RegisteredDevice, error) {
	client := plexgo.New(
		plexgo.WithSecurity(p.token),
	)

	res, err := client.Plex.GetServerResources(ctx, p.clientID,
		operations.IncludeHTTPSEnable.ToPointer(),
		operations.IncludeRelayEnable.ToPointer(),
		nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get account devices: %v", ErrUpstreamUnavailable, err)
	}

	var devices []types.RegisteredDevice
	for _, device := range res.PlexDevices {
		var connections []PlexConnection
		for _, conn := range device.Connections {
			connections = append(connections, PlexConnection{
				Protocol: string(conn.Protocol),
				Address:  conn.Address,
				Port:     conn.Port,
				URI:      conn.URI,
				Local:    conn.Local,
				Relay:    conn.Relay,
			})
		}

		devices = append(devices, types.RegisteredDevice{
			Name:             device.Name,
			ClientIdentifier: device.ClientIdentifier,
			Product:          device.Product,
			Platform:         getStringValue(device.Platform),
			Device:           getStringValue(device.Device),
			IsServer:         device.Product == plexMediaServerProduct,
			ConnectionURIs:   OrderedConnectionURIs(connections),
		})
	}

	logging.Debug().Int("devices", len(devices)).Msg("Fetched account device registry")
	return devices, nil
}

// GetLibraries lists the library sections on the configured server.
func (p *PlexgoClient) GetLibraries(ctx context.Context) ([]PlexLibrary, error) {
	client := plexgo.New(
		plexgo.WithSecurity(p.token),
		plexgo.WithServerURL(p.serverURL),
	)

	res, err := client.Library.GetAllLibraries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get libraries: %v", ErrUpstreamUnavailable, err)
	}

	var libraries []PlexLibrary
	if res.Object != nil && res.Object.MediaContainer != nil {
		for _, dir := range res.Object.MediaContainer.Directory {
			libraries = append(libraries, PlexLibrary{
				Key:   dir.Key,
				Title: dir.Title,
				Type:  string(dir.Type),
				UUID:  dir.UUID,
			})
		}
	}
	return libraries, nil
}

// FindMovieSection returns the key of the movie section titled libraryName,
// or of the first movie section when no title matches.
func (p *PlexgoClient) FindMovieSection(ctx context.Context, libraryName string) (string, error) {
	libraries, err := p.GetLibraries(ctx)
	if err != nil {
		return "", err
	}
	return PickMovieSection(libraries, libraryName)
}

func PickMovieSection(libraries []PlexLibrary, libraryName string) (string, error) {
	var fallback string
	for _, lib := range libraries {
		if lib.Type != "movie" {
			continue
		}
		if strings.EqualFold(lib.Title, libraryName) {
			return lib.Key, nil
		}
		if fallback == "" {
			fallback = lib.Key
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no movie library found on server")
	}
	logging.Warn().Str("library", libraryName).Str("section", fallback).Msg("Movie library not found by name, using first movie section")
	return fallback, nil
}

// BuildConnectionURI constructs a URL from connection info
func BuildConnectionURI(connection PlexConnection) string {
	if connection.URI != "" {
		return connection.URI
	}
	return fmt.Sprintf("%s://%s:%d", connection.Protocol, connection.Address, connection.Port)
}

// OrderedConnectionURIs returns connection URIs in the order players should be
// tried: local first, then direct remote, then relays.
func OrderedConnectionURIs(connections []PlexConnection) []string {
	var local, remote, relay []string
	for _, conn := range connections {
		uri := BuildConnectionURI(conn)
		switch {
		case conn.Relay:
			relay = append(relay, uri)
		case conn.Local:
			local = append(local, uri)
		default:
			remote = append(remote, uri)
		}
	}
	ordered := append(local, remote...)
	return append(ordered, relay...)
}

// getStringValue safely converts a pointer string to a string value
func getStringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
