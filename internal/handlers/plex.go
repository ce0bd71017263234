package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"moviepicker/internal/logging"
	"moviepicker/internal/services"
	"moviepicker/internal/types"
	"moviepicker/internal/utils"
)

type ClientLister interface {
	AvailableClients(ctx context.Context) ([]types.ClientDescriptor, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, itemKey, clientID string) *types.DeliveryOutcome
}

type PlaylistAdder interface {
	AddToPlaylist(ctx context.Context, user *types.User, itemKey string) (*types.PlaylistAddResult, error)
}

// PlexHandler serves the player and playlist endpoints.
type PlexHandler struct {
	users     UserResolver
	prefs     services.PreferenceStore
	clients   ClientLister
	delivery  Deliverer
	playlists PlaylistAdder
	validate  *validator.Validate
}

func NewPlexHandler(users UserResolver, prefs services.PreferenceStore, clients ClientLister, delivery Deliverer, playlists PlaylistAdder) *PlexHandler {
	return &PlexHandler{
		users:     users,
		prefs:     prefs,
		clients:   clients,
		delivery:  delivery,
		playlists: playlists,
		validate:  NewValidator(),
	}
}

// GetClients lists players currently advertising to the server along with the
// user's saved choice.
func (h *PlexHandler) GetClients(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	clients, err := h.clients.AvailableClients(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list players")
		return
	}
	prefs, err := h.prefs.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "load preferences")
		return
	}
	if clients == nil {
		clients = []types.ClientDescriptor{}
	}

	utils.RespondJSON(w, map[string]any{
		"success":                    true,
		"clients":                    clients,
		"selected_client_identifier": prefs.SelectedClientIdentifier,
		"selected_client_name":       prefs.SelectedClientName,
	}, http.StatusOK)
}

type playRequest struct {
	RatingKey  string `json:"rating_key" validate:"required,max=64"`
	ClientID   string `json:"client_id" validate:"max=200"`
	ClientName string `json:"client_name" validate:"max=200"`
}

type playResponse struct {
	Success bool `json:"success"`
	*types.DeliveryOutcome
}

// Play starts the movie on a player. Without a client in the request the
// user's saved player is used; a client given in the request becomes the saved one.
func (h *PlexHandler) Play(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	var req playRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	req.RatingKey = strings.TrimSpace(req.RatingKey)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if err := h.validate.Struct(req); err != nil {
		respondBadRequest(w, validationMessage(err))
		return
	}

	prefs, err := h.prefs.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "load preferences")
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = prefs.SelectedClientIdentifier
	} else if clientID != prefs.SelectedClientIdentifier {
		prefs.SelectedClientIdentifier = clientID
		prefs.SelectedClientName = h.clientName(r.Context(), clientID, strings.TrimSpace(req.ClientName))
		if err := h.prefs.Save(r.Context(), prefs); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Int("user_id", user.ID).Msg("Could not remember selected player")
		}
	}

	outcome := h.delivery.Deliver(r.Context(), req.RatingKey, clientID)
	utils.RespondJSON(w, playResponse{
		Success:         outcome.Status == types.DeliveryOK,
		DeliveryOutcome: outcome,
	}, http.StatusOK)
}

// clientName names a newly selected player. Without a name in the request it
// is looked up among the advertising players, then falls back to the id.
func (h *PlexHandler) clientName(ctx context.Context, clientID, given string) string {
	if given != "" {
		return given
	}
	clients, err := h.clients.AvailableClients(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Could not list players to name the selection")
		return clientID
	}
	for _, c := range clients {
		if c.ClientIdentifier == clientID && c.Name != "" {
			return c.Name
		}
	}
	return clientID
}

type playlistRequest struct {
	RatingKey string `json:"rating_key" validate:"required,max=64"`
}

type playlistResponse struct {
	Success bool `json:"success"`
	*types.PlaylistAddResult
}

func (h *PlexHandler) AddToPlaylist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	var req playlistRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	req.RatingKey = strings.TrimSpace(req.RatingKey)
	if err := h.validate.Struct(req); err != nil {
		respondBadRequest(w, validationMessage(err))
		return
	}

	result, err := h.playlists.AddToPlaylist(r.Context(), user, req.RatingKey)
	if err != nil {
		respondServiceError(w, r, err, "add movie to playlist")
		return
	}
	utils.RespondJSON(w, playlistResponse{Success: true, PlaylistAddResult: result}, http.StatusOK)
}
