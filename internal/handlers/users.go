package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"moviepicker/internal/auth"
	"moviepicker/internal/database"
	"moviepicker/internal/logging"
	"moviepicker/internal/services"
	"moviepicker/internal/types"
	"moviepicker/internal/utils"
)

// UserResolver maps the authenticated identity of a request to a local user.
type UserResolver interface {
	Current(r *http.Request) (*types.User, error)
}

// DBUsers resolves users against the users table, creating them on first sight.
type DBUsers struct {
	db *sql.DB
}

func NewDBUsers(db *sql.DB) *DBUsers {
	return &DBUsers{db: db}
}

func (u *DBUsers) Current(r *http.Request) (*types.User, error) {
	authUser, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return database.GetOrCreateUser(r.Context(), u.db, authUser.Subject, authUser.Email, authUser.Name)
}

// currentUser writes the error response itself and returns nil when the
// request has no usable user.
func currentUser(w http.ResponseWriter, r *http.Request, users UserResolver) *types.User {
	user, err := users.Current(r)
	if errors.Is(err, auth.ErrNoUser) {
		utils.RespondError(w, "Unauthorized", "unauthorized", http.StatusUnauthorized)
		return nil
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to resolve user")
		utils.RespondError(w, "Failed to get user", services.ReasonInternal, http.StatusInternalServerError)
		return nil
	}
	return user
}

type UserHandler struct {
	users    UserResolver
	prefs    services.PreferenceStore
	validate *validator.Validate
}

func NewUserHandler(users UserResolver, prefs services.PreferenceStore) *UserHandler {
	return &UserHandler{
		users:    users,
		prefs:    prefs,
		validate: NewValidator(),
	}
}

func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}
	utils.RespondJSON(w, user, http.StatusOK)
}

func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	prefs, err := h.prefs.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "load preferences")
		return
	}
	utils.RespondJSON(w, map[string]any{
		"success":     true,
		"preferences": prefs,
	}, http.StatusOK)
}

// UpdatePreferences applies a partial update; fields missing from the body keep
// their stored values.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	var patch types.PreferencesPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if patch.FilterActor != nil {
		trimmed := strings.TrimSpace(*patch.FilterActor)
		patch.FilterActor = &trimmed
	}
	if err := h.validate.Struct(patch); err != nil {
		respondBadRequest(w, validationMessage(err))
		return
	}

	prefs, err := h.prefs.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "load preferences")
		return
	}
	patch.Apply(prefs)
	if err := h.prefs.Save(r.Context(), prefs); err != nil {
		respondServiceError(w, r, err, "save preferences")
		return
	}

	logging.Ctx(r.Context()).Info().
		Int("user_id", user.ID).
		Str("filter_mode", string(prefs.FilterMode)).
		Str("link_type", string(prefs.LinkType)).
		Msg("Preferences updated")
	utils.RespondJSON(w, map[string]any{
		"success":     true,
		"preferences": prefs,
	}, http.StatusOK)
}
