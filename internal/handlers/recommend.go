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

type Recommender interface {
	Recommend(ctx context.Context, user *types.User) (*services.Recommendation, error)
	LastWatched(ctx context.Context, user *types.User) (*services.MovieInfo, error)
}

// PassLedger records movies the user passed on.
type PassLedger interface {
	Upsert(ctx context.Context, userID int, ratingKey, title string) (*types.PassedRecord, error)
	List(ctx context.Context, userID int) ([]types.PassedRecord, error)
	Delete(ctx context.Context, userID, recordID int) error
}

type RecommendHandler struct {
	users       UserResolver
	recommender Recommender
	passes      PassLedger
	validate    *validator.Validate
}

func NewRecommendHandler(users UserResolver, recommender Recommender, passes PassLedger) *RecommendHandler {
	return &RecommendHandler{
		users:       users,
		recommender: recommender,
		passes:      passes,
		validate:    NewValidator(),
	}
}

type recommendResponse struct {
	Success  bool               `json:"success"`
	Movie    services.MovieInfo `json:"movie"`
	LinkedBy *types.Linkage     `json:"linked_by"`
}

func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	rec, err := h.recommender.Recommend(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, err, "recommend a movie")
		return
	}
	utils.RespondJSON(w, recommendResponse{Success: true, Movie: rec.Movie, LinkedBy: rec.LinkedBy}, http.StatusOK)
}

func (h *RecommendHandler) LastWatched(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	info, err := h.recommender.LastWatched(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, err, "load last watched movie")
		return
	}
	utils.RespondJSON(w, map[string]any{"success": true, "movie": info}, http.StatusOK)
}

type passRequest struct {
	RatingKey string `json:"rating_key" validate:"required,max=64"`
	Title     string `json:"title" validate:"max=500"`
}

// Pass hides a movie from recommendations for the pass window. Passing again
// restarts the window.
func (h *RecommendHandler) Pass(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	var req passRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	req.RatingKey = strings.TrimSpace(req.RatingKey)
	if err := h.validate.Struct(req); err != nil {
		respondBadRequest(w, validationMessage(err))
		return
	}

	record, err := h.passes.Upsert(r.Context(), user.ID, req.RatingKey, req.Title)
	if err != nil {
		respondServiceError(w, r, err, "pass on movie")
		return
	}
	logging.Ctx(r.Context()).Info().Int("user_id", user.ID).Str("rating_key", req.RatingKey).Time("expires_at", record.ExpiresAt).Msg("Movie passed")
	utils.RespondJSON(w, map[string]any{"success": true, "pass": record}, http.StatusOK)
}

func (h *RecommendHandler) ListPassed(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	records, err := h.passes.List(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "list passed movies")
		return
	}
	if records == nil {
		records = []types.PassedRecord{}
	}
	utils.RespondJSON(w, map[string]any{"success": true, "movies": records}, http.StatusOK)
}

func (h *RecommendHandler) DeletePassed(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r, h.users)
	if user == nil {
		return
	}

	id, err := utils.GetPathParamInt(r, "id")
	if err != nil {
		respondBadRequest(w, "invalid passed movie id")
		return
	}
	if err := h.passes.Delete(r.Context(), user.ID, id); err != nil {
		respondServiceError(w, r, err, "delete passed movie")
		return
	}
	utils.RespondJSON(w, map[string]any{"success": true}, http.StatusOK)
}
