// Package authapi exposes the identity mutation surface over HTTP. Handlers
// are thin: they validate the request shape and delegate to the mutation
// service; identity state only ever changes through the lifecycle pipeline.
package authapi

import (
	"log/slog"
	"net/http"
	"strings"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/state"
)

const defaultMaxBodyBytes = 64 << 10

// Handler wires the mutation service and state store to HTTP routes.
type Handler struct {
	log     *slog.Logger
	service *state.Service
	store   *state.Store

	maxBodyBytes int64
}

func NewHandler(log *slog.Logger, service *state.Service, store *state.Store) *Handler {
	return &Handler{
		log:          log,
		service:      service,
		store:        store,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// Register wires the routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/identities", h.handleCreateIdentity)
	mux.HandleFunc("/state", h.handleState)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Accepted bool `json:"accepted"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	if !h.service.Login(r.Context(), req.Email, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Accepted: true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type createIdentityRequest struct {
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Username *string `json:"username"`
	TeamID   *string `json:"team_id"`
	Password string  `json:"password"`
}

type identityResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Username *string `json:"username,omitempty"`
	TeamID   *string `json:"team_id,omitempty"`
}

func (h *Handler) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createIdentityRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	role := identity.Role(strings.TrimSpace(req.Role))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be admin, manager or member")
		return
	}

	created, err := h.service.CreateIdentity(r.Context(), identity.Draft{
		Email:    req.Email,
		Name:     req.Name,
		Role:     role,
		Username: req.Username,
		TeamID:   req.TeamID,
	}, req.Password)
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case identity.IsCreation(err):
			writeError(w, http.StatusConflict, "already_exists", "an identity with that email already exists")
		default:
			h.log.Error("api.create_identity.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toIdentityResponse(created))
}

type stateResponse struct {
	Current   *identityResponse  `json:"current"`
	Loading   bool               `json:"loading"`
	Phase     string             `json:"phase"`
	Directory []identityResponse `json:"directory,omitempty"`
}

// handleState serves a one-shot snapshot for clients that do not hold a
// statestream connection.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap := h.store.Snapshot()
	resp := stateResponse{
		Loading: snap.Loading,
		Phase:   snap.Phase.String(),
	}
	if snap.Current != nil {
		cur := toIdentityResponse(*snap.Current)
		resp.Current = &cur
	}
	for _, id := range snap.Directory {
		resp.Directory = append(resp.Directory, toIdentityResponse(id))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toIdentityResponse(id identity.Identity) identityResponse {
	return identityResponse{
		ID:       id.ID,
		Email:    id.Email,
		Name:     id.Name,
		Role:     string(id.Role),
		Username: id.Username,
		TeamID:   id.TeamID,
	}
}
