package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-wine-shop/internal/middleware"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/service"
	"go-wine-shop/pkg/apierror"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := parseUserQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	users, meta, err := h.service.List(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: users}, &meta)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user.Detail(), nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user.Detail(), nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var payload model.UpdateUserRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), actorID(r), userID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user.Detail(), nil)
}

func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.service.AssignRole, model.MessageRoleAssigned)
}

func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.service.RemoveRole, model.MessageRoleRemoved)
}

type roleChange func(ctx context.Context, actorID string, id string, role string) (model.User, error)

func (h *UserHandler) changeRole(w http.ResponseWriter, r *http.Request, change roleChange, message string) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var payload model.RoleRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, apierror.Validation(err))
		return
	}

	if _, err := change(r.Context(), actorID(r), userID, payload.Role); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: message}, nil)
}

func (h *UserHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var payload model.StatusRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, apierror.Validation(err))
		return
	}

	if _, err := h.service.ChangeStatus(r.Context(), actorID(r), userID, payload.Status); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: model.MessageStatusChanged}, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actorID(r), userID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: model.MessageUserDeleted}, nil)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if userID == "" {
		writeError(w, apierror.BadRequest("user id is required", "id"))
		return "", false
	}
	return userID, true
}

func actorID(r *http.Request) string {
	if principal, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return principal.ID
	}
	return ""
}

func parseUserQuery(r *http.Request) (model.UserQuery, error) {
	values := r.URL.Query()
	query := model.UserQuery{}

	var err error
	if query.Page, err = parseOptionalInt(values.Get("page"), "page"); err != nil {
		return query, err
	}
	if query.Limit, err = parseOptionalInt(values.Get("limit"), "limit"); err != nil {
		return query, err
	}

	if raw := values.Get("status"); raw != "" {
		status, ok := model.ParseUserStatus(raw)
		if !ok {
			return query, model.ErrInvalidStatus
		}
		query.Status = status
	}

	if raw := values.Get("role"); raw != "" {
		role, ok := model.ParseRoleName(raw)
		if !ok {
			return query, model.ErrRoleNotFound
		}
		query.Role = role
	}

	return query, nil
}

func parseOptionalInt(raw string, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apierror.BadRequest(field+" must be a non-negative integer", field)
	}
	return value, nil
}
