package handler

import (
	"net/http"

	"go-wine-shop/internal/service"
)

type RoleHandler struct {
	service *service.RoleService
}

func NewRoleHandler(service *service.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.All(), nil)
}

func (h *RoleHandler) Active(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Active(), nil)
}
