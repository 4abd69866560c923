package service

import (
	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/model"
)

type RoleService struct {
	mapper *authz.Mapper
}

func NewRoleService(mapper *authz.Mapper) *RoleService {
	return &RoleService{mapper: mapper}
}

// All returns the catalog with authorities rendered under the configured prefix.
func (s *RoleService) All() []model.RoleInfo {
	roles := model.Roles()
	for i := range roles {
		roles[i].Authority = s.mapper.Authority(string(roles[i].Name))
	}
	return roles
}

func (s *RoleService) Active() []model.RoleInfo {
	all := s.All()
	active := make([]model.RoleInfo, 0, len(all))
	for _, role := range all {
		if role.Active {
			active = append(active, role)
		}
	}
	return active
}
