package services

import (
	"fmt"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
)

// Role sets per operation family
var (
	schedulerRoles    = []model.Role{model.RoleAdmin, model.RoleOverseer}
	countEditorRoles  = []model.Role{model.RoleAdmin, model.RoleOverseer, model.RoleAssistantOverseer, model.RoleKeyman}
	countDeleterRoles = []model.Role{model.RoleAdmin}
)

func requireCaller(caller model.Caller) error {
	if caller.ID == "" {
		return newServiceError(KindForbidden, "CALLER_REQUIRED", "an identified caller is required", nil)
	}
	return nil
}

func requireRole(caller model.Caller, action string, roles ...model.Role) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.HasRole(roles...) {
		return newServiceError(KindForbidden, "FORBIDDEN",
			fmt.Sprintf("role %s may not %s", caller.Role, action), nil)
	}
	return nil
}
