// Package authz centralizes capability checks for travel request operations.
// Decisions are pure: no store access, no side effects. Handlers and services
// must route every ownership or role decision through this package instead of
// inspecting user fields ad hoc.
package authz

import (
	"traveldesk/internal/models"
)

// Principal is the authenticated actor performing an operation.
type Principal struct {
	ID      uint
	Name    string
	IsAdmin bool
}

// Action identifies an operation gated by the evaluator.
type Action string

const (
	// ActionView is reading a single travel request.
	ActionView Action = "view"
	// ActionCreate is submitting a new travel request.
	ActionCreate Action = "create"
	// ActionUpdateOwn is editing a request that has not been adjudicated yet.
	ActionUpdateOwn Action = "update_own"
	// ActionUpdateStatus is the administrative approve/cancel operation.
	ActionUpdateStatus Action = "update_status"
	// ActionSelfCancel is the owner cancelling an approved request.
	ActionSelfCancel Action = "self_cancel"
)

// Denial messages. The self-adjudication case is deliberately distinct so an
// admin acting on their own request learns why they were refused.
const (
	MsgAccessDenied     = "access denied"
	MsgSelfAdjudication = "cannot change status of a request you created yourself"
)

// Can decides whether p may perform action on tr. It returns nil when allowed
// and a FORBIDDEN AppError otherwise. tr may be nil only for ActionCreate.
func Can(p Principal, action Action, tr *models.TravelRequest) error {
	switch action {
	case ActionCreate:
		return nil
	case ActionView:
		if p.IsAdmin || isOwner(p, tr) {
			return nil
		}
	case ActionUpdateOwn:
		if isOwner(p, tr) && tr.Status == models.TravelStatusRequested {
			return nil
		}
	case ActionUpdateStatus:
		if !p.IsAdmin {
			break
		}
		if isOwner(p, tr) {
			return models.NewForbiddenError(MsgSelfAdjudication)
		}
		return nil
	case ActionSelfCancel:
		if isOwner(p, tr) {
			return nil
		}
	}
	return models.NewForbiddenError(MsgAccessDenied)
}

func isOwner(p Principal, tr *models.TravelRequest) bool {
	return tr != nil && tr.UserID == p.ID
}
