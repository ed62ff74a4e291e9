package handlers

import (
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/services"
)

// outcomeView is the client shape of a progress outcome. Errors stay in the
// server log.
type outcomeView struct {
	Status          string            `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	CourseCompleted bool              `json:"courseCompleted"`
	Enrollment      *types.Enrollment `json:"enrollment,omitempty"`
}

func toOutcomeView(o *services.ProgressOutcome) *outcomeView {
	if o == nil {
		return nil
	}
	return &outcomeView{
		Status:          string(o.Status),
		Reason:          o.Reason(),
		CourseCompleted: o.CourseCompleted,
		Enrollment:      o.Enrollment,
	}
}
