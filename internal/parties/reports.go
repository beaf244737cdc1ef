package parties

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// FileReportInput is the payload of a moderation report.
type FileReportInput struct {
	TargetType models.ReportTargetKind `json:"targetType" validate:"required,oneof=party user message"`
	TargetID   string                  `json:"targetId" validate:"required"`
	Reason     string                  `json:"reason" validate:"required,max=1000"`
}

// ReportView is a stored report.
type ReportView struct {
	ID         string                  `json:"id"`
	TargetType models.ReportTargetKind `json:"targetType"`
	TargetID   string                  `json:"targetId"`
	Reason     string                  `json:"reason"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// FileReport records a report against a party, a user or a chat message.
func (s *Service) FileReport(ctx context.Context, actorID string, input FileReportInput) (ReportView, error) {
	if actorID == "" {
		return ReportView{}, errUnauthenticated()
	}
	if err := s.check(input); err != nil {
		return ReportView{}, err
	}

	target := models.ReportTarget{Kind: input.TargetType, ID: strings.TrimSpace(input.TargetID)}
	switch target.Kind {
	case models.ReportTargetParty:
		if _, err := s.loadParty(ctx, target.ID); err != nil {
			return ReportView{}, err
		}
	case models.ReportTargetUser:
		if target.ID == actorID {
			return ReportView{}, errInvalid("targetId", "You cannot report yourself")
		}
		if _, err := s.users.FindByID(ctx, target.ID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ReportView{}, errNotFound("User not found")
			}
			return ReportView{}, errInternal("load reported user", err)
		}
	case models.ReportTargetMessage:
		// Messages live in the chat service; the id is stored as given.
	default:
		return ReportView{}, errInvalid("targetType", "targetType must be one of: party, user, message")
	}

	report := models.Report{
		ID:         uuid.NewString(),
		ReporterID: actorID,
		Target:     target,
		Reason:     s.clean(ctx, strings.TrimSpace(input.Reason)),
		CreatedAt:  s.now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return ReportView{}, errInternal("create report", err)
	}

	logging.FromContext(ctx).Info("report filed", "report_id", report.ID, "target_type", target.Kind)
	return ReportView{
		ID:         report.ID,
		TargetType: target.Kind,
		TargetID:   target.ID,
		Reason:     report.Reason,
		CreatedAt:  report.CreatedAt,
	}, nil
}
