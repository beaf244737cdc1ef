// Package parties implements the party engine: creation and editing, join
// request arbitration, the attendee roster, rating obligations and the
// viewer-aware read models served by the API.
package parties

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/partyhop/backend/internal/lifecycle"
	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

const (
	maxCoHosts    = 5
	maxCompanions = 5
	previewSize   = 5
)

// Deps aggregates the collaborators used by Service.
type Deps struct {
	Parties   PartyStore
	Requests  RequestStore
	Attendees AttendeeStore
	Reviews   ReviewStore
	Reports   ReportStore
	Users     UserDirectory
	Friends   FriendChecker
	Notifier  Notifier
	Cleaner   Cleaner

	// OngoingWindow defaults to lifecycle.DefaultOngoingWindow.
	OngoingWindow time.Duration
	NowFunc       func() time.Time
}

// Service implements the party engine operations.
type Service struct {
	parties   PartyStore
	requests  RequestStore
	attendees AttendeeStore
	reviews   ReviewStore
	reports   ReportStore
	users     UserDirectory
	friends   FriendChecker
	notifier  Notifier
	cleaner   Cleaner

	window   time.Duration
	now      func() time.Time
	validate *validator.Validate
}

// NewService constructs a Service. Notifier and Cleaner may be nil.
func NewService(deps Deps) *Service {
	window := deps.OngoingWindow
	if window <= 0 {
		window = lifecycle.DefaultOngoingWindow
	}
	now := deps.NowFunc
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		parties:   deps.Parties,
		requests:  deps.Requests,
		attendees: deps.Attendees,
		reviews:   deps.Reviews,
		reports:   deps.Reports,
		users:     deps.Users,
		friends:   deps.Friends,
		notifier:  deps.Notifier,
		cleaner:   deps.Cleaner,
		window:    window,
		now:       now,
		validate:  newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// check runs struct validation and converts the first failure into a
// human-readable ValidationFailed error with a per-field map.
func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInternal("validate input", err)
	}

	out := &Error{Kind: KindValidationFailed, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := describeFieldError(fe)
		if out.Message == "" {
			out.Message = msg
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if isList {
			return fmt.Sprintf("%s must contain at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Int {
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// normalizeIDs trims ids, rejecting blanks, duplicates and lists longer than limit.
func normalizeIDs(field string, ids []string, limit int) ([]string, error) {
	if len(ids) > limit {
		return nil, errInvalid(field, fmt.Sprintf("%s must contain at most %d entries", field, limit))
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errInvalid(field, fmt.Sprintf("%s must not contain empty ids", field))
		}
		if _, dup := seen[id]; dup {
			return nil, errInvalid(field, fmt.Sprintf("%s must not contain duplicates", field))
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) loadParty(ctx context.Context, partyID string) (models.Party, error) {
	if strings.TrimSpace(partyID) == "" {
		return models.Party{}, errNotFound("Party not found")
	}
	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Party{}, errNotFound("Party not found")
		}
		return models.Party{}, errInternal("load party", err)
	}
	return party, nil
}

// notify hands a notification to the notifier. Failures are logged and never
// affect the operation that triggered them.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil || n.UserID == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logging.FromContext(ctx).Warn("notification not delivered", "type", n.Type, "recipient", n.UserID, "error", err)
	}
}

// clean runs text through the cleaner, keeping the original on failure.
func (s *Service) clean(ctx context.Context, text string) string {
	if s.cleaner == nil || strings.TrimSpace(text) == "" {
		return text
	}
	cleaned, err := s.cleaner.Clean(ctx, text)
	if err != nil {
		logging.FromContext(ctx).Warn("content cleaning failed, storing original text", "error", err)
		return text
	}
	return cleaned
}

func displayName(u models.User) string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return "Someone"
}
