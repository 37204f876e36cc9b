package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service manages form definitions for one request
type Service struct {
	rc     *uow.RequestContext
	logger *zap.Logger
}

// NewService creates a form service bound to rc
func NewService(rc *uow.RequestContext, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rc: rc, logger: logger}
}

// Create stores a new form owned by the actor
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, input CreateFormInput) (*form.Form, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return nil, shared.NewDomainError("FORBIDDEN", "Only administrators can create forms")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	f, err := form.NewForm(actor.ID, input.Title, input.Description, input.Fields)
	if err != nil {
		return nil, err
	}
	if err := s.rc.Session.Forms().Create(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("Form created",
		zap.String("form_id", f.ID.String()),
		zap.String("creator_id", actor.ID.String()),
		zap.Int("fields", len(f.Fields)),
	)
	return f, nil
}

// Get returns a form with its fields. Forms are public so respondents can fill them in.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*form.Form, error) {
	f, err := s.rc.Session.Forms().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Form not found")
		}
		return nil, err
	}
	return f, nil
}

// Update changes a form the actor owns
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateFormInput) (*form.Form, error) {
	f, err := s.owned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if input.Title != nil {
		if err := f.Rename(*input.Title); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		f.SetDescription(*input.Description)
	}
	if input.Fields != nil {
		if err := f.ReplaceFields(*input.Fields); err != nil {
			return nil, err
		}
	}
	if err := s.rc.Session.Forms().Update(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("Form updated", zap.String("form_id", f.ID.String()))
	return f, nil
}

// Delete removes a form the actor owns together with its submissions.
// Stored uploads are removed once the deletion has committed.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	f, err := s.owned(ctx, actorID, id)
	if err != nil {
		return err
	}

	uploads, err := s.rc.Session.Files().FindByForm(ctx, f.ID)
	if err != nil {
		return err
	}
	if err := s.rc.Session.Forms().Delete(ctx, f.ID); err != nil {
		return err
	}

	keys := lo.FilterMap(uploads, func(file *submission.File, _ int) (string, bool) {
		return file.BlobName, file.BlobName != ""
	})
	if err := s.rc.Events.Publish(ctx, form.NewFormDeletedEvent(f, keys)); err != nil {
		return err
	}

	s.logger.Info("Form deleted",
		zap.String("form_id", f.ID.String()),
		zap.Int("files", len(keys)),
	)
	return nil
}

// ListByAdmin returns the forms created by adminID
func (s *Service) ListByAdmin(ctx context.Context, actorID, adminID uuid.UUID, page shared.Page) ([]*form.Form, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(adminID) {
		return nil, shared.ErrForbidden
	}
	return s.rc.Session.Forms().FindByCreator(ctx, adminID, page)
}

// owned loads a form the actor may change: its creator or a super admin
func (s *Service) owned(ctx context.Context, actorID, id uuid.UUID) (*form.Form, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.IsOwnedBy(actor.ID) && !actor.IsSuperAdmin {
		return nil, shared.NewDomainError("FORBIDDEN", "Not authorized to modify this form")
	}
	return f, nil
}

func (s *Service) actor(ctx context.Context, actorID uuid.UUID) (*identity.User, error) {
	actor, err := s.rc.Session.Users().FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Could not validate credentials")
		}
		return nil, err
	}
	return actor, nil
}

// validateInput reports the first rule a form input breaks
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	first := verrs[0]
	field := first.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return shared.NewDomainError("INVALID_FIELD", fmt.Sprintf("%s failed the %q rule", field, first.Tag()))
}
