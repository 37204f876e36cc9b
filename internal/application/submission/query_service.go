package submission

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSearchLimit is the page size of admin searches without a limit
const DefaultSearchLimit = 10

// QueryService reads and removes submissions on behalf of administrators
type QueryService struct {
	rc     *uow.RequestContext
	logger *zap.Logger
}

// NewQueryService creates a query service bound to rc
func NewQueryService(rc *uow.RequestContext, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{rc: rc, logger: logger}
}

// Get loads a submission with its form and respondent
func (s *QueryService) Get(ctx context.Context, actorID, id uuid.UUID) (*Detail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, id)
}

// Delete removes a submission. Its uploads are deleted after commit.
func (s *QueryService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	d, err := s.detail(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.rc.Session.Submissions().Delete(ctx, id); err != nil {
		return err
	}
	if err := s.rc.Events.Publish(ctx, submission.NewSubmissionDeletedEvent(d.Submission, d.Form.CreatorID)); err != nil {
		return err
	}

	s.logger.Info("Submission deleted",
		zap.String("submission_id", id.String()),
		zap.String("deleted_by", actorID.String()),
	)
	return nil
}

// ListByForm lists the submissions of a form the actor owns
func (s *QueryService) ListByForm(ctx context.Context, actorID, formID uuid.UUID, page shared.Page) ([]*submission.Submission, int64, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	f, err := s.form(ctx, formID)
	if err != nil {
		return nil, 0, err
	}
	if !f.IsOwnedBy(actor.ID) && !actor.IsSuperAdmin {
		return nil, 0, shared.ErrForbidden
	}

	subs, err := s.rc.Session.Submissions().FindByForm(ctx, formID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.rc.Session.Submissions().CountByForm(ctx, formID)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// CountByForm returns how many submissions a form has received
func (s *QueryService) CountByForm(ctx context.Context, formID uuid.UUID) (int64, error) {
	if _, err := s.form(ctx, formID); err != nil {
		return 0, err
	}
	return s.rc.Session.Submissions().CountByForm(ctx, formID)
}

// SearchForAdmin lists the submissions visible to filter.AdminID, newest first
func (s *QueryService) SearchForAdmin(ctx context.Context, actorID uuid.UUID, filter submission.SearchFilter) ([]*submission.Summary, int64, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.CanManage(filter.AdminID) {
		return nil, 0, shared.ErrForbidden
	}
	if filter.Page.Limit <= 0 {
		filter.Page.Limit = DefaultSearchLimit
	}
	return s.rc.Session.Submissions().Search(ctx, filter)
}

// detail loads a submission the actor may see: forms it created, users
// linked to it, or anything for a super admin
func (s *QueryService) detail(ctx context.Context, actor *identity.User, id uuid.UUID) (*Detail, error) {
	repos := s.rc.Session
	sub, err := repos.Submissions().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Submission not found")
		}
		return nil, err
	}
	f, err := s.form(ctx, sub.FormID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Submission: sub, Form: f}
	user, err := repos.Users().FindByID(ctx, sub.UserID)
	switch {
	case err == nil:
		d.User = user
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	if actor.IsSuperAdmin || f.IsOwnedBy(actor.ID) {
		return d, nil
	}
	if d.User != nil && d.User.AdminID != nil && *d.User.AdminID == actor.ID {
		return d, nil
	}
	return nil, shared.NewDomainError("FORBIDDEN", "Not authorized to access this submission")
}

func (s *QueryService) form(ctx context.Context, id uuid.UUID) (*form.Form, error) {
	f, err := s.rc.Session.Forms().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Form not found")
		}
		return nil, err
	}
	return f, nil
}

func (s *QueryService) actor(ctx context.Context, actorID uuid.UUID) (*identity.User, error) {
	actor, err := s.rc.Session.Users().FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Could not validate credentials")
		}
		return nil, err
	}
	return actor, nil
}
