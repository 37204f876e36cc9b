package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/formhub/backend/internal/application/files"
	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxFileSize applies when SubmitConfig leaves the limit unset
const DefaultMaxFileSize int64 = 10 << 20

// SubmitConfig holds submission limits
type SubmitConfig struct {
	MaxFileSize int64
}

// SubmitService records form submissions
type SubmitService struct {
	rc     *uow.RequestContext
	store  files.Store
	config SubmitConfig
	logger *zap.Logger
}

// NewSubmitService creates a submit service bound to rc
func NewSubmitService(rc *uow.RequestContext, store files.Store, config SubmitConfig, logger *zap.Logger) *SubmitService {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmitService{rc: rc, store: store, config: config, logger: logger}
}

// Submit stores a response to a form and queues SubmissionCreatedEvent.
// Respondents are matched by email; unknown respondents are created and
// linked to the form's creator. Any value or file referencing a field that
// is not on the form fails the whole submission.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (*submission.Submission, error) {
	repos := s.rc.Session

	f, err := repos.Forms().FindByID(ctx, input.FormID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Form not found")
		}
		return nil, err
	}

	user, err := s.respondent(ctx, f, input.UserName, input.UserEmail)
	if err != nil {
		return nil, err
	}

	sub := submission.New(f.ID, user.ID)

	// Sorted so stored values follow a stable order
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fieldID, err := parseFieldID(k)
		if err != nil {
			return nil, err
		}
		if err := sub.AddValue(f, fieldID, input.Values[k]); err != nil {
			return nil, err
		}
	}

	uploaded, err := s.attachFiles(ctx, f, sub, input.Files)
	if err != nil {
		s.removeBlobs(ctx, uploaded)
		return nil, err
	}

	if err := sub.CheckRequired(f); err != nil {
		s.removeBlobs(ctx, uploaded)
		return nil, err
	}
	if err := repos.Submissions().Create(ctx, sub); err != nil {
		s.removeBlobs(ctx, uploaded)
		return nil, err
	}

	sub.MarkCreated(f.CreatorID)
	if err := s.rc.Publish(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Form submitted",
		zap.String("submission_id", sub.ID.String()),
		zap.String("form_id", f.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.Int("values", len(sub.Values)),
		zap.Int("files", len(sub.Files)),
	)
	return sub, nil
}

// respondent finds the submitting user by email or registers a new one
func (s *SubmitService) respondent(ctx context.Context, f *form.Form, name, email string) (*identity.User, error) {
	users := s.rc.Session.Users()
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "user_name is required")
	}

	if email = strings.TrimSpace(email); email != "" {
		existing, err := users.FindByEmail(ctx, email)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	user, err := identity.NewRespondent(email, name, &f.CreatorID)
	if err != nil {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.rc.Events.Publish(ctx, identity.NewRespondentCreatedEvent(user)); err != nil {
		return nil, err
	}
	return user, nil
}

// attachFiles uploads every file and records it on sub. It returns the keys
// uploaded so far, also on error.
func (s *SubmitService) attachFiles(ctx context.Context, f *form.Form, sub *submission.Submission, uploads []Upload) ([]string, error) {
	var keys []string
	for _, upload := range uploads {
		fieldID, err := parseFieldID(upload.FieldID)
		if err != nil {
			return keys, err
		}
		if _, ok := f.FieldByID(fieldID); !ok {
			return keys, submission.ErrUnknownField(fieldID)
		}
		if upload.Size > s.config.MaxFileSize {
			return keys, fileTooLarge(upload.Filename, s.config.MaxFileSize)
		}

		data, err := io.ReadAll(io.LimitReader(upload.Body, s.config.MaxFileSize+1))
		if err != nil {
			return keys, fmt.Errorf("read upload %q: %w", upload.Filename, err)
		}
		if int64(len(data)) > s.config.MaxFileSize {
			return keys, fileTooLarge(upload.Filename, s.config.MaxFileSize)
		}
		if len(data) == 0 {
			s.logger.Warn("Skipping empty upload",
				zap.String("form_id", f.ID.String()),
				zap.String("field_id", fieldID.String()),
				zap.String("filename", upload.Filename))
			continue
		}

		filename := submission.SafeFilename(upload.Filename)
		contentType := mimetype.Detect(data).String()
		key := submission.BlobKey(sub.ID, fieldID, filename)
		url, err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			return keys, fmt.Errorf("upload %q: %w", filename, err)
		}
		keys = append(keys, key)

		fid := fieldID
		sub.AttachFile(submission.File{
			ID:               uuid.New(),
			FieldID:          &fid,
			OriginalFilename: filename,
			BlobName:         key,
			BlobURL:          url,
			FileSize:         int64(len(data)),
			ContentType:      contentType,
			UploadedAt:       time.Now().UTC(),
		})
	}
	return keys, nil
}

func (s *SubmitService) removeBlobs(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to remove upload of rejected submission", zap.String("key", key), zap.Error(err))
		}
	}
}

func parseFieldID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, shared.NewDomainError("INVALID_FIELD_REFERENCE", fmt.Sprintf("Invalid field id %q", raw))
	}
	return id, nil
}

func fileTooLarge(name string, limit int64) error {
	return shared.NewDomainError("PAYLOAD_TOO_LARGE",
		fmt.Sprintf("File %q exceeds the %dMB limit", submission.SafeFilename(name), limit>>20))
}
