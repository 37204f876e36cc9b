package files

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Download is an opened uploaded file ready to be streamed
type Download struct {
	File   *submission.File
	Object *Object
	// Disposition is a complete Content-Disposition header value
	Disposition string
}

// ContentType prefers the type recorded at upload time
func (d *Download) ContentType() string {
	if d.File.ContentType != "" {
		return d.File.ContentType
	}
	if d.Object.ContentType != "" {
		return d.Object.ContentType
	}
	return "application/octet-stream"
}

// ViewService opens uploaded files for the administrators allowed to see them
type ViewService struct {
	rc     *uow.RequestContext
	store  Store
	logger *zap.Logger
}

// NewViewService creates a view service bound to rc
func NewViewService(rc *uow.RequestContext, store Store, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{rc: rc, store: store, logger: logger}
}

// Open authorizes the actor and opens the file's blob. The caller closes Object.Body.
func (s *ViewService) Open(ctx context.Context, actorID, fileID uuid.UUID) (*Download, error) {
	repos := s.rc.Session

	actor, err := repos.Users().FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Could not validate credentials")
		}
		return nil, err
	}

	file, err := repos.Files().FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "File not found")
		}
		return nil, err
	}
	sub, err := repos.Submissions().FindByID(ctx, file.SubmissionID)
	if err != nil {
		return nil, err
	}
	f, err := repos.Forms().FindByID(ctx, sub.FormID)
	if err != nil {
		return nil, err
	}
	if !f.IsOwnedBy(actor.ID) && !actor.IsSuperAdmin {
		return nil, shared.NewDomainError("FORBIDDEN", "Not authorized to view this file")
	}

	obj, err := s.store.Open(ctx, file.BlobName)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			s.logger.Warn("File record without stored object",
				zap.String("file_id", file.ID.String()),
				zap.String("key", file.BlobName))
			return nil, shared.NewDomainError("NOT_FOUND", "File content not found")
		}
		return nil, err
	}

	kind := "attachment"
	if file.IsInlineViewable() {
		kind = "inline"
	}
	return &Download{
		File:        file,
		Object:      obj,
		Disposition: ContentDisposition(kind, file.OriginalFilename, "download"),
	}, nil
}

// ContentDisposition builds a header value carrying an ASCII filename and the
// RFC 5987 encoded original. Accents are folded away in the ASCII form; a name
// with nothing left becomes fallback plus the original extension.
func ContentDisposition(kind, filename, fallback string) string {
	ascii := strings.Map(func(r rune) rune {
		switch {
		case r > 0x7e:
			return -1
		case r < 0x20 || r == '"' || r == '\\':
			return '_'
		}
		return r
	}, norm.NFKD.String(filename))
	if strings.TrimSpace(strings.TrimSuffix(ascii, path.Ext(ascii))) == "" {
		ascii = fallback + path.Ext(filename)
	}
	return kind + `; filename="` + ascii + `"; filename*=UTF-8''` + extValueEscape(filename)
}

// extValueEscape percent-encodes every byte outside the RFC 5987 attr-char set.
func extValueEscape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
