package submission

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is an uploaded attachment stored in blob storage
type File struct {
	ID               uuid.UUID
	SubmissionID     uuid.UUID
	FieldID          *uuid.UUID
	OriginalFilename string
	BlobName         string
	BlobURL          string
	FileSize         int64
	ContentType      string
	UploadedAt       time.Time
}

// BlobKey builds the storage key for an uploaded file.
// The random segment keeps files with equal names apart.
func BlobKey(submissionID, fieldID uuid.UUID, filename string) string {
	return path.Join(submissionID.String(), fieldID.String(), uuid.NewString(), SafeFilename(filename))
}

// SafeFilename strips directory components from a client supplied name
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// IsInlineViewable reports whether browsers can safely render the file inline
func (f *File) IsInlineViewable() bool {
	ct := strings.ToLower(f.ContentType)
	return ct == "application/pdf" ||
		ct == "application/json" ||
		strings.HasPrefix(ct, "image/") ||
		strings.HasPrefix(ct, "text/")
}
