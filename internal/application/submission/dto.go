package submission

import (
	"io"
	"time"

	appform "github.com/formhub/backend/internal/application/form"
	appidentity "github.com/formhub/backend/internal/application/identity"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
)

// SubmitInput is a respondent's answer to a form
type SubmitInput struct {
	FormID    uuid.UUID
	UserName  string
	UserEmail string
	// Values maps field ids to answers
	Values map[string]string
	Files  []Upload
}

// Upload is one file sent with a submission
type Upload struct {
	FieldID  string
	Filename string
	// Size is the declared size; -1 when unknown
	Size int64
	Body io.Reader
}

// FieldValueResponse is one answer
type FieldValueResponse struct {
	ID      uuid.UUID `json:"id"`
	FieldID uuid.UUID `json:"field_id"`
	Value   string    `json:"value"`
}

// FileResponse describes an uploaded file
type FileResponse struct {
	ID               uuid.UUID  `json:"id"`
	FieldID          *uuid.UUID `json:"field_id"`
	OriginalFilename string     `json:"original_filename"`
	BlobURL          string     `json:"blob_url"`
	FileSize         int64      `json:"file_size"`
	ContentType      string     `json:"content_type"`
	UploadedAt       time.Time  `json:"uploaded_at"`
}

// SubmissionResponse is the public view of a submission
type SubmissionResponse struct {
	ID          uuid.UUID             `json:"id"`
	FormID      uuid.UUID             `json:"form_id"`
	UserID      uuid.UUID             `json:"user_id"`
	SubmittedAt time.Time             `json:"submitted_at"`
	FieldValues []FieldValueResponse  `json:"field_values"`
	Files       []FileResponse        `json:"files"`
	User        *appidentity.UserInfo `json:"user,omitempty"`
	Form        *appform.FormResponse `json:"form,omitempty"`
	UserName    string                `json:"user_name,omitempty"`
	UserEmail   string                `json:"user_email,omitempty"`
	FormTitle   string                `json:"form_title,omitempty"`
}

// Detail is a submission with its form and respondent
type Detail struct {
	Submission *submission.Submission
	Form       *form.Form
	// User is nil when the respondent no longer exists
	User *identity.User
}

// ToSubmissionResponse converts a submission
func ToSubmissionResponse(s *submission.Submission) SubmissionResponse {
	values := make([]FieldValueResponse, 0, len(s.Values))
	for _, v := range s.Values {
		values = append(values, FieldValueResponse{ID: v.ID, FieldID: v.FieldID, Value: v.Value})
	}
	files := make([]FileResponse, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, FileResponse{
			ID:               f.ID,
			FieldID:          f.FieldID,
			OriginalFilename: f.OriginalFilename,
			BlobURL:          f.BlobURL,
			FileSize:         f.FileSize,
			ContentType:      f.ContentType,
			UploadedAt:       f.UploadedAt,
		})
	}
	return SubmissionResponse{
		ID:          s.ID,
		FormID:      s.FormID,
		UserID:      s.UserID,
		SubmittedAt: s.SubmittedAt,
		FieldValues: values,
		Files:       files,
	}
}

// ToDetailResponse converts a submission with its form and respondent
func ToDetailResponse(d *Detail) SubmissionResponse {
	resp := ToSubmissionResponse(d.Submission)
	if d.Form != nil {
		f := appform.ToFormResponse(d.Form)
		resp.Form = &f
		resp.FormTitle = d.Form.Title
	}
	if d.User != nil {
		u := appidentity.ToUserInfo(d.User)
		resp.User = &u
		resp.UserName = d.User.Name
		resp.UserEmail = d.User.Email
	}
	return resp
}

// ToSummaryResponses converts search results
func ToSummaryResponses(summaries []*submission.Summary) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := ToSubmissionResponse(s.Submission)
		resp.UserName = s.UserName
		resp.UserEmail = s.UserEmail
		resp.FormTitle = s.FormTitle
		out = append(out, resp)
	}
	return out
}

// ToSubmissionResponses converts a list of submissions
func ToSubmissionResponses(subs []*submission.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, ToSubmissionResponse(s))
	}
	return out
}
