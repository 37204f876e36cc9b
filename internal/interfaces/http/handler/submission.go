package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/formhub/backend/internal/application/files"
	appsubmission "github.com/formhub/backend/internal/application/submission"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Multipart parts of POST /forms/:id/submit
const (
	partUserName    = "user_name"
	partUserEmail   = "user_email"
	partFieldValues = "field_values_json"
	partFileFields  = "file_fields_json"
	partFiles       = "files"
)

// SubmissionHandler handles form submission, review and export
type SubmissionHandler struct {
	BaseHandler
	store  files.Store
	config appsubmission.SubmitConfig
	logger *zap.Logger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(store files.Store, config appsubmission.SubmitConfig, logger *zap.Logger) *SubmissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionHandler{store: store, config: config, logger: logger}
}

func (h *SubmissionHandler) queries(c *gin.Context) (*appsubmission.QueryService, bool) {
	rc, ok := h.requestContext(c)
	if !ok {
		return nil, false
	}
	return appsubmission.NewQueryService(rc, h.logger), true
}

// Submit handles POST /forms/:id/submit. It is public.
//
// field_values_json maps field ids to answers. file_fields_json maps the
// index of each part in "files" to the field it answers, e.g. {"0": "<field id>"}.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	formID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	mf, err := c.MultipartForm()
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			h.HandleError(c, err)
			return
		}
		h.BadRequest(c, "Expected a multipart/form-data body")
		return
	}

	userName := strings.TrimSpace(firstValue(mf, partUserName))
	if userName == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, "user_name is required")
		return
	}
	values, err := decodeFieldValues(firstValue(mf, partFieldValues))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "field_values_json must be a JSON object")
		return
	}
	uploads, closeAll, err := h.uploads(mf)
	defer closeAll()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	rc, ok := h.requestContext(c)
	if !ok {
		return
	}
	sub, err := appsubmission.NewSubmitService(rc, h.store, h.config, h.logger).Submit(c.Request.Context(), appsubmission.SubmitInput{
		FormID:    formID,
		UserName:  userName,
		UserEmail: firstValue(mf, partUserEmail),
		Values:    values,
		Files:     uploads,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appsubmission.ToSubmissionResponse(sub))
}

// uploads pairs every file part with its field id. The returned func closes
// every opened part and is safe to call on error.
func (h *SubmissionHandler) uploads(mf *multipart.Form) ([]appsubmission.Upload, func(), error) {
	parts := mf.File[partFiles]
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	if len(parts) == 0 {
		return nil, closeAll, nil
	}

	mapping := map[string]string{}
	if raw := firstValue(mf, partFileFields); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return nil, closeAll, shared.NewDomainError("INVALID_INPUT", "file_fields_json must map file indexes to field ids")
		}
	}

	uploads := make([]appsubmission.Upload, 0, len(parts))
	for i, part := range parts {
		fieldID, ok := mapping[strconv.Itoa(i)]
		if !ok {
			return nil, closeAll, shared.NewDomainError("INVALID_FIELD_REFERENCE", "File "+strconv.Quote(part.Filename)+" is not mapped to a form field")
		}
		body, err := part.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, body)
		uploads = append(uploads, appsubmission.Upload{
			FieldID:  fieldID,
			Filename: part.Filename,
			Size:     part.Size,
			Body:     body,
		})
	}
	return uploads, closeAll, nil
}

// Get handles GET /submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, ok := h.queries(c)
	if !ok {
		return
	}

	d, err := svc.Get(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appsubmission.ToDetailResponse(d))
}

// Delete handles DELETE /submissions/:id
func (h *SubmissionHandler) Delete(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, ok := h.queries(c)
	if !ok {
		return
	}

	if err := svc.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "Submission deleted successfully"})
}

// ListByForm handles GET /forms/:id/submissions
func (h *SubmissionHandler) ListByForm(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	formID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.page(c, 100)
	if !ok {
		return
	}
	svc, ok := h.queries(c)
	if !ok {
		return
	}

	subs, total, err := svc.ListByForm(c.Request.Context(), actorID, formID, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appsubmission.ToSubmissionResponses(subs), total, page.Skip, page.Limit)
}

// CountResponse is the body of GET /forms/:id/submissions/count
type CountResponse struct {
	FormID uuid.UUID `json:"form_id"`
	Count  int64     `json:"count"`
}

// Count handles GET /forms/:id/submissions/count. It is public.
func (h *SubmissionHandler) Count(c *gin.Context) {
	formID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, ok := h.queries(c)
	if !ok {
		return
	}

	n, err := svc.CountByForm(c.Request.Context(), formID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountResponse{FormID: formID, Count: n})
}

// SearchByAdmin handles GET /admin/:id/submissions.
// Filters: date_from, date_to, user_name, user_email, field_value_search, form_id.
func (h *SubmissionHandler) SearchByAdmin(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	adminID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.page(c, appsubmission.DefaultSearchLimit)
	if !ok {
		return
	}

	filter := submission.SearchFilter{
		AdminID:          adminID,
		UserName:         c.Query("user_name"),
		UserEmail:        c.Query("user_email"),
		FieldValueSearch: c.Query("field_value_search"),
		Page:             page,
	}
	if v := c.Query("form_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid form_id format")
			return
		}
		filter.FormID = &id
	}
	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{{"date_from", &filter.DateFrom}, {"date_to", &filter.DateTo}} {
		v := c.Query(bound.param)
		if v == "" {
			continue
		}
		t, err := parseQueryTime(v)
		if err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, bound.param+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
			return
		}
		*bound.dst = &t
	}

	svc, ok := h.queries(c)
	if !ok {
		return
	}
	rows, total, err := svc.SearchForAdmin(c.Request.Context(), actorID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appsubmission.ToSummaryResponses(rows), total, page.Skip, page.Limit)
}

// Export handles GET /submissions/:id/export?format=csv|xlsx&locale=en|uk.
// Without a locale the Accept-Language header decides.
func (h *SubmissionHandler) Export(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	format, err := appsubmission.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	locale := appsubmission.ResolveLocale(c.Query("locale"), c.GetHeader("Accept-Language"))

	rc, ok := h.requestContext(c)
	if !ok {
		return
	}
	out, err := appsubmission.NewExportService(rc, h.logger).Export(c.Request.Context(), actorID, id, format, locale)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", files.ContentDisposition("attachment", out.Filename, "export"))
	c.Data(http.StatusOK, out.ContentType, out.Body)
}

func firstValue(mf *multipart.Form, key string) string {
	if v := mf.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// decodeFieldValues accepts any JSON value per field. Non-string answers,
// e.g. checkbox selections, are stored as their JSON text.
func decodeFieldValues(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(decoded))
	for k, v := range decoded {
		var s string
		switch {
		case string(v) == "null":
			continue
		case json.Unmarshal(v, &s) == nil:
			values[k] = s
		default:
			values[k] = string(v)
		}
	}
	return values, nil
}

func parseQueryTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
