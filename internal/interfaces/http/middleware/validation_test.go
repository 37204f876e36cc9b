package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationItem struct {
	Label string `json:"label" binding:"required,max=5"`
}

type validationRequest struct {
	Email    string           `json:"email" binding:"required,email"`
	Password string           `json:"password" binding:"required,min=6"`
	Items    []validationItem `json:"items" binding:"dive"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req validationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidationError_FieldDetails(t *testing.T) {
	w := postJSON(newValidationRouter(), `{"email":"invalid","password":"123","items":[{"label":"too long"}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	messages := map[string]string{}
	for _, d := range resp.Error.Details {
		messages[d.Field] = d.Message
	}
	assert.Equal(t, map[string]string{
		"email":          "Invalid email format",
		"password":       "Must be at least 6 characters",
		"items[0].label": "Must be at most 5 characters",
	}, messages)
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	w := postJSON(newValidationRouter(), `{"email":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

func TestHandleValidationError_RecordsGinError(t *testing.T) {
	SetupValidator()
	var recorded int
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		recorded = len(c.Errors.ByType(gin.ErrorTypeBind))
	})
	router.POST("/test", func(c *gin.Context) {
		var req validationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
		}
	})

	postJSON(router, `{}`)
	assert.Equal(t, 1, recorded)
}

func TestValidInput(t *testing.T) {
	w := postJSON(newValidationRouter(), `{"email":"a@example.com","password":"secret1","items":[{"label":"ok"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
