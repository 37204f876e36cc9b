package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with skip/limit meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, skip, limit int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, skip, limit))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response and records it so the unit of work rolls back
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	_ = c.Error(errors.New(message)).SetType(gin.ErrorTypePublic)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError writes a 400 response listing the rejected fields
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	middleware.HandleValidationError(c, err)
}

// HandleError maps err to the response envelope. Domain errors keep their
// message; anything else becomes a 500 without internals.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}
	if middleware.IsBodyTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
			dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size", requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// requestContext returns the unit of work bound by the UnitOfWork middleware
func (h *BaseHandler) requestContext(c *gin.Context) (*uow.RequestContext, bool) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		h.InternalError(c, "Request is not bound to a database session")
		return nil, false
	}
	return rc, true
}

// actorID returns the authenticated user's ID
func (h *BaseHandler) actorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetJWTUserUUID(c)
	if !ok {
		h.Unauthorized(c, "Could not validate credentials")
		return uuid.Nil, false
	}
	return id, true
}

// uuidParam parses a UUID path parameter
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// page reads skip and limit query parameters
func (h *BaseHandler) page(c *gin.Context, defaultLimit int) (shared.Page, bool) {
	page := shared.Page{Limit: defaultLimit}
	if v := c.Query("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "skip must be a non-negative integer")
			return page, false
		}
		page.Skip = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "limit must be between 1 and 1000")
			return page, false
		}
		page.Limit = n
	}
	return page, true
}
