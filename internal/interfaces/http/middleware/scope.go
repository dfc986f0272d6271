package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// School scope headers. Every finance request names its school and
// academic year explicitly; the acting user is optional.
const (
	SchoolIDHeader     = "X-School-ID"
	AcademicYearHeader = "X-Academic-Year"
	UserIDHeader       = "X-User-ID"

	schoolScopeKey = "school_scope"
)

// SchoolScope resolves the scope headers into a shared.SchoolScope stored on
// the gin context, and adds the school to the request logger and span
func SchoolScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, msg := parseScope(c)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidScope, msg, GetRequestID(c)))
			return
		}

		c.Set(schoolScopeKey, scope)

		userID := ""
		if scope.UserID != uuid.Nil {
			userID = scope.UserID.String()
		}
		ctx := logger.WithSchool(c.Request.Context(), scope.SchoolID.String(), scope.AcademicYear, userID)
		c.Request = c.Request.WithContext(ctx)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("school_id", scope.SchoolID.String()),
				attribute.String("academic_year", scope.AcademicYear),
			)
		}
		c.Next()
	}
}

// GetSchoolScope returns the scope stored by SchoolScope
func GetSchoolScope(c *gin.Context) (shared.SchoolScope, bool) {
	v, ok := c.Get(schoolScopeKey)
	if !ok {
		return shared.SchoolScope{}, false
	}
	scope, ok := v.(shared.SchoolScope)
	return scope, ok
}

func parseScope(c *gin.Context) (shared.SchoolScope, string) {
	var scope shared.SchoolScope

	raw := c.GetHeader(SchoolIDHeader)
	if raw == "" {
		return scope, SchoolIDHeader + " header is required"
	}
	schoolID, err := uuid.Parse(raw)
	if err != nil || schoolID == uuid.Nil {
		return scope, SchoolIDHeader + " must be a UUID"
	}
	scope.SchoolID = schoolID

	year := c.GetHeader(AcademicYearHeader)
	if year == "" {
		return scope, AcademicYearHeader + " header is required"
	}
	if !finance.ValidAcademicYear(year) {
		return scope, finance.ErrInvalidAcademicYear.Message
	}
	scope.AcademicYear = year

	if raw := c.GetHeader(UserIDHeader); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return scope, UserIDHeader + " must be a UUID"
		}
		scope.UserID = userID
	}
	return scope, ""
}
