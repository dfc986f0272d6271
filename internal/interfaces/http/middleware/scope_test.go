package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scopeCapture struct {
	scope   shared.SchoolScope
	found   bool
	ctx     context.Context
	reached bool
}

func newScopedRouter(t *testing.T, got *scopeCapture) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(RequestID(), SchoolScope())
	router.GET("/scoped", func(c *gin.Context) {
		got.scope, got.found = GetSchoolScope(c)
		got.ctx = c.Request.Context()
		got.reached = true
		c.Status(http.StatusOK)
	})
	return router
}

func TestSchoolScope_Resolves(t *testing.T) {
	var captured scopeCapture
	router := newScopedRouter(t, &captured)

	schoolID := uuid.New()
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set(SchoolIDHeader, schoolID.String())
	req.Header.Set(AcademicYearHeader, "2025-2026")
	req.Header.Set(UserIDHeader, userID.String())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.True(t, captured.found)
	scope := captured.scope
	assert.Equal(t, schoolID, scope.SchoolID)
	assert.Equal(t, "2025-2026", scope.AcademicYear)
	assert.Equal(t, userID, scope.UserID)

	ctx := captured.ctx
	assert.Equal(t, schoolID.String(), logger.GetSchoolID(ctx))
	assert.Equal(t, "2025-2026", logger.GetAcademicYear(ctx))
	assert.Equal(t, userID.String(), logger.GetUserID(ctx))
}

func TestSchoolScope_UserOptional(t *testing.T) {
	var captured scopeCapture
	router := newScopedRouter(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set(SchoolIDHeader, uuid.NewString())
	req.Header.Set(AcademicYearHeader, "2024-2025")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.True(t, captured.found)
	scope := captured.scope
	assert.Equal(t, uuid.Nil, scope.UserID)
}

func TestSchoolScope_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		school  string
		year    string
		user    string
		message string
	}{
		{"missing school", "", "2025-2026", "", "X-School-ID header is required"},
		{"malformed school", "school-1", "2025-2026", "", "X-School-ID must be a UUID"},
		{"nil school", uuid.Nil.String(), "2025-2026", "", "X-School-ID must be a UUID"},
		{"missing year", uuid.NewString(), "", "", "X-Academic-Year header is required"},
		{"non consecutive year", uuid.NewString(), "2025-2027", "", "Academic year must look like 2025-2026"},
		{"single year", uuid.NewString(), "2025", "", "Academic year must look like 2025-2026"},
		{"malformed user", uuid.NewString(), "2025-2026", "bursar", "X-User-ID must be a UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured scopeCapture
			router := newScopedRouter(t, &captured)

			req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
			if tt.school != "" {
				req.Header.Set(SchoolIDHeader, tt.school)
			}
			if tt.year != "" {
				req.Header.Set(AcademicYearHeader, tt.year)
			}
			if tt.user != "" {
				req.Header.Set(UserIDHeader, tt.user)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "ERR_INVALID_SCOPE")
			assert.Contains(t, w.Body.String(), tt.message)
			assert.False(t, captured.reached)
		})
	}
}
