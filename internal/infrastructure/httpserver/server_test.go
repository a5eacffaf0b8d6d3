package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/application/services"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver"
	"github.com/avatarctic/tenancy-engine/test/mocks"
)

type testServer struct {
	server      *httpserver.Server
	identity    *services.IdentityService
	invites     *mocks.InviteCodeServiceMock
	revocations *mocks.RevocationServiceMock
	properties  *mocks.PropertyServiceMock
	audit       *mocks.AuditServiceMock
}

func newTestServer(t *testing.T, checkers ...ports.HealthChecker) *testServer {
	t.Helper()
	ts := &testServer{
		identity:    services.NewIdentityService(services.IdentityConfig{Secret: "test-secret"}, nil),
		invites:     &mocks.InviteCodeServiceMock{},
		revocations: &mocks.RevocationServiceMock{},
		properties:  &mocks.PropertyServiceMock{},
		audit:       &mocks.AuditServiceMock{},
	}
	ts.server = httpserver.NewServer(&httpserver.ServerConfig{
		Environment:      "test",
		DefaultInviteTTL: time.Hour,
	}, nil, httpserver.ServerDeps{
		InviteService:     ts.invites,
		RevocationService: ts.revocations,
		PropertyService:   ts.properties,
		AuditService:      ts.audit,
		IdentityService:   ts.identity,
		HealthCheckers:    checkers,
	})
	return ts
}

func (ts *testServer) token(t *testing.T, actor uuid.UUID, role auth.Role) string {
	t.Helper()
	tok, err := ts.identity.Issue(actor, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpserver.ErrorResponse {
	t.Helper()
	var body httpserver.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindAuthorization, http.StatusForbidden},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindStateConflict, http.StatusConflict},
		{apperr.KindThrottling, http.StatusTooManyRequests},
		{apperr.KindTransientConflict, http.StatusServiceUnavailable},
		{apperr.KindExhaustion, http.StatusInternalServerError},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, httpserver.StatusFor(tt.kind))
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer(t, &mocks.HealthCheckerMock{NameValue: "store"})
		rec := ts.do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"store":"healthy"`)
	})

	t.Run("degraded", func(t *testing.T) {
		ts := newTestServer(t, &mocks.HealthCheckerMock{NameValue: "redis", CheckFn: func(context.Context) error { return errors.New("down") }})
		rec := ts.do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})

	t.Run("reports every named dependency and skips nil", func(t *testing.T) {
		ts := newTestServer(t,
			&mocks.HealthCheckerMock{NameValue: "documents"},
			nil,
			&mocks.HealthCheckerMock{NameValue: "redis", CheckFn: func(context.Context) error { return errors.New("down") }},
		)
		rec := ts.do(http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body struct {
			Status       string            `json:"status"`
			Service      string            `json:"service"`
			Dependencies map[string]string `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "tenancy-engine", body.Service)
		assert.Equal(t, map[string]string{"documents": "healthy", "redis": "unhealthy"}, body.Dependencies)
	})

	t.Run("no dependencies", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"dependencies":{}`)
	})
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	landlord := uuid.New()

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/v1/me/roster", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("forged token", func(t *testing.T) {
		other := services.NewIdentityService(services.IdentityConfig{Secret: "other"}, nil)
		tok, err := other.Issue(landlord, auth.RoleLandlord, time.Hour)
		require.NoError(t, err)
		rec := ts.do(http.MethodGet, "/api/v1/me/roster", tok, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/v1/me/roster", ts.token(t, uuid.New(), auth.RoleTenant), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	})

	t.Run("valid landlord", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/v1/me/roster", ts.token(t, landlord, auth.RoleLandlord), "")
		require.Equal(t, http.StatusOK, rec.Code)
		var roster tenancy.LandlordRoster
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
		assert.Equal(t, landlord, roster.LandlordID)
	})
}

func TestCreateInviteCode(t *testing.T) {
	ts := newTestServer(t)
	landlord, propertyID := uuid.New(), uuid.New()
	tok := ts.token(t, landlord, auth.RoleLandlord)

	var got *invite.CreateCodeRequest
	ts.invites.CreateCodeFn = func(_ context.Context, req *invite.CreateCodeRequest) (*invite.InviteCode, error) {
		got = req
		return &invite.InviteCode{Code: "ABCD2345", PropertyID: req.PropertyID, UnitID: req.UnitID, Status: invite.StatusActive}, nil
	}
	path := "/api/v1/properties/" + propertyID.String() + "/units/1A/invites"

	t.Run("default ttl", func(t *testing.T) {
		rec := ts.do(http.MethodPost, path, tok, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(3600), got.TTLSeconds)
		assert.Equal(t, landlord, got.LandlordID)
		assert.Equal(t, propertyID, got.PropertyID)
		assert.Equal(t, "1A", got.UnitID)
		assert.Contains(t, rec.Body.String(), `"ABCD2345"`)
	})

	t.Run("explicit zero ttl", func(t *testing.T) {
		rec := ts.do(http.MethodPost, path, tok, `{"ttl_seconds":0,"recipient_email":"t@example.com"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(0), got.TTLSeconds)
		assert.Equal(t, "t@example.com", got.RecipientEmail)
	})

	t.Run("negative ttl", func(t *testing.T) {
		rec := ts.do(http.MethodPost, path, tok, `{"ttl_seconds":-5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
	})

	t.Run("bad property id", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/properties/nope/units/1A/invites", tok, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tenant may not create", func(t *testing.T) {
		rec := ts.do(http.MethodPost, path, ts.token(t, uuid.New(), auth.RoleTenant), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRedeemInviteCode(t *testing.T) {
	ts := newTestServer(t)
	tenant := uuid.New()
	tok := ts.token(t, tenant, auth.RoleTenant)

	replayed := false
	ts.invites.RedeemFn = func(_ context.Context, req *invite.RedeemRequest) (*invite.RedeemResult, error) {
		assert.Equal(t, tenant, req.TenantID)
		assert.Equal(t, "abcd-2345", req.Code)
		return &invite.RedeemResult{PropertyID: uuid.New(), UnitID: "1A", Replayed: replayed}, nil
	}

	rec := ts.do(http.MethodPost, "/api/v1/invites/abcd-2345/redeem", tok, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	replayed = true
	rec = ts.do(http.MethodPost, "/api/v1/invites/abcd-2345/redeem", tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"replayed":true`)

	rec = ts.do(http.MethodPost, "/api/v1/invites/abcd-2345/redeem", ts.token(t, uuid.New(), auth.RoleLandlord), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter string
	}{
		{"not found", apperr.ErrCodeNotFound, http.StatusNotFound, "CODE_NOT_FOUND", ""},
		{"expired", apperr.ErrCodeExpired, http.StatusConflict, "CODE_EXPIRED", ""},
		{"full", apperr.ErrUnitFull, http.StatusConflict, "UNIT_FULL", ""},
		{"not owner", apperr.ErrNotOwner, http.StatusForbidden, "NOT_OWNER", ""},
		{"invalid", apperr.ErrInvalidRequest.WithMessage("code: bad"), http.StatusBadRequest, "INVALID_REQUEST", ""},
		{"rate limited", apperr.RateLimited(44200 * time.Millisecond), http.StatusTooManyRequests, "RATE_LIMITED", "45"},
		{"conflict", apperr.ErrConflict, http.StatusServiceUnavailable, "CONFLICT", "1"},
		{"exhausted", apperr.ErrGenerationExhausted, http.StatusInternalServerError, "GENERATION_EXHAUSTED", ""},
		{"foreign", errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL", ""},
		{"wrapped internal", apperr.ErrInternal.Wrap(errors.New("secret detail")), http.StatusInternalServerError, "INTERNAL", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.invites.ValidateFn = func(context.Context, *invite.ValidateRequest) (*invite.Summary, error) {
				return nil, tt.err
			}
			rec := ts.do(http.MethodGet, "/api/v1/invites/ABCD2345", ts.token(t, uuid.New(), auth.RoleTenant), "")
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "secret detail")
			assert.NotContains(t, body.Message, "connection refused")
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestPropertyRoutes(t *testing.T) {
	ts := newTestServer(t)
	landlord := uuid.New()
	tok := ts.token(t, landlord, auth.RoleLandlord)

	t.Run("register", func(t *testing.T) {
		ts.properties.RegisterPropertyFn = func(_ context.Context, req *property.RegisterPropertyRequest) (*property.Property, error) {
			assert.Equal(t, landlord, req.LandlordID)
			return &property.Property{ID: uuid.New(), Name: req.Name, LandlordID: req.LandlordID}, nil
		}
		rec := ts.do(http.MethodPost, "/api/v1/properties", tok, `{"name":"Oak Row","units":[{"id":"1","capacity":2}]}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("register without units", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/properties", tok, `{"name":"Oak Row"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
	})

	t.Run("capacity", func(t *testing.T) {
		propertyID := uuid.New()
		ts.properties.UpdateUnitCapacityFn = func(_ context.Context, req *property.UpdateUnitCapacityRequest) (*property.Property, error) {
			assert.Equal(t, propertyID, req.PropertyID)
			assert.Equal(t, "2B", req.UnitID)
			assert.Equal(t, 4, req.Capacity)
			return nil, apperr.ErrCapacityBelowOccupancy
		}
		rec := ts.do(http.MethodPut, "/api/v1/properties/"+propertyID.String()+"/units/2B/capacity", tok, `{"capacity":4}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CAPACITY_BELOW_OCCUPANCY", decodeError(t, rec).Code)
	})

	t.Run("remove tenant", func(t *testing.T) {
		propertyID, tenant := uuid.New(), uuid.New()
		var got *tenancy.RemoveRequest
		ts.revocations.RemoveFn = func(_ context.Context, req *tenancy.RemoveRequest) error {
			got = req
			return nil
		}
		rec := ts.do(http.MethodDelete, "/api/v1/properties/"+propertyID.String()+"/units/1A/tenants/"+tenant.String(), tok, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, &tenancy.RemoveRequest{LandlordID: landlord, TenantID: tenant, PropertyID: propertyID, UnitID: "1A"}, got)
	})
}

func TestGetAuditLogs(t *testing.T) {
	ts := newTestServer(t)
	actor := uuid.New()
	tok := ts.token(t, actor, auth.RoleTenant)

	var got *audit.AuditLogFilter
	ts.audit.GetAuditLogsFn = func(_ context.Context, f *audit.AuditLogFilter) ([]*audit.AuditLog, int, error) {
		got = f
		return []*audit.AuditLog{}, 0, nil
	}

	rec := ts.do(http.MethodGet, "/api/v1/audit/logs?action=redeem&outcome=failure&limit=5&start_time=2026-01-01T00:00:00Z", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, actor, *got.ActorID)
	assert.Equal(t, "redeem", string(*got.Action))
	assert.Equal(t, audit.OutcomeFailure, *got.Outcome)
	assert.Equal(t, 5, got.Limit)
	require.NotNil(t, got.StartTime)

	rec = ts.do(http.MethodGet, "/api/v1/audit/logs?outcome=maybe", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/audit/logs?limit=lots", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
