package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
)

type samplePayload struct {
	Email string  `json:"email" validate:"required,email"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=5"`
}

type optionalPayload struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=5"`
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","role":"admin"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyErrorDetails(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{name: "unknown field", body: `{"email":"a@b.co","role":"admin"}`, field: "role", message: "is not a recognised field"},
		{name: "wrong type", body: `{"email":42}`, field: "email", message: "must be a string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			err := DecodeJSONBody(req, &samplePayload{})
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			details, ok := typed.Details().(map[string]any)
			require.True(t, ok, "details: %#v", typed.Details())
			assert.Equal(t, tc.message, details[tc.field])
		})
	}
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}{"email":"c@d.co"}`))
	err := DecodeJSONBody(req, &samplePayload{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyLimitsSize(t *testing.T) {
	huge := `{"email":"a@b.co","notes":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	err := DecodeJSONBody(req, &samplePayload{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Contains(t, typed.Message(), "exceeds")
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeOptionalJSONBodyAcceptsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var dest optionalPayload
	require.NoError(t, DecodeOptionalJSONBody(req, &dest))
	assert.Nil(t, dest.Notes)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"too long"}`))
	err := DecodeOptionalJSONBody(req, &dest)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseQueryHelpers(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&featured=true&program_id="+id.String()+"&since=2026-03-01", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	featured, err := ParseQueryBool(req, "featured")
	require.NoError(t, err)
	require.NotNil(t, featured)
	assert.True(t, *featured)

	programID, err := ParseQueryUUID(req, "program_id")
	require.NoError(t, err)
	assert.Equal(t, id, *programID)

	since, err := ParseQueryTime(req, "since")
	require.NoError(t, err)
	assert.Equal(t, 2026, since.Year())

	missing, err := ParseQueryUUID(req, "user_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	bad := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParseQueryInt(bad, "limit", 25, 1, 100)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseURLUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	got, err := ParseURLUUID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseURLUUID(httptest.NewRequest(http.MethodGet, "/", nil), "id")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  welding   training ", 0, "welding training"},
		{"tab\tand\nnewline\x00", 0, "tab and newline"},
		{"Peñafrancia", 3, "Peñ"},
		{"ab cd", 3, "ab"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
