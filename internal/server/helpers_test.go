package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"commentId", "comment ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		name           string
		url            string
		expectedLimit  float64
		expectedOffset float64
	}{
		{"Defaults", "/items", 25, 0},
		{"Custom", "/items?limit=10&offset=30", 10, 30},
		{"Capped", "/items?limit=5000", 100, 0},
		{"Negative Offset", "/items?offset=-5", 25, 0},
		{"Zero Limit Falls Back", "/items?limit=0", 25, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.expectedLimit, body["limit"])
			assert.Equal(t, tt.expectedOffset, body["offset"])
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		limit    int
		expected int64
	}{
		{"Empty", 0, 10, 0},
		{"Exact", 20, 10, 2},
		{"Partial Last Page", 21, 10, 3},
		{"Single", 1, 10, 1},
		{"Zero Limit", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, totalPages(tt.total, tt.limit))
		})
	}
}

func TestRespondServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"Validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"Not Found", models.NewNotFoundError("post", 1), http.StatusNotFound},
		{"Permission", models.NewPermissionError("nope"), http.StatusForbidden},
		{"Depth Exceeded", models.NewDepthExceededError(3), http.StatusUnprocessableEntity},
		{"Conflict", models.NewConflictError("taken"), http.StatusConflict},
		{"Internal", models.NewInternalError(assert.AnError), http.StatusInternalServerError},
		{"Plain Error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return respondServiceError(c, tt.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
