package handlerUtil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"FaceScan/internal/api/scan"
	"FaceScan/internal/capture"
	pkgUtils "FaceScan/pkg/utils"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "domain error", err: scan.ErrScanNotFound, status: http.StatusNotFound, code: "SCAN_NOT_FOUND"},
		{name: "busy surface", err: capture.ErrBusy, status: http.StatusConflict, code: "SCAN_BUSY"},
		{name: "no images", err: capture.ErrNoImages, status: http.StatusUnprocessableEntity, code: "NO_IMAGES_CAPTURED"},
		{name: "save failed", err: fmt.Errorf("%w: %v", capture.ErrSaveFailed, errors.New("db down")), status: http.StatusInternalServerError, code: "SAVE_FAILED"},
		{name: "bad image", err: pkgUtils.ErrInvalidImage, status: http.StatusBadRequest, code: "INVALID_IMAGE"},
		{name: "large image", err: pkgUtils.ErrImageTooBig, status: http.StatusRequestEntityTooLarge, code: "IMAGE_TOO_LARGE"},
		{name: "fiber error", err: fiber.ErrUnprocessableEntity, status: http.StatusUnprocessableEntity},
		{name: "unknown", err: errors.New("kaboom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return New(logger).Handle(c, "req-1", tt.err, c.Path(), "test")
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
