package middleware

import (
	"FaceScan/pkg/log"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

// maxLoggedField caps any string body field; base64 frames are replaced by
// their length.
const maxLoggedField = 256

var sensitiveFields = []string{
	"password", "token", "access_token", "secret", "key", "auth",
	"credential", "authorization",
}

var imageFields = []string{"image_base64", "images"}

func LoggerConfig() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		c.Locals("request_id", requestID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		if err != nil && status == fiber.StatusInternalServerError {
			return err
		}

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if body := c.Request().Body(); len(body) > 0 {
			logFields["request_body"] = sanitizeRequestBody(body)
		}

		if status >= 500 {
			log.Error(logFields, "Server error")
		} else if status >= 400 {
			log.Warn(logFields, "Client error")
		} else {
			log.Info(logFields, "Success")
		}

		return err
	}
}

func sanitizeRequestBody(body []byte) string {
	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for _, field := range sensitiveFields {
		if _, exists := jsonBody[field]; exists {
			jsonBody[field] = "[SECRET]"
		}
	}

	for _, field := range imageFields {
		switch v := jsonBody[field].(type) {
		case string:
			jsonBody[field] = fmt.Sprintf("[image %d bytes]", len(v))
		case []interface{}:
			jsonBody[field] = fmt.Sprintf("[%d images]", len(v))
		}
	}

	for k, v := range jsonBody {
		if s, ok := v.(string); ok && len(s) > maxLoggedField {
			jsonBody[k] = s[:maxLoggedField] + "..."
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return strings.TrimSpace(string(sanitized))
}
