package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/context"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel(""))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, parseLevel("loud"))
}

func TestErrorWithTraceID(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	assert.Equal(t, "req-1", ErrorWithTraceID(Fields{"request_id": "req-1"}, "boom"))

	generated := ErrorWithTraceID(Fields{"request_id": "unknown"}, "boom")
	assert.Len(t, generated, 36)
	assert.NotEqual(t, generated, ErrorWithTraceID(nil, "boom"))
}

func TestWithRequestID(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	assert.Equal(t, "req-9", WithRequestID(ctx).Data[RequestIDKey])
	assert.Equal(t, "unknown", WithRequestID(context.Background()).Data[RequestIDKey])
}
