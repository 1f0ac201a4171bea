package trace

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTraceID(t *testing.T) {
	a, b := GenerateTraceID(), GenerateTraceID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))

	ctx := WithContext(context.Background(), "abc")
	assert.Equal(t, "abc", FromContext(ctx))

	same, id := Ensure(ctx)
	assert.Equal(t, "abc", id)
	assert.Equal(t, ctx, same)

	_, fresh := Ensure(context.Background())
	assert.Len(t, fresh, 32)
}

func TestFromHeaders(t *testing.T) {
	h := http.Header{}
	assert.Empty(t, FromHeaders(h.Get))

	h.Set(RequestIDHeader, "req-1")
	assert.Equal(t, "req-1", FromHeaders(h.Get))

	h.Set(HeaderName, " trace-1 ")
	assert.Equal(t, "trace-1", FromHeaders(h.Get))
}
