package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "run", "trace-1")
	assert.Same(t, root, FromContext(ctx))

	childCtx, build := Start(ctx, "build", "ignored")
	assert.Equal(t, "trace-1", build.TraceID)
	_, leaf := Start(childCtx, "file", "")
	time.Sleep(time.Millisecond)
	leaf.End(nil)
	build.End(errors.New("unreadable"))
	build.End(nil)
	root.SetAttr("words", 3)
	root.End(nil)

	require.Len(t, root.Children(), 1)
	assert.Len(t, build.Children(), 1)
	assert.GreaterOrEqual(t, root.Duration(), leaf.Duration())
	assert.Positive(t, leaf.Duration())

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "span=run")
	assert.Contains(t, lines[0], "words=3")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "error=unreadable")
	assert.Contains(t, lines[2], "depth=2")
}

func TestFromContextWithoutSpan(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
