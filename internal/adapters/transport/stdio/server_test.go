package stdio

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bnema/osabridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestServeAnswersEachLineInOrder(t *testing.T) {
	t.Parallel()

	handler := mocks.NewMockCommandHandler(t)
	handler.EXPECT().Call(mock.Anything, `{"name":"one"}`).Return(`"1"`).Once()
	handler.EXPECT().Call(mock.Anything, `{"name":"two"}`).Return(`"2"`).Once()

	in := strings.NewReader("{\"name\":\"one\"}\n\n   \n{\"name\":\"two\"}\r\n")
	var out bytes.Buffer

	err := NewServer(in, &out, handler, nil).Serve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "\"1\"\n\"2\"\n", out.String())
}

func TestServeStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	handler := mocks.NewMockCommandHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewServer(strings.NewReader("{}\n"), &out, handler, nil).Serve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestServeRejectsOversizedLineAndKeepsServing(t *testing.T) {
	t.Parallel()

	handler := mocks.NewMockCommandHandler(t)
	handler.EXPECT().Call(mock.Anything, `{"name":"next"}`).Return(`"ok"`).Once()

	in := strings.NewReader(strings.Repeat("x", maxLineSize+1) + "\n" + `{"name":"next"}` + "\n")
	var out bytes.Buffer

	err := NewServer(in, &out, handler, nil).Serve(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"type":"error"`)
	assert.Contains(t, lines[0], `"code":"MalformedCommand"`)
	assert.Equal(t, `"ok"`, lines[1])
}

func TestServeRejectsOversizedFinalLine(t *testing.T) {
	t.Parallel()

	handler := mocks.NewMockCommandHandler(t)
	in := strings.NewReader(strings.Repeat("x", maxLineSize*2))
	var out bytes.Buffer

	err := NewServer(in, &out, handler, nil).Serve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), `"code":"MalformedCommand"`)
}

func TestServeAcceptsLineAtLimitAndUnterminatedLast(t *testing.T) {
	t.Parallel()

	atLimit := `"` + strings.Repeat("a", maxLineSize-2) + `"`
	handler := mocks.NewMockCommandHandler(t)
	handler.EXPECT().Call(mock.Anything, atLimit).Return(`"big"`).Once()
	handler.EXPECT().Call(mock.Anything, `{"name":"last"}`).Return(`"last"`).Once()

	in := strings.NewReader(atLimit + "\n" + `{"name":"last"}`)
	var out bytes.Buffer

	err := NewServer(in, &out, handler, nil).Serve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "\"big\"\n\"last\"\n", out.String())
}

func TestServeReportsWriteFailure(t *testing.T) {
	t.Parallel()

	handler := mocks.NewMockCommandHandler(t)
	handler.EXPECT().Call(mock.Anything, "{}").Return("{}").Once()

	err := NewServer(strings.NewReader("{}\n"), failingWriter{}, handler, nil).Serve(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "flush response")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("pipe closed")
}
