package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func caller() Frame {
	var pcs [3]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC)
}

func TestFrameFormat(t *testing.T) {
	frame := caller()

	require.Equal(t, "err_stack_test.go", fmt.Sprintf("%s", frame))
	require.Contains(t, fmt.Sprintf("%+s", frame), "lib/infra.TestFrameFormat")
	require.Contains(t, fmt.Sprintf("%+s", frame), "err_stack_test.go")
	require.NotEmpty(t, fmt.Sprintf("%d", frame))
	require.Equal(t, "TestFrameFormat", fmt.Sprintf("%n", frame))
	require.True(t, strings.HasPrefix(fmt.Sprintf("%v", frame), "err_stack_test.go:"))
}

func TestFrameFormat_UnknownPC(t *testing.T) {
	frame := Frame(0)
	require.Equal(t, "unknownFile", fmt.Sprintf("%s", frame))
	require.Equal(t, "unknownFunc", fmt.Sprintf("%n", frame))
}

func TestFrameMarshal(t *testing.T) {
	frame := caller()

	txt, err := frame.MarshalText()
	require.NoError(t, err)
	require.Contains(t, string(txt), "lib/infra.TestFrameMarshal")

	raw, err := frame.MarshalJSON()
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded["func"], "TestFrameMarshal")
	require.Contains(t, decoded["fileAndLine"], "err_stack_test.go:")
}

func TestErrorStack_New(t *testing.T) {
	err := NewErrorStack("boom")
	require.EqualError(t, err, "boom")

	es, ok := err.(ErrorStack)
	require.True(t, ok)
	require.Nil(t, es.Unwrap())

	verbose := fmt.Sprintf("%+v", err)
	require.Contains(t, verbose, "boom")
	require.Contains(t, verbose, "TestErrorStack_New")
	require.Equal(t, "\"boom\"", fmt.Sprintf("%q", err))
}

func TestErrorStack_Wrap(t *testing.T) {
	require.Nil(t, WrapErrorStack(nil))

	cause := errors.New("root cause")
	err := WrapErrorStack(cause)
	require.EqualError(t, err, "root cause")
	require.ErrorIs(t, err, cause)

	// Wrapping an already stacked error keeps the original stack.
	require.Same(t, err.(ErrorStack), WrapErrorStack(err).(ErrorStack))

	withMsg := WrapErrorStackWithMessage(cause, "context")
	require.EqualError(t, withMsg, "context: root cause")
	require.ErrorIs(t, withMsg, cause)

	fresh := WrapErrorStackWithMessage(nil, "just a message")
	require.EqualError(t, fresh, "just a message")
}
