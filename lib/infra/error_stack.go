package infra

import (
	"fmt"
	"io"
	"runtime"

	"go.uber.org/zap/zapcore"
)

// ErrorStack is an error that carries the call stack captured where it
// was created or first wrapped. It renders inline into structured logs.
type ErrorStack interface {
	error
	fmt.Formatter
	zapcore.ObjectMarshaler
	Unwrap() error
}

type errorStack struct {
	msg   string
	cause error
	stack []Frame
}

func callers(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := make([]Frame, 0, n)
	for _, pc := range pcs[:n] {
		frames = append(frames, Frame(pc))
	}
	return frames
}

// NewErrorStack creates a new error with the current call stack.
func NewErrorStack(msg string) error {
	return &errorStack{msg: msg, stack: callers(3)}
}

// WrapErrorStack attaches the current call stack to err. An err that
// already carries a stack is returned as is; a nil err stays nil.
func WrapErrorStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(ErrorStack); ok {
		return err
	}
	return &errorStack{cause: err, stack: callers(3)}
}

// WrapErrorStackWithMessage is WrapErrorStack plus a prefix message.
func WrapErrorStackWithMessage(err error, msg string) error {
	if err == nil {
		return &errorStack{msg: msg, stack: callers(3)}
	}
	return &errorStack{msg: msg, cause: err, stack: callers(3)}
}

func (e *errorStack) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *errorStack) Unwrap() error { return e.cause }

func (e *errorStack) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		_, _ = io.WriteString(s, e.Error())
		if s.Flag('+') {
			for _, frame := range e.stack {
				_, _ = io.WriteString(s, "\n")
				frame.Format(s, 'v')
			}
		}
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

func (e *errorStack) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("error", e.Error())
	return enc.AddArray("stack", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for _, frame := range e.stack {
			txt, err := frame.MarshalText()
			if err != nil {
				return err
			}
			arr.AppendString(string(txt))
		}
		return nil
	}))
}
