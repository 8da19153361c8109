package health

import (
	"maps"
	"reflect"
)

// maxErrorDepth stops runaway chains built from errors that wrap themselves.
const maxErrorDepth = 32

// ErrorDisplay is the report form of an error chain.
type ErrorDisplay struct {
	ClassName  string         `json:"ClassName"`
	Message    string         `json:"Message"`
	StackTrace string         `json:"StackTraceString,omitempty"`
	Data       map[string]any `json:"Data,omitempty"`
	Inner      *ErrorDisplay  `json:"InnerException,omitempty"`
}

// NewErrorDisplay flattens err and its causes. Errors that implement
// StackTrace() string or ErrorData() map[string]any contribute those
// fields. For joined errors only the first branch is followed. A nil error
// yields nil.
func NewErrorDisplay(err error) *ErrorDisplay {
	return newErrorDisplay(err, 1)
}

func newErrorDisplay(err error, depth int) *ErrorDisplay {
	if err == nil {
		return nil
	}
	d := &ErrorDisplay{
		ClassName: className(err),
		Message:   err.Error(),
	}
	if st, ok := err.(interface{ StackTrace() string }); ok {
		d.StackTrace = st.StackTrace()
	}
	if ed, ok := err.(interface{ ErrorData() map[string]any }); ok {
		if data := ed.ErrorData(); len(data) > 0 {
			d.Data = maps.Clone(data)
		}
	}
	if depth < maxErrorDepth {
		d.Inner = newErrorDisplay(cause(err), depth+1)
	}
	return d
}

// Depth returns the number of levels in the chain.
func (d *ErrorDisplay) Depth() int {
	n := 0
	for ; d != nil; d = d.Inner {
		n++
	}
	return n
}

func cause(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

func className(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
