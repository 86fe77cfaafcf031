package app

import (
	"errors"
	"io"
)

// errorReader serves data and then fails with err instead of io.EOF.
type errorReader struct {
	data []byte
	err  error
}

func newErrorReader(data string, err error) *errorReader {
	return &errorReader{data: []byte(data), err: err}
}

func (r *errorReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		if r.err == nil {
			return 0, io.EOF
		}
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// errMockRead is a test error for reader failures.
var errMockRead = errors.New("mock read error")
