// Package capture holds the in-progress response a dispatched handler writes into.
// The response is committed and the invocation released exactly once, at flush time.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"sync"

	"github.com/aura-studio/lambda-bridge/latch"
)

var ErrFinalized = errors.New("capture: response already finalized")

const pendingBufferSize = 4096

// Response is the http.ResponseWriter handed to the dispatched handler.
type Response struct {
	mu      sync.Mutex
	latch   *latch.Latch
	header  http.Header
	final   http.Header
	status  int
	body    bytes.Buffer
	pending *bufio.Writer
	flushed bool
	err     error
}

// New returns a Response that releases l when finalized.
func New(l *latch.Latch) *Response {
	r := &Response{
		latch:  l,
		header: make(http.Header),
	}
	r.pending = bufio.NewWriterSize(&r.body, pendingBufferSize)
	return r
}

// Header returns the live header map. Only the handler goroutine may use it;
// readers of the committed response use FinalHeader.
func (r *Response) Header() http.Header {
	return r.header
}

// FinalHeader returns a copy of the header as it was at finalization, or nil
// before the response is finalized.
func (r *Response) FinalHeader() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final.Clone()
}

func (r *Response) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flushed || r.status != 0 {
		return
	}
	r.status = status
}

func (r *Response) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flushed {
		return 0, ErrFinalized
	}
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.pending.Write(p)
}

// WriteString lets io.WriteString and gin's string renderers skip a conversion.
func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// Flush finalizes the response. Handlers that stream must not expect later writes
// to reach the caller.
func (r *Response) Flush() {
	r.FinalizeAndSignal()
}

// FinalizeAndSignal commits buffered writes and releases the latch. Only the first
// call has any effect.
func (r *Response) FinalizeAndSignal() {
	r.mu.Lock()
	if r.flushed {
		r.mu.Unlock()
		return
	}
	r.flushed = true
	r.final = r.header.Clone()
	if err := r.pending.Flush(); err != nil && r.err == nil {
		r.err = err
	}
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.mu.Unlock()

	if r.latch != nil {
		r.latch.Signal()
	}
}

// Fail records a dispatch failure. The first recorded error wins.
func (r *Response) Fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = err
	}
}

// Err returns the first recorded dispatch or flush error.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flushed reports whether the response has been finalized.
func (r *Response) Flushed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}

// StatusCode returns the written status, or zero if nothing was written yet.
func (r *Response) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Body returns a copy of the committed body. Writes still pending are not included.
func (r *Response) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.body.Bytes())
}

// Latch returns the latch released on finalization.
func (r *Response) Latch() *latch.Latch {
	return r.latch
}

// Replay writes the committed response into w. Headers set after finalization
// are not replayed.
func (r *Response) Replay(w http.ResponseWriter) error {
	r.mu.Lock()
	status := r.status
	header := r.final.Clone()
	body := bytes.Clone(r.body.Bytes())
	r.mu.Unlock()

	dst := w.Header()
	for k, v := range header {
		dst[k] = v
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
