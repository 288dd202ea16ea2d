package media

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

type memObject struct {
	data    []byte
	modTime time.Time
	meta    storage.Meta
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu         sync.Mutex
	objects    map[string]memObject
	persisted  []string
	persistErr error
	now        func() time.Time
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}, now: time.Now}
}

func (s *memStore) Persist(_ context.Context, path string, data []byte, meta storage.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.objects[path] = memObject{data: append([]byte(nil), data...), modTime: s.now(), meta: meta}
	s.persisted = append(s.persisted, path)
	return nil
}

func (s *memStore) Stat(_ context.Context, path string) (storage.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		return storage.Stat{}, storage.ErrNotFound
	}
	return storage.Stat{ModTime: obj.modTime, Checksum: md5Hex(obj.data)}, nil
}

func (s *memStore) put(path string, data []byte, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = memObject{data: data, modTime: modTime}
}

func (s *memStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}

func (s *memStore) get(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[path].data
}

// fakeClient serves canned responses by URL. When gate is set every request
// blocks until it is closed.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]*fetch.Response
	calls     map[string]int
	requests  []*fetch.Request
	gate      chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{responses: map[string]*fetch.Response{}, calls: map[string]int{}}
}

func (c *fakeClient) serve(url string, status int, body []byte, header http.Header) {
	if header == nil {
		header = http.Header{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[url] = &fetch.Response{URL: url, Status: status, Body: body, Header: header}
}

func (c *fakeClient) Do(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	c.mu.Lock()
	c.calls[req.URL]++
	c.requests = append(c.requests, req)
	gate := c.gate
	resp, ok := c.responses[req.URL]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrFetchFailure, "no route to %s", req.URL)
	}
	return resp, nil
}

func (c *fakeClient) callCount(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[url]
}

func (c *fakeClient) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// collector gathers delivered outcomes.
type collector struct {
	mu       sync.Mutex
	outcomes []Outcome
	wg       sync.WaitGroup
}

func (c *collector) expect(n int) { c.wg.Add(n) }

func (c *collector) deliver(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
	c.wg.Done()
}

func (c *collector) wait(t *testing.T) []Outcome {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcomes")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.outcomes...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}
