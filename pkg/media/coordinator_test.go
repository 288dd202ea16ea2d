package media

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/expiry"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/storage"
	storagemocks "github.com/cperrin88/mediafetch/pkg/storage/mocks"
)

const fileURL = "http://example.com/files/doc.pdf"

func newFileCoordinator(store *memStore, client *fakeClient, opts Options) *Coordinator {
	proc := NewFileProcessor(ProcessorOptions{Store: store, Client: client})
	if opts.Expiry.Days == 0 {
		opts.Expiry = expiry.New(expiry.DefaultDays)
	}
	return NewCoordinator(store, client, proc, opts)
}

func TestCoordinator_SingleFetchForConcurrentRequests(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.serve(fileURL, http.StatusOK, []byte("%PDF-1.4 content"), nil)
	client.gate = make(chan struct{})
	c := newFileCoordinator(store, client, Options{})

	const n = 10
	var col collector
	col.expect(n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c.Submit(context.Background(), Request{URL: fileURL, Slot: slot}, col.deliver)
		}(i)
	}
	wg.Wait()
	require.Eventually(t, func() bool { return c.Stats().Coalesced == n-1 }, time.Second, time.Millisecond)
	close(client.gate)

	outcomes := col.wait(t)
	c.Wait()

	assert.Equal(t, 1, client.callCount(fileURL))
	statuses := map[Status]int{}
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		statuses[o.Status]++
		assert.Equal(t, outcomes[0].Path, o.Path)
		assert.Equal(t, outcomes[0].Checksum, o.Checksum)
	}
	assert.Equal(t, map[Status]int{StatusDownloaded: 1, StatusCached: n - 1}, statuses)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, Stats{Fetches: 1, Coalesced: n - 1}, c.Stats())
}

func TestCoordinator_DownloadedThenCached(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.serve(fileURL, http.StatusOK, []byte("bytes"), nil)
	client.gate = make(chan struct{})
	c := newFileCoordinator(store, client, Options{})

	var first, second Outcome
	var wg sync.WaitGroup
	wg.Add(2)
	c.Submit(context.Background(), Request{URL: fileURL, BatchID: "item-1"}, func(o Outcome) { first = o; wg.Done() })
	c.Submit(context.Background(), Request{URL: fileURL, BatchID: "item-2"}, func(o Outcome) { second = o; wg.Done() })
	close(client.gate)
	wg.Wait()

	assert.Equal(t, StatusDownloaded, first.Status)
	assert.Equal(t, StatusCached, second.Status)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, "full/"+fingerprint.Of(fileURL).String()+".pdf", first.Path)
	assert.Equal(t, 1, client.callCount(fileURL))
}

func TestCoordinator_Uptodate(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	path := "full/" + fingerprint.Of(fileURL).String() + ".pdf"

	tests := []struct {
		name    string
		age     time.Duration
		days    int
		status  Status
		fetches int
	}{
		{"fresh copy is reused", 24 * time.Hour, 90, StatusUptodate, 0},
		{"stale copy is refetched", 91 * 24 * time.Hour, 90, StatusDownloaded, 1},
		{"custom threshold", 10 * 24 * time.Hour, 7, StatusDownloaded, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.put(path, []byte("old"), now.Add(-tt.age))
			client := newFakeClient()
			client.serve(fileURL, http.StatusOK, []byte("new"), nil)
			c := newFileCoordinator(store, client, Options{Expiry: expiry.New(tt.days), Now: func() time.Time { return now }})

			var col collector
			col.expect(1)
			c.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
			out := col.wait(t)[0]

			require.NoError(t, out.Err)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, path, out.Path)
			assert.Equal(t, tt.fetches, client.callCount(fileURL))
			assert.Equal(t, int64(tt.fetches), c.Stats().Fetches)
		})
	}
}

func TestCoordinator_ResubmitAfterResolution(t *testing.T) {
	tests := []struct {
		name      string
		retention time.Duration
		second    Status
	}{
		{"retention disabled rechecks the store", 0, StatusUptodate},
		{"retained outcome is handed out as cached", time.Minute, StatusCached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			client := newFakeClient()
			client.serve(fileURL, http.StatusOK, []byte("bytes"), nil)
			c := newFileCoordinator(store, client, Options{Retention: tt.retention})

			for i, want := range []Status{StatusDownloaded, tt.second} {
				var col collector
				col.expect(1)
				c.Submit(context.Background(), Request{URL: fileURL, Slot: i}, col.deliver)
				out := col.wait(t)[0]
				require.NoError(t, out.Err)
				assert.Equal(t, want, out.Status)
				c.Wait()
			}
			assert.Equal(t, 1, client.callCount(fileURL))
		})
	}
}

func TestCoordinator_FailureDeliveredToAllWaiters(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.serve(fileURL, http.StatusNotFound, nil, nil)
	client.gate = make(chan struct{})
	c := newFileCoordinator(store, client, Options{})

	var col collector
	col.expect(3)
	for i := 0; i < 3; i++ {
		c.Submit(context.Background(), Request{URL: fileURL, Slot: i}, col.deliver)
	}
	close(client.gate)

	for _, o := range col.wait(t) {
		assert.False(t, o.OK())
		assert.ErrorIs(t, o.Err, errors.ErrFetchFailure)
		assert.Equal(t, ReasonDownload, Reason(o.Err))
		assert.Empty(t, o.Status)
	}
	assert.Equal(t, int64(1), c.Stats().Failures)
	assert.Empty(t, store.persisted)
}

func TestCoordinator_FetchRequest(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.serve(fileURL, http.StatusOK, []byte("x"), nil)
	c := newFileCoordinator(store, client, Options{BasePriority: 5, AllowRedirects: true})

	var col collector
	col.expect(1)
	hdr := http.Header{"Referer": {"http://example.com/"}}
	c.Submit(context.Background(), Request{URL: fileURL, Header: hdr}, col.deliver)
	col.wait(t)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, 6, req.Priority)
	assert.True(t, req.FollowRedirects)
	assert.Equal(t, hdr, req.Header)
}

func TestCoordinator_Abort(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.serve(fileURL, http.StatusOK, []byte("a"), nil)
	client.serve("http://example.com/b.pdf", http.StatusOK, []byte("b"), nil)
	client.gate = make(chan struct{})
	c := newFileCoordinator(store, client, Options{})

	var col collector
	col.expect(3)
	c.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
	c.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
	c.Submit(context.Background(), Request{URL: "http://example.com/b.pdf"}, col.deliver)

	c.Abort(context.Canceled)
	for _, o := range col.wait(t) {
		assert.ErrorIs(t, o.Err, errors.ErrAborted)
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.Equal(t, ReasonAborted, Reason(o.Err))
	}
	assert.Equal(t, 0, c.Pending())

	// Late submissions fail straight away.
	var late Outcome
	c.Submit(context.Background(), Request{URL: "http://example.com/c.pdf"}, func(o Outcome) { late = o })
	assert.ErrorIs(t, late.Err, errors.ErrAborted)

	// Running fetches end without a second delivery.
	c.Wait()
	assert.Len(t, col.outcomes, 3)
	assert.Empty(t, store.persisted)

	// Abort is idempotent.
	c.Abort(nil)
}

func TestCoordinator_CanceledSubmission(t *testing.T) {
	c := newFileCoordinator(newMemStore(), newFakeClient(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out Outcome
	c.Submit(ctx, Request{URL: fileURL}, func(o Outcome) { out = o })
	assert.ErrorIs(t, out.Err, errors.ErrAborted)
	assert.Equal(t, 0, c.Pending())
}

type panicProcessor struct{}

func (panicProcessor) Path(context.Context, Request) (string, error) { return "full/x", nil }

func (panicProcessor) Process(context.Context, Request, string, *fetch.Response) Outcome {
	panic("boom")
}

func TestCoordinator_RecoversPanics(t *testing.T) {
	client := newFakeClient()
	client.serve(fileURL, http.StatusOK, []byte("x"), nil)
	c := NewCoordinator(newMemStore(), client, panicProcessor{}, Options{})

	var col collector
	col.expect(1)
	c.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
	out := col.wait(t)[0]
	assert.ErrorIs(t, out.Err, errors.ErrFetchFailure)
	assert.Contains(t, out.Err.Error(), "boom")
}

func TestCoordinator_TransportError(t *testing.T) {
	client := newFakeClient() // no routes: every fetch fails
	c := newFileCoordinator(newMemStore(), client, Options{})

	var col collector
	col.expect(1)
	c.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
	out := col.wait(t)[0]
	assert.Equal(t, ReasonDownload, Reason(out.Err))
	assert.Equal(t, fileURL, out.URL)
}

func TestCoordinator_StatErrorIsAMiss(t *testing.T) {
	tests := []struct {
		name    string
		statErr error
	}{
		{"backend failure", errors.Wrap(errors.ErrStorageFailure, "connection reset")},
		{"not found", storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := storagemocks.NewMockStore(ctrl)
			client := newFakeClient()
			body := []byte("%PDF-1.4 body")
			client.serve(fileURL, http.StatusOK, body, nil)

			path := fingerprint.DefaultPath(fileURL)
			gomock.InOrder(
				store.EXPECT().Stat(gomock.Any(), path).Return(storage.Stat{}, tt.statErr),
				store.EXPECT().Persist(gomock.Any(), path, body, gomock.Any()).Return(nil),
			)

			proc := NewFileProcessor(ProcessorOptions{Store: store, Client: client})
			coord := NewCoordinator(store, client, proc, Options{Expiry: expiry.New(expiry.DefaultDays)})

			var col collector
			col.expect(1)
			coord.Submit(context.Background(), Request{URL: fileURL}, col.deliver)
			out := col.wait(t)[0]
			coord.Wait()

			require.NoError(t, out.Err)
			assert.Equal(t, StatusDownloaded, out.Status)
			assert.Equal(t, path, out.Path)
			assert.Equal(t, 1, client.callCount(fileURL))
			assert.Equal(t, int64(1), coord.Stats().Fetches)
		})
	}
}
