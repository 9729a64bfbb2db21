package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulvan-gateway/internal/errs"
)

type fakeDaemon struct {
	mu      sync.Mutex
	results map[string]string
	fail    map[string]error
	calls   int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		results: map[string]string{
			"getblockchaininfo": `{"chain":"main","blocks":100}`,
			"getmininginfo":     `{"difficulty":1.5}`,
			"getnetworkinfo":    `{"connections":8}`,
		},
		fail: map[string]error{},
	}
}

func (f *fakeDaemon) Call(_ context.Context, method string, _ json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[method]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.results[method]), nil
}

func (f *fakeDaemon) set(method, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}

func (f *fakeDaemon) failWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *fakeDaemon) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorderFunc func(ctx context.Context, snap Snapshot) error

func (r recorderFunc) Record(ctx context.Context, snap Snapshot) error { return r(ctx, snap) }

func TestSnapshotNullBeforeFirstFetch(t *testing.T) {
	raw, err := json.Marshal(NewCache().Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"blockchainInfo": null, "miningInfo": null, "networkInfo": null, "asOf": null,
		"updated": {"blockchainInfo": null, "miningInfo": null, "networkInfo": null}
	}`, string(raw))
}

func TestCacheSetCopiesInput(t *testing.T) {
	c := NewCache()
	buf := []byte(`{"blocks":1}`)
	c.Set(FieldBlockchain, buf, time.Unix(10, 0))
	buf[10] = '9'
	assert.JSONEq(t, `{"blocks":1}`, string(c.Snapshot().BlockchainInfo))
	assert.False(t, c.Snapshot().Empty())
}

func TestRefreshUpdatesAllFields(t *testing.T) {
	mock := clock.NewMock()
	cache := NewCache()
	p := NewPoller(newFakeDaemon(), cache, PollerConfig{Clock: mock})

	updated, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	snap := cache.Snapshot()
	assert.JSONEq(t, `{"chain":"main","blocks":100}`, string(snap.BlockchainInfo))
	assert.JSONEq(t, `{"difficulty":1.5}`, string(snap.MiningInfo))
	assert.JSONEq(t, `{"connections":8}`, string(snap.NetworkInfo))
	require.NotNil(t, snap.AsOf)
	assert.Equal(t, mock.Now(), *snap.AsOf)
}

func TestRefreshKeepsStaleFieldOnFailure(t *testing.T) {
	daemon := newFakeDaemon()
	cache := NewCache()
	p := NewPoller(daemon, cache, PollerConfig{Clock: clock.NewMock()})

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)

	daemon.set("getblockchaininfo", `{"chain":"main","blocks":101}`)
	daemon.failWith("getmininginfo", errs.Transport(errors.New("connection refused")))
	daemon.set("getnetworkinfo", `null`)

	updated, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, updated)
	assert.Contains(t, err.Error(), "getmininginfo")
	assert.Contains(t, err.Error(), "getnetworkinfo")

	snap := cache.Snapshot()
	assert.JSONEq(t, `{"chain":"main","blocks":101}`, string(snap.BlockchainInfo))
	assert.JSONEq(t, `{"difficulty":1.5}`, string(snap.MiningInfo))
	assert.JSONEq(t, `{"connections":8}`, string(snap.NetworkInfo))
}

func TestRefreshNeverPopulatesFromFailures(t *testing.T) {
	daemon := newFakeDaemon()
	for _, f := range Fields {
		daemon.failWith(f.Method(), errs.Upstream(-28, "Loading block index"))
	}
	cache := NewCache()
	p := NewPoller(daemon, cache, PollerConfig{Clock: clock.NewMock()})

	updated, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Zero(t, updated)
	assert.True(t, cache.Snapshot().Empty())
	assert.Nil(t, cache.Snapshot().BlockchainInfo)
}

func TestRunPollsOnInterval(t *testing.T) {
	mock := clock.NewMock()
	daemon := newFakeDaemon()
	var recorded sync.WaitGroup
	recorded.Add(1)
	var once sync.Once
	rec := recorderFunc(func(_ context.Context, snap Snapshot) error {
		once.Do(recorded.Done)
		return nil
	})
	p := NewPoller(daemon, NewCache(), PollerConfig{Interval: time.Second, Clock: mock, Recorder: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return daemon.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	recorded.Wait()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return daemon.callCount() >= 9
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPublisherStreamsSnapshots(t *testing.T) {
	mock := clock.NewMock()
	cache := NewCache()
	pub := NewPublisher(cache, time.Second, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := pub.Subscribe(ctx)

	first := <-ch
	assert.True(t, first.Empty())

	cache.Set(FieldNetwork, json.RawMessage(`{"connections":3}`), mock.Now())
	mock.Add(time.Second)

	select {
	case second := <-ch:
		assert.JSONEq(t, `{"connections":3}`, string(second.NetworkInfo))
	case <-time.After(time.Second):
		t.Fatal("no frame after tick")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	mock := clock.NewMock()
	cache := NewCache()
	cache.Set(FieldBlockchain, json.RawMessage(`{"blocks":1}`), mock.Now())
	pub := NewPublisher(cache, time.Second, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := pub.Subscribe(ctx)

	first := <-ch
	assert.JSONEq(t, `{"blocks":1}`, string(first.BlockchainInfo))

	// the frame for this tick is pending while the cache moves on
	mock.Add(time.Second)
	cache.Set(FieldBlockchain, json.RawMessage(`{"blocks":2}`), mock.Now())
	cache.Set(FieldBlockchain, json.RawMessage(`{"blocks":3}`), mock.Now())

	select {
	case got := <-ch:
		assert.JSONEq(t, `{"blocks":3}`, string(got.BlockchainInfo))
	case <-time.After(time.Second):
		t.Fatal("no frame after tick")
	}
}

func TestCacheChangedClosesOnSet(t *testing.T) {
	cache := NewCache()
	changed := cache.Changed()
	select {
	case <-changed:
		t.Fatal("closed before any write")
	default:
	}
	cache.Set(FieldMining, json.RawMessage(`{}`), time.Unix(1, 0))
	select {
	case <-changed:
	default:
		t.Fatal("write did not signal")
	}
	assert.NotEqual(t, changed, cache.Changed())
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	mock := clock.NewMock()
	cache := NewCache()
	pub := NewPublisher(cache, time.Second, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = pub.Subscribe(ctx) // never read
	fast := pub.Subscribe(ctx)

	<-fast
	mock.Add(time.Second)
	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved")
	}
}
