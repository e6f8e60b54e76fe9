package collision

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/core/geom"
)

type fakeBackend struct {
	tests, lines int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Test(req Request) []Hit {
	b.tests++
	return []Hit{{Body: "wall", Point: req.Center}}
}

func (b *fakeBackend) LineTest(start, end geom.Vector3, _ Request) []Hit {
	b.lines++
	return []Hit{{Body: "wall", Point: end, Distance: start.Distance(end)}}
}

func TestFinalizeGating(t *testing.T) {
	svc := New("collision/main", 0)
	backend := &fakeBackend{}

	h := svc.Test(Request{Shape: ShapeSphere, Center: geom.Vec3(1, 2, 3), Radius: 1})

	_, err := svc.Finalize(h)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = svc.Finalize(h)
	assert.ErrorIs(t, err, ErrNotReady, "polling does not consume the request")

	assert.Equal(t, 1, svc.ProcessRequests(backend, 7))

	res, err := svc.Finalize(h)
	require.NoError(t, err)
	assert.Equal(t, h, res.Handle)
	assert.Equal(t, uint64(7), res.Frame)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, geom.Vec3(1, 2, 3), res.Hits[0].Point)

	_, err = svc.Finalize(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestFinalizeUnknownHandle(t *testing.T) {
	svc := New("c", 0)
	_, err := svc.Finalize(0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = svc.Finalize(42)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestLineTestUsesLineBackend(t *testing.T) {
	svc := New("c", 0)
	backend := &fakeBackend{}
	h := svc.LineTest(geom.Vec3(0, 0, 0), geom.Vec3(3, 4, 0), Request{})
	svc.ProcessRequests(backend, 1)

	res, err := svc.Finalize(h)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.lines)
	assert.Equal(t, 0, backend.tests)
	assert.InDelta(t, 5.0, res.Hits[0].Distance, 1e-9)
}

func TestHandlesAreUniqueUnderConcurrency(t *testing.T) {
	svc := New("c", 0)
	const workers = 16
	const perWorker = 500

	handles := make(chan Handle, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if j%2 == 0 {
					handles <- svc.Test(Request{})
				} else {
					handles <- svc.NextHandle()
				}
			}
		}(i)
	}
	wg.Wait()
	close(handles)

	seen := make(map[Handle]struct{}, workers*perWorker)
	for h := range handles {
		_, dup := seen[h]
		require.False(t, dup, "handle %d issued twice", h)
		seen[h] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker/2, svc.Pending())
}

func TestConcurrentFinalizeReturnsResultOnce(t *testing.T) {
	svc := New("c", 0)
	h := svc.Test(Request{})
	svc.ProcessRequests(&fakeBackend{}, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	got, invalid := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Finalize(h)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				got++
			} else if assert.ErrorIs(t, err, ErrInvalidHandle) {
				invalid++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, got)
	assert.Equal(t, 7, invalid)
}

func TestReapRetiresAbandonedResults(t *testing.T) {
	svc := New("c", 2)
	h := svc.Test(Request{})
	svc.ProcessRequests(&fakeBackend{}, 10)

	assert.Equal(t, 0, svc.Reap(12))
	assert.Equal(t, 1, svc.Reap(13))

	_, err := svc.Finalize(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	st := svc.Stats()
	assert.Equal(t, uint64(1), st.Reaped)
	assert.Equal(t, 0, st.Waiting)
}

func TestDeadListCompaction(t *testing.T) {
	svc := New("c", 0)
	backend := &fakeBackend{}
	hs := []Handle{svc.Test(Request{}), svc.Test(Request{}), svc.Test(Request{})}
	svc.ProcessRequests(backend, 1)

	for _, h := range []Handle{hs[2], hs[0], hs[1]} {
		_, err := svc.Finalize(h)
		require.NoError(t, err)
	}

	svc.deadMu.Lock()
	assert.Empty(t, svc.dead)
	assert.Equal(t, hs[2], svc.deadLow)
	svc.deadMu.Unlock()

	for _, h := range hs {
		_, err := svc.Finalize(h)
		assert.ErrorIs(t, err, ErrInvalidHandle)
	}
	assert.Equal(t, uint64(3), svc.Stats().Finalized)
}
