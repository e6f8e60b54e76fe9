package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/zeusync/smoke/internal/core/system"
)

type threadTask struct {
	system.BaseTask
	mu   sync.Mutex
	tids []int
}

func (t *threadTask) Update(time.Duration) error {
	tid := unix.Gettid()
	t.mu.Lock()
	t.tids = append(t.tids, tid)
	t.mu.Unlock()
	return nil
}

func (t *threadTask) seen() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.tids...)
}

func TestPinnedTasksStayOnOneThread(t *testing.T) {
	ctx := system.NewContext(nil)
	s := New(WithWorkers(4))
	defer s.Close()

	var pinned, pooled []*threadTask
	for i, typ := range []system.Type{system.TypeGraphics, system.TypeInput, system.TypePhysics, system.TypeAudio, system.TypeAI, system.TypeWater} {
		aff := system.Pooled
		if i < 2 {
			aff = system.Primary
		}
		sys := &testSystem{BaseSystem: system.NewBaseSystem(ctx, typ, typ.String())}
		sc, err := sys.CreateScene("main")
		require.NoError(t, err)
		task := &threadTask{BaseTask: system.NewBaseTask(sc, aff)}
		require.NoError(t, s.Add(task))
		if aff == system.Primary {
			pinned = append(pinned, task)
		} else {
			pooled = append(pooled, task)
		}
	}

	const frames = 8
	for i := 0; i < frames; i++ {
		require.NoError(t, s.Frame(context.Background(), time.Millisecond))
	}

	primaryTid := pinned[0].seen()[0]
	for _, task := range pinned {
		tids := task.seen()
		require.Len(t, tids, frames)
		for _, tid := range tids {
			assert.Equal(t, primaryTid, tid, task.Name())
		}
	}
	for _, task := range pooled {
		tids := task.seen()
		require.Len(t, tids, frames)
		assert.NotContains(t, tids, primaryTid, task.Name())
	}
}
