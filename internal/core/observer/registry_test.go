package observer

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/core/changes"
)

type testSubject struct {
	key       string
	potential changes.Mask
}

func (s *testSubject) SubjectKey() string             { return s.key }
func (s *testSubject) PotentialChanges() changes.Mask { return s.potential }

type call struct {
	observer string
	subject  string
	mask     changes.Mask
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type testObserver struct {
	name     string
	desired  changes.Mask
	log      *recorder
	onChange func(Subject, changes.Mask) error
}

func (o *testObserver) DesiredChanges() changes.Mask { return o.desired }

func (o *testObserver) ChangeOccurred(s Subject, m changes.Mask) error {
	o.log.add(call{observer: o.name, subject: s.SubjectKey(), mask: m})
	if o.onChange != nil {
		return o.onChange(s, m)
	}
	return nil
}

type testMonitor struct {
	posts     int
	delivered int
	lastErr   error
}

func (m *testMonitor) OnPosted(_ string, _ changes.Mask, delivered int, err error, _ time.Duration) {
	m.posts++
	m.delivered += delivered
	m.lastErr = err
}

func TestFanOutInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	a := &testSubject{key: "ai/main/chicken1", potential: changes.Geometry | changes.Behavior}
	b := &testObserver{name: "B", desired: changes.Position | changes.Orientation, log: log}
	c := &testObserver{name: "C", desired: changes.Position | changes.Behavior, log: log}

	_, err := r.AttachDesired(a, b)
	require.NoError(t, err)
	_, err = r.AttachDesired(a, c)
	require.NoError(t, err)

	require.NoError(t, r.PostChanges(a, changes.Position|changes.Behavior))

	assert.Equal(t, []call{
		{observer: "B", subject: a.key, mask: changes.Position},
		{observer: "C", subject: a.key, mask: changes.Position | changes.Behavior},
	}, log.snapshot())
}

func TestDesiredMaskFiltersPostedChanges(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	s := &testSubject{key: "s", potential: changes.Geometry}
	o := &testObserver{name: "O", desired: changes.Position, log: log}

	_, err := r.AttachDesired(s, o)
	require.NoError(t, err)
	require.NoError(t, r.PostChanges(s, changes.Position|changes.Orientation))
	require.NoError(t, r.PostChanges(s, changes.Orientation))

	assert.Equal(t, []call{{observer: "O", subject: "s", mask: changes.Position}}, log.snapshot())
}

func TestAttachRequiresOverlap(t *testing.T) {
	r := NewRegistry()
	s := &testSubject{key: "s", potential: changes.Firehose}
	o := &testObserver{name: "O", desired: changes.Position, log: &recorder{}}

	_, err := r.AttachDesired(s, o)
	assert.ErrorIs(t, err, ErrNoOverlap)

	o.desired = changes.Firehose
	_, err = r.AttachDesired(s, o)
	require.NoError(t, err)
	_, err = r.AttachDesired(s, o)
	assert.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestShutdownDeliversTerminalNotification(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	a := &testSubject{key: "a", potential: changes.Position}
	b := &testObserver{name: "B", desired: changes.Position, log: log}
	c := &testObserver{name: "C", desired: changes.Position, log: log}
	_, _ = r.AttachDesired(a, b)
	_, _ = r.AttachDesired(a, c)

	require.NoError(t, r.Shutdown(a))

	assert.Equal(t, []call{
		{observer: "B", subject: "a", mask: changes.None},
		{observer: "C", subject: "a", mask: changes.None},
	}, log.snapshot())
	assert.Empty(t, r.Observers(a))
	assert.Empty(t, r.Subjects(b))
	assert.Empty(t, r.Subjects(c))

	require.NoError(t, r.PostChanges(a, changes.Position))
	assert.Len(t, log.snapshot(), 2, "no delivery after shutdown")
}

func TestShutdownNotifiesEveryoneDespiteErrors(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	boom := errors.New("boom")
	a := &testSubject{key: "a", potential: changes.Position}
	bad := &testObserver{name: "bad", desired: changes.Position, log: log, onChange: func(Subject, changes.Mask) error { return boom }}
	good := &testObserver{name: "good", desired: changes.Position, log: log}
	_, _ = r.AttachDesired(a, bad)
	_, _ = r.AttachDesired(a, good)

	err := r.Shutdown(a)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, log.snapshot(), 2)
}

func TestPostChangesRejectsShutdownMask(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.PostChanges(&testSubject{key: "x", potential: changes.All}, changes.None), ErrReservedMask)
}

func TestObserverErrorStopsDelivery(t *testing.T) {
	r := NewRegistry()
	mon := &testMonitor{}
	r.SetMonitor(mon)
	log := &recorder{}
	boom := errors.New("observer failed")
	s := &testSubject{key: "s", potential: changes.Position}
	first := &testObserver{name: "first", desired: changes.Position, log: log, onChange: func(Subject, changes.Mask) error { return boom }}
	second := &testObserver{name: "second", desired: changes.Position, log: log}
	_, _ = r.AttachDesired(s, first)
	_, _ = r.AttachDesired(s, second)

	err := r.PostChanges(s, changes.Position)
	require.ErrorIs(t, err, boom)
	assert.Len(t, log.snapshot(), 1)
	assert.Len(t, r.Observers(s), 2, "observer list must survive a failing observer")
	assert.Equal(t, 1, mon.posts)
	assert.ErrorIs(t, mon.lastErr, boom)
	assert.Equal(t, uint64(1), r.Stats().Errors)
}

func TestObserverMayDetachDuringDelivery(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	s := &testSubject{key: "s", potential: changes.Position}

	var later *testObserver
	self := &testObserver{name: "self", desired: changes.Position, log: log}
	self.onChange = func(subj Subject, _ changes.Mask) error {
		require.NoError(t, r.Detach(subj, self))
		return r.Detach(subj, later)
	}
	later = &testObserver{name: "later", desired: changes.Position, log: log}
	_, _ = r.AttachDesired(s, self)
	_, _ = r.AttachDesired(s, later)

	require.NoError(t, r.PostChanges(s, changes.Position))
	assert.Equal(t, []call{{observer: "self", subject: "s", mask: changes.Position}}, log.snapshot())
	assert.Empty(t, r.Observers(s))
}

func TestNotifyingDuringDelivery(t *testing.T) {
	r := NewRegistry()
	s := &testSubject{key: "s", potential: changes.Position}
	var inside bool
	o := &testObserver{name: "o", desired: changes.Position, log: &recorder{}, onChange: func(subj Subject, _ changes.Mask) error {
		inside = r.Notifying(subj)
		return nil
	}}
	_, _ = r.AttachDesired(s, o)

	assert.False(t, r.Notifying(s))
	require.NoError(t, r.PostChanges(s, changes.Position))
	assert.True(t, inside)
	assert.False(t, r.Notifying(s))
}

func TestDetachObserverRemovesAllEdges(t *testing.T) {
	r := NewRegistry()
	o := &testObserver{name: "o", desired: changes.All, log: &recorder{}}
	for i := 0; i < 5; i++ {
		_, err := r.AttachDesired(&testSubject{key: fmt.Sprintf("s%d", i), potential: changes.Position}, o)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, r.Stats().Edges)
	assert.Equal(t, 5, r.DetachObserver(o))
	assert.Equal(t, 0, r.Stats().Edges)
	assert.Equal(t, 0, r.Stats().Subjects)
}

func TestSubscriptionCancel(t *testing.T) {
	r := NewRegistry()
	log := &recorder{}
	s := &testSubject{key: "s", potential: changes.Position}
	sub, err := r.AttachDesired(s, &testObserver{name: "o", desired: changes.Position, log: log})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, changes.Position, sub.Mask())

	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())
	require.NoError(t, r.PostChanges(s, changes.Position))
	assert.Empty(t, log.snapshot())
}

func TestConcurrentPostsOnDisjointSubjects(t *testing.T) {
	r := NewRegistry(WithShards(4))
	log := &recorder{}
	const subjects = 32
	const posts = 50
	subs := make([]*testSubject, subjects)
	for i := range subs {
		subs[i] = &testSubject{key: fmt.Sprintf("s%d", i), potential: changes.Position}
		_, err := r.AttachDesired(subs[i], &testObserver{name: fmt.Sprintf("o%d", i), desired: changes.Position, log: log})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *testSubject) {
			defer wg.Done()
			for j := 0; j < posts; j++ {
				_ = r.PostChanges(s, changes.Position)
			}
		}(s)
	}
	wg.Wait()

	assert.Len(t, log.snapshot(), subjects*posts)
	assert.Equal(t, uint64(subjects*posts), r.Stats().Deliveries)
}
