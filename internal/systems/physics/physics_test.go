package physics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/service"
	"github.com/zeusync/smoke/internal/core/service/collision"
	"github.com/zeusync/smoke/internal/core/system"
)

func newWorld(t *testing.T, backend string) (*system.Context, *System, *Scene) {
	t.Helper()
	ctx := system.NewContext(nil)
	sys := New(ctx)
	require.NoError(t, sys.Initialize(nil))
	sc, err := sys.CreateScene("world")
	require.NoError(t, err)
	require.NoError(t, sc.Initialize(properties.Array{properties.String("Backend", backend)}))
	return ctx, sys, sc.(*Scene)
}

func addBody(t *testing.T, sc *Scene, name string, pos, vel geom.Vector3) *Body {
	t.Helper()
	obj, err := sc.CreateObject(name, "Body")
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(properties.Array{
		properties.Vec3("Position", pos),
		properties.Vec3("Velocity", vel),
		properties.Float("Radius", 0.5),
	}))
	return obj.(*Body)
}

type contactWatcher struct {
	contacts []*poi.Contact
	posts    int
}

func (w *contactWatcher) DesiredChanges() changes.Mask { return changes.Contact }

func (w *contactWatcher) ChangeOccurred(s observer.Subject, m changes.Mask) error {
	if m.IsShutdown() {
		return nil
	}
	w.posts++
	if p, ok := s.(observer.ChangeDataProvider); ok {
		if data, ok := p.ChangeData(changes.Contact); ok {
			w.contacts = data.([]*poi.Contact)
		}
	}
	return nil
}

func TestBackendsAgree(t *testing.T) {
	shapes := []shape{
		{name: "a", pos: geom.Vector3{}, radius: 1},
		{name: "b", pos: geom.Vector3{X: 1.5}, radius: 1},
		{name: "c", pos: geom.Vector3{X: 10}, radius: 1},
		{name: "d", pos: geom.Vector3{X: 10.5, Y: 0.5}, radius: 0.5},
		{name: "e", pos: geom.Vector3{X: -7, Z: 3}, radius: 2},
	}
	brute, err := newBroadphase(BackendBruteForce, 0)
	require.NoError(t, err)
	hash, err := newBroadphase(BackendSpatialHash, 2)
	require.NoError(t, err)
	brute.Rebuild(shapes)
	hash.Rebuild(shapes)

	assert.Equal(t, [][2]int{{0, 1}, {2, 3}}, brute.Pairs())
	assert.Equal(t, brute.Pairs(), hash.Pairs())

	req := collision.Request{Center: geom.Vector3{X: 9}, Radius: 1.5, Ignore: []string{"d"}}
	assert.Equal(t, brute.Test(req), hash.Test(req))
	require.Len(t, brute.Test(req), 1)
	assert.Equal(t, "c", brute.Test(req)[0].Body)

	start, end := geom.Vector3{X: -20}, geom.Vector3{X: 20}
	line := brute.LineTest(start, end, collision.Request{})
	require.NotEmpty(t, line)
	assert.Equal(t, "a", line[0].Body)
	assert.Equal(t, line, hash.LineTest(start, end, collision.Request{}))

	_, err = newBroadphase("octree", 0)
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestStepProducesContacts(t *testing.T) {
	for _, backend := range []string{BackendBruteForce, BackendSpatialHash} {
		t.Run(backend, func(t *testing.T) {
			ctx, _, sc := newWorld(t, backend)
			a := addBody(t, sc, "a", geom.Vector3{X: -0.4}, geom.Vector3{X: 1})
			b := addBody(t, sc, "b", geom.Vector3{X: 0.4}, geom.Vector3{X: -1})
			addBody(t, sc, "far", geom.Vector3{X: 50}, geom.Vector3{})

			w := &contactWatcher{}
			_, err := ctx.Changes.AttachDesired(sc, w)
			require.NoError(t, err)

			require.NoError(t, sc.Task().Update(100*time.Millisecond))

			require.Equal(t, 1, w.posts)
			require.Len(t, w.contacts, 1)
			assert.Equal(t, [2]string{"a", "b"}, w.contacts[0].Bodies)
			assert.Len(t, sc.POI().OfKind(poi.KindContact), 1)
			assert.Less(t, a.Velocity().X, 0.0)
			assert.Greater(t, b.Velocity().X, 0.0)

			require.NoError(t, sc.EndFrame())
			require.NoError(t, sc.EndFrame())
			assert.Empty(t, sc.POI().OfKind(poi.KindContact))
		})
	}
}

func TestCollisionServiceIsServicedByTask(t *testing.T) {
	ctx, sys, sc := newWorld(t, BackendSpatialHash)
	addBody(t, sc, "wall", geom.Vector3{X: 5}, geom.Vector3{})

	svc, err := service.Lookup[*collision.Service](ctx.Services, collision.ServiceName("world"))
	require.NoError(t, err)

	h := svc.LineTest(geom.Vector3{}, geom.Vector3{X: 10}, collision.Request{})
	_, err = svc.Finalize(h)
	require.ErrorIs(t, err, collision.ErrNotReady)

	require.NoError(t, sc.Task().Update(time.Millisecond))
	res, err := svc.Finalize(h)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "wall", res.Hits[0].Body)
	assert.InDelta(t, 4.5, res.Hits[0].Distance, 1e-9)

	require.NoError(t, sys.DestroyScene(sc))
	_, err = service.Lookup[*collision.Service](ctx.Services, collision.ServiceName("world"))
	require.ErrorIs(t, err, service.ErrUnknownService)
}

func TestBodyFollowsLinkedGeometry(t *testing.T) {
	ctx, _, sc := newWorld(t, BackendBruteForce)
	leader := addBody(t, sc, "leader", geom.Vector3{}, geom.Vector3{Y: 2})
	follower := addBody(t, sc, "follower", geom.Vector3{X: 100}, geom.Vector3{})

	_, err := ctx.Changes.Attach(leader, follower, changes.Position)
	require.NoError(t, err)

	require.NoError(t, sc.Task().Update(time.Second))
	assert.Equal(t, leader.Position(), follower.Position())
	assert.True(t, follower.Velocity().IsZero())

	props := follower.Properties()
	p, ok := props.Get("Position")
	require.True(t, ok)
	v, err := p.AsVector3()
	require.NoError(t, err)
	assert.Equal(t, geom.Vector3{Y: 2}, v)
}

func TestCreateSceneRequiresInitialize(t *testing.T) {
	sys := New(system.NewContext(nil))
	_, err := sys.CreateScene("world")
	require.ErrorIs(t, err, system.ErrNotInitialized)
}
