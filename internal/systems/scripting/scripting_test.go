package scripting

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

type positionWatcher struct{ seen []geom.Vector3 }

func (w *positionWatcher) DesiredChanges() changes.Mask { return changes.Position }

func (w *positionWatcher) ChangeOccurred(subject observer.Subject, m changes.Mask) error {
	if m.IsShutdown() {
		return nil
	}
	if g, ok := system.AsGeometry(subject); ok {
		w.seen = append(w.seen, g.Position())
	}
	return nil
}

type beacon struct{}

func (beacon) SubjectKey() string             { return "explosion/main/barn" }
func (beacon) PotentialChanges() changes.Mask { return changes.Fire }

func newScriptScene(t *testing.T, ctx *system.Context) system.Scene {
	t.Helper()
	sys := New(ctx)
	require.NoError(t, sys.Initialize(nil))
	sc, err := sys.CreateScene("main")
	require.NoError(t, err)
	require.NoError(t, sc.Initialize(nil))
	return sc
}

func newScriptObject(t *testing.T, sc system.Scene, props ...properties.Property) (*Script, error) {
	t.Helper()
	obj, err := sc.CreateObject("walker", "Script")
	require.NoError(t, err)
	return obj.(*Script), obj.Initialize(props)
}

const walker = `
speed = 2
function update(dt)
  local x, y, z = position()
  post_position(x + speed * dt, y, z)
end
`

func TestScriptMovesAndPostsPosition(t *testing.T) {
	ctx := system.NewContext(nil)
	sc := newScriptScene(t, ctx)
	assert.True(t, sc.Task().Affinity().PrimaryOnly)

	s, err := newScriptObject(t, sc, properties.String("Source", walker), properties.Vec3("Position", geom.Vector3{Y: 1}))
	require.NoError(t, err)
	w := &positionWatcher{}
	_, err = ctx.Changes.AttachDesired(s, w)
	require.NoError(t, err)

	require.NoError(t, sc.Task().Update(500*time.Millisecond))
	require.NoError(t, sc.Task().Update(500*time.Millisecond))
	assert.Equal(t, []geom.Vector3{{X: 1, Y: 1}, {X: 2, Y: 1}}, w.seen)

	src, ok := system.Query[system.ScriptObject](s, system.CapScript)
	require.True(t, ok)
	assert.Equal(t, walker, src.Source())
}

func TestScriptWithoutUpdateIsQuiet(t *testing.T) {
	ctx := system.NewContext(nil)
	sc := newScriptScene(t, ctx)
	s, err := newScriptObject(t, sc, properties.String("Source", "x = 1"))
	require.NoError(t, err)
	w := &positionWatcher{}
	_, err = ctx.Changes.AttachDesired(s, w)
	require.NoError(t, err)

	require.NoError(t, sc.Task().Update(time.Millisecond))
	assert.Empty(t, w.seen)
}

func TestOnChangeReceivesSubjectAndMask(t *testing.T) {
	ctx := system.NewContext(nil)
	sc := newScriptScene(t, ctx)
	s, err := newScriptObject(t, sc, properties.String("Source", `
last_subject = ""
last_changes = ""
function on_change(subject, mask)
  last_subject = subject
  last_changes = mask
end
`))
	require.NoError(t, err)

	var b beacon
	_, err = ctx.Changes.AttachDesired(b, s)
	require.NoError(t, err)
	require.NoError(t, ctx.Changes.PostChanges(b, changes.Fire))

	s.mu.Lock()
	subject := s.vm.GetGlobal("last_subject").String()
	mask := s.vm.GetGlobal("last_changes").String()
	s.mu.Unlock()
	assert.Equal(t, "explosion/main/barn", subject)
	assert.Equal(t, changes.Fire.String(), mask)
}

func TestScriptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walker.lua")
	require.NoError(t, os.WriteFile(path, []byte(walker), 0o600))

	ctx := system.NewContext(nil)
	sc := newScriptScene(t, ctx)
	s, err := newScriptObject(t, sc, properties.String("File", path))
	require.NoError(t, err)

	moved, err := s.run(time.Second)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, geom.Vector3{X: 2}, s.Position())
}

func TestScriptErrors(t *testing.T) {
	ctx := system.NewContext(nil)

	t.Run("missing source", func(t *testing.T) {
		_, err := newScriptObject(t, newScriptScene(t, ctx), properties.Float("Speed", 1))
		assert.True(t, errors.Is(err, ErrScript))
	})

	t.Run("syntax", func(t *testing.T) {
		_, err := newScriptObject(t, newScriptScene(t, system.NewContext(nil)), properties.String("Source", "function ("))
		assert.True(t, errors.Is(err, ErrScript))
	})

	t.Run("runtime", func(t *testing.T) {
		sc := newScriptScene(t, system.NewContext(nil))
		_, err := newScriptObject(t, sc, properties.String("Source", `function update(dt) error("boom") end`))
		require.NoError(t, err)
		err = sc.Task().Update(time.Millisecond)
		assert.True(t, errors.Is(err, ErrScript))
	})
}

func TestDestroyClosesState(t *testing.T) {
	ctx := system.NewContext(nil)
	sc := newScriptScene(t, ctx)
	s, err := newScriptObject(t, sc, properties.String("Source", walker))
	require.NoError(t, err)

	require.NoError(t, sc.DestroyObject(s))
	moved, err := s.run(time.Second)
	require.NoError(t, err)
	assert.False(t, moved)
}
