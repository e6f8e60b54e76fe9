package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/config"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/systems"
	"github.com/zeusync/smoke/internal/systems/ai"
	"github.com/zeusync/smoke/internal/systems/audio"
	"github.com/zeusync/smoke/internal/systems/explosion"
	"github.com/zeusync/smoke/internal/systems/graphics"
	"github.com/zeusync/smoke/internal/systems/scripting"
)

const farm = `
environment:
  Seed: 7
systems:
  - module: input
    scenes:
      - name: main
        properties:
          Timeline:
            - {action: ignite, frame: 0, pressed: true}
        objects:
          - {name: pad, type: Controller, properties: {Bind: ignite}}
  - module: explosion
    scenes:
      - name: main
        objects:
          - name: barn
            type: Fire
            properties: {Position: [5, 0, 0], Lit: false}
  - module: physics
    scenes:
      - name: main
        properties: {Gravity: [0, 0, 0]}
        objects:
          - {name: a, type: Body, properties: {Position: [-0.4, 0, 0]}}
          - {name: b, type: Body, properties: {Position: [0.4, 0, 0]}}
  - module: audio
    scenes:
      - name: main
        objects:
          - {name: speaker, type: Emitter, properties: {Clip: thud.wav}}
  - module: ai
    scenes:
      - name: main
        objects:
          - {name: hen, type: Chicken, properties: {Position: [3, 0, 0]}}
  - module: scripting
    scenes:
      - name: main
        objects:
          - name: drifter
            type: Script
            properties:
              Source: |
                function update(dt)
                  local x, y, z = position()
                  post_position(x, y + 1, z)
                end
links:
  - {subject: input/main/pad, observer: explosion/main/barn}
  - {subject: explosion/main, observer: ai/main}
  - {subject: physics/main, observer: audio/main}
  - {subject: ai/main/hen, observer: scripting/main/drifter, changes: Behavior}
`

type reports struct {
	mu  sync.Mutex
	all []engine.FrameReport
}

func (r *reports) ReportFrame(fr engine.FrameReport) {
	r.mu.Lock()
	r.all = append(r.all, fr)
	r.mu.Unlock()
}

func (r *reports) list() []engine.FrameReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.FrameReport(nil), r.all...)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Engine.Workers = 4
	cfg.Engine.TickRate = 0
	return cfg
}

func loadWorld(t *testing.T, src string, opts ...engine.Option) *engine.Engine {
	t.Helper()
	w, err := engine.DecodeWorld(strings.NewReader(src))
	require.NoError(t, err)
	e := engine.New(testConfig(), systems.Table(), nil, opts...)
	require.NoError(t, e.Load(w))
	t.Cleanup(e.Shutdown)
	return e
}

func resolve[T any](t *testing.T, e *engine.Engine, path string) T {
	t.Helper()
	ep, err := e.Resolve(path)
	require.NoError(t, err)
	v, ok := ep.(T)
	require.True(t, ok, "%s is %T", path, ep)
	return v
}

func TestChangesCrossSystemsWithinOneFrame(t *testing.T) {
	rep := &reports{}
	e := loadWorld(t, farm, engine.WithReporter(rep))

	require.NoError(t, e.Frame(context.Background(), 100*time.Millisecond))

	// input -> fire -> explosion scene -> ai scene -> chicken
	fire := resolve[*explosion.Fire](t, e, "explosion/main/barn")
	assert.True(t, fire.Lit())
	aiScene := resolve[*ai.Scene](t, e, "ai/main")
	assert.Len(t, aiScene.Fires(), 1)
	hen := resolve[*ai.Chicken](t, e, "ai/main/hen")
	assert.Equal(t, "Flee", hen.Behavior())

	// physics contact -> audio scene -> mixer
	sys, ok := e.System("audio")
	require.True(t, ok)
	mixer := sys.(*audio.System).Mixer().(*audio.RecordingMixer)
	assert.NotEmpty(t, mixer.Cues())

	drifter := resolve[*scripting.Script](t, e, "scripting/main/drifter")
	assert.Equal(t, 1.0, drifter.Position().Y)

	got := rep.list()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Frame)
	assert.Equal(t, e.ID(), got[0].Engine)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, 1, got[0].POI["explosion/main"][poi.KindFire.String()])
}

func TestFiresOutliveFramesAndStatsAccumulate(t *testing.T) {
	e := loadWorld(t, farm)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Frame(context.Background(), 50*time.Millisecond))
	}
	st := e.Stats()
	assert.Equal(t, uint64(3), st.Frames)
	assert.ElementsMatch(t, []string{"input", "explosion", "physics", "audio", "ai", "scripting"}, st.Systems)
	assert.Contains(t, st.Services, "collision/main")
	assert.Positive(t, st.Changes.Posts)

	sc := resolve[*explosion.Scene](t, e, "explosion/main")
	assert.Len(t, sc.POI().OfKind(poi.KindFire), 1)
}

func TestLoadFailuresReleaseEverything(t *testing.T) {
	cases := []struct {
		name  string
		world string
		want  error
	}{
		{
			name:  "unknown module",
			world: "systems:\n  - module: weather\n",
			want:  engine.ErrUnknownModule,
		},
		{
			name: "unknown object type",
			world: `
systems:
  - module: explosion
    scenes:
      - name: main
        objects:
          - {name: x, type: Volcano}
`,
			want: system.ErrUnknownType,
		},
		{
			name: "duplicate object",
			world: `
systems:
  - module: ai
    scenes:
      - name: main
        objects:
          - {name: hen, type: Chicken}
          - {name: hen, type: Chicken}
`,
			want: system.ErrDuplicateName,
		},
		{
			name: "slash in object name",
			world: `
systems:
  - module: ai
    scenes:
      - name: main
        objects:
          - {name: coop/hen, type: Chicken}
`,
			want: system.ErrInvalidName,
		},
		{
			name: "dangling link",
			world: `
systems:
  - module: ai
    scenes:
      - name: main
links:
  - {subject: physics/main, observer: ai/main}
`,
			want: engine.ErrUnknownSubject,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := engine.DecodeWorld(strings.NewReader(tc.world))
			require.NoError(t, err)
			e := engine.New(testConfig(), systems.Table(), nil)
			err = e.Load(w)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)

			assert.ErrorIs(t, e.Frame(context.Background(), time.Millisecond), engine.ErrShutdown)
			assert.Zero(t, e.Context().Changes.Stats().Edges)
		})
	}
}

func TestLoadTwice(t *testing.T) {
	e := loadWorld(t, "systems:\n  - module: ai\n")
	assert.ErrorIs(t, e.Load(&engine.World{}), engine.ErrAlreadyLoaded)
}

func TestFrameBeforeLoad(t *testing.T) {
	e := engine.New(testConfig(), systems.Table(), nil)
	defer e.Shutdown()
	assert.ErrorIs(t, e.Frame(context.Background(), time.Millisecond), engine.ErrNotLoaded)
}

func TestShutdownDetachesEveryEdge(t *testing.T) {
	e := loadWorld(t, farm)
	require.NoError(t, e.Frame(context.Background(), time.Millisecond))
	require.Positive(t, e.Context().Changes.Stats().Edges)

	e.Shutdown()
	assert.Zero(t, e.Context().Changes.Stats().Edges)
	assert.Empty(t, e.Context().Services.Names())
	e.Shutdown()
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	w, err := engine.DecodeWorld(strings.NewReader(farm))
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Engine.MaxFrames = 5
	e := engine.New(cfg, systems.Table(), nil)
	require.NoError(t, e.Load(w))
	defer e.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, uint64(5), e.Context().Frame())
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := engine.DecodeWorld(strings.NewReader(farm))
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Engine.TickRate = 100
	e := engine.New(cfg, systems.Table(), nil)
	require.NoError(t, e.Load(w))
	defer e.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Positive(t, e.Context().Frame())
}

func TestDiscoverListsObjectTypes(t *testing.T) {
	types, err := engine.Discover(testConfig(), systems.Table(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chicken"}, types["ai"])
	assert.Equal(t, []string{"Camera", "Mesh"}, types["graphics"])
	assert.Equal(t, []string{"WaterStream"}, types["water"])
	assert.Equal(t, []string{"Script"}, types["scripting"])
	assert.Len(t, types, len(systems.Table()))
}

func TestTwoEnginesShareAProcess(t *testing.T) {
	a := loadWorld(t, farm)
	b := loadWorld(t, farm)
	assert.NotEqual(t, a.ID(), b.ID())

	require.NoError(t, a.Frame(context.Background(), time.Millisecond))
	assert.Equal(t, uint64(1), a.Context().Frame())
	assert.Zero(t, b.Context().Frame())
	assert.False(t, resolve[*explosion.Fire](t, b, "explosion/main/barn").Lit())
}

func TestMeshDrawnWhereChickenStandsThisFrame(t *testing.T) {
	e := loadWorld(t, `
systems:
  - module: graphics
    scenes:
      - name: main
        objects:
          - {name: hen-mesh, type: Mesh, properties: {Mesh: hen.obj}}
  - module: explosion
    scenes:
      - name: main
        objects:
          - name: barn
            type: Fire
            properties: {Position: [4, 0, 0], Lit: true}
  - module: ai
    scenes:
      - name: main
        objects:
          - {name: hen, type: Chicken, properties: {Position: [3, 0, 0]}}
links:
  - {subject: explosion/main, observer: ai/main}
  - {subject: ai/main/hen, observer: graphics/main/hen-mesh}
`)
	hen := resolve[*ai.Chicken](t, e, "ai/main/hen")
	sys, ok := e.System(graphics.Name)
	require.True(t, ok)
	rec, ok := sys.(*graphics.System).Renderer().(*graphics.RecordingRenderer)
	require.True(t, ok)

	start := hen.Position()
	for frame := 1; frame <= 3; frame++ {
		require.NoError(t, e.Frame(context.Background(), 100*time.Millisecond))
		view, ok := rec.Last("graphics/main")
		require.True(t, ok)
		require.Len(t, view.Meshes, 1)
		assert.Equal(t, hen.Position(), view.Meshes[0].Position, "frame %d", frame)
	}
	assert.Equal(t, "Flee", hen.Behavior())
	assert.Less(t, hen.Position().X, start.X)
}
