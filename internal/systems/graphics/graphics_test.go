package graphics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

func TestMeshMirrorsMovingCamera(t *testing.T) {
	ctx := system.NewContext(nil)
	rec := NewRecordingRenderer()
	sys := New(ctx, rec)
	require.NoError(t, sys.Initialize(nil))
	sc, err := sys.CreateScene("main")
	require.NoError(t, err)
	require.NoError(t, sc.Initialize(nil))

	cam, err := sc.CreateObject("cam", "Camera")
	require.NoError(t, err)
	require.NoError(t, cam.Initialize(properties.Array{
		properties.Vec3("Path", geom.Vector3{X: 2}),
		properties.Float("FOV", 90),
	}))
	mesh, err := sc.CreateObject("marker", "Mesh")
	require.NoError(t, err)
	require.NoError(t, mesh.Initialize(properties.Array{properties.String("Mesh", "cube.obj")}))

	_, err = ctx.Changes.AttachDesired(cam, mesh)
	require.NoError(t, err)

	task := sc.Task()
	assert.True(t, task.Affinity().Pinned())
	require.NoError(t, task.Update(500*time.Millisecond))

	view, ok := rec.Last("graphics/main")
	require.True(t, ok)
	assert.Equal(t, "cam", view.Camera.Name)
	assert.Equal(t, 90.0, view.Camera.FOV)
	assert.Equal(t, geom.Vector3{X: 1}, view.Camera.Position)
	require.Len(t, view.Meshes, 1)
	assert.Equal(t, "cube.obj", view.Meshes[0].Mesh)
	assert.Equal(t, geom.Vector3{X: 1}, view.Meshes[0].Position)
	assert.Equal(t, 1, rec.Frames())

	c, ok := sc.(*Scene).Camera()
	require.True(t, ok)
	assert.Same(t, cam, c)
}

func TestMeshCapabilities(t *testing.T) {
	ctx := system.NewContext(nil)
	sys := New(ctx, nil)
	require.NoError(t, sys.Initialize(nil))
	sc, err := sys.CreateScene("main")
	require.NoError(t, err)
	require.NoError(t, sc.Initialize(nil))

	mesh, err := sc.CreateObject("m", "Mesh")
	require.NoError(t, err)
	require.NoError(t, mesh.Initialize(properties.Array{properties.String("Mesh", "tree.obj")}))

	g, ok := system.Query[system.GraphicsObject](mesh, system.CapGraphics)
	require.True(t, ok)
	assert.Equal(t, "tree.obj", g.Mesh())
	assert.False(t, system.HasCapability(mesh, system.CapPhysics))
}
