package properties

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/smoke/internal/core/geom"
)

func TestTypedAccessors(t *testing.T) {
	v, err := Vec3("Position", geom.Vec3(1, 2, 3)).AsVector3()
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3(1, 2, 3), v)

	q, err := Quat("Orientation", geom.Identity).AsQuaternion()
	require.NoError(t, err)
	assert.Equal(t, geom.Identity, q)

	f, err := Int("Count", 4).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)

	_, err = String("Name", "x").AsBool()
	assert.True(t, errors.Is(err, ErrKindMismatch))

	_, err = Property{Name: "Empty", Kind: KindFloat}.AsFloat()
	assert.True(t, errors.Is(err, ErrNoValue))
}

func TestApplyIgnoresUnknownNames(t *testing.T) {
	var speed float64
	arr := Array{
		Float("Speed", 2.5),
		String("FutureOption", "ignored"),
	}
	err := Apply(arr, Handlers{
		"Speed": func(p Property) (err error) {
			speed, err = p.AsFloat()
			return err
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.5, speed)
}

func TestApplyMultiple(t *testing.T) {
	var nozzles int
	handlers := Handlers{"Nozzle": func(Property) error { nozzles++; return nil }}

	arr := Array{
		Floats("Nozzle", 0, 1, 0).AsMultiple(),
		Floats("Nozzle", 1, 1, 0).AsMultiple(),
	}
	require.NoError(t, Apply(arr, handlers))
	assert.Equal(t, 2, nozzles)

	dup := Array{Float("Nozzle", 1), Float("Nozzle", 2)}
	err := Apply(dup, handlers)
	assert.True(t, errors.Is(err, ErrNotMultiple))
}

func TestApplyWrapsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	err := Apply(Array{Int("Mass", 1)}, Handlers{"Mass": func(Property) error { return boom }})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Mass")
}

func TestFromMapYAML(t *testing.T) {
	src := `
Position: [1, 2, 3.5]
Orientation: [0, 0, 0, 1]
Speed: 4
Visible: true
Mesh: chicken.obj
Nozzle:
  - [0, 1, 0]
  - [1, 1, 0]
`
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(src), &raw))

	arr, err := FromMap(raw)
	require.NoError(t, err)

	pos, ok := arr.Get("Position")
	require.True(t, ok)
	v, err := pos.AsVector3()
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3(1, 2, 3.5), v)

	speed, _ := arr.Get("Speed")
	assert.Equal(t, KindInt, speed.Kind)

	nozzles := arr.All("Nozzle")
	require.Len(t, nozzles, 2)
	assert.True(t, nozzles[0].Flags.Has(Multiple))

	mesh, _ := arr.Get("Mesh")
	s, err := mesh.AsString()
	require.NoError(t, err)
	assert.Equal(t, "chicken.obj", s)
}

func TestPutAndEqual(t *testing.T) {
	arr := Array{Float("Speed", 1)}
	arr = arr.Put(Float("Speed", 2))
	arr = arr.Put(Bool("Visible", true))

	require.Len(t, arr, 2)
	p, _ := arr.Get("Speed")
	assert.True(t, Equal(p, Float("Speed", 2)))
	assert.False(t, Equal(p, Float("Speed", 3)))
	assert.True(t, Equal(Int("N", 2), Property{Name: "N", Kind: KindInt, Flags: Valid, Values: []any{2.0}}))
	assert.Equal(t, []string{"Speed", "Visible"}, arr.Names())
}

func TestBindHandlers(t *testing.T) {
	var (
		speed float64
		name  string
		on    bool
		pos   geom.Vector3
		n     int
	)
	err := Apply(Array{
		Int("Speed", 3),
		String("Name", "hen"),
		Bool("On", true),
		Vec3("Position", geom.Vector3{X: 1}),
		Int("Count", 4),
	}, Handlers{
		"Speed":    BindFloat(&speed),
		"Name":     BindString(&name),
		"On":       BindBool(&on),
		"Position": BindVector3(&pos),
		"Count":    BindInt(&n),
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, speed)
	assert.Equal(t, "hen", name)
	assert.True(t, on)
	assert.Equal(t, geom.Vector3{X: 1}, pos)
	assert.Equal(t, 4, n)

	err = Apply(Array{String("Speed", "fast")}, Handlers{"Speed": BindFloat(&speed)})
	require.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, 3.0, speed, "mismatched kind leaves the field alone")

	err = Apply(Array{Int("Position", 2)}, Handlers{"Position": BindVector3(&pos)})
	require.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, geom.Vector3{X: 1}, pos)
}
