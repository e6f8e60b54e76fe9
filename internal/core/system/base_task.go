package system

// BaseTask carries a task's scene, affinity and dependency declaration.
// Concrete tasks embed it and add Update.
type BaseTask struct {
	scene    Scene
	affinity Affinity
	deps     []Type
}

func NewBaseTask(scene Scene, affinity Affinity, deps ...Type) BaseTask {
	return BaseTask{scene: scene, affinity: affinity, deps: deps}
}

func (t BaseTask) Scene() Scene         { return t.scene }
func (t BaseTask) Name() string         { return t.scene.SubjectKey() }
func (t BaseTask) Affinity() Affinity   { return t.affinity }
func (t BaseTask) Dependencies() []Type { return append([]Type(nil), t.deps...) }
