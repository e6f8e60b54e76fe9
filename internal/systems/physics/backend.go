package physics

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/service/collision"
)

const (
	BackendBruteForce  = "bruteforce"
	BackendSpatialHash = "spatialhash"
)

// shape is the frozen view of one body the backends work on.
type shape struct {
	name   string
	pos    geom.Vector3
	radius float64
}

func (s shape) bounds() geom.AABB {
	r := geom.Vector3{X: s.radius, Y: s.radius, Z: s.radius}
	return geom.AABB{Min: s.pos.Sub(r), Max: s.pos.Add(r)}
}

// broadphase is a collision.Backend that can also enumerate overlapping body
// pairs. Rebuild is called once per frame before any query.
type broadphase interface {
	collision.Backend
	Rebuild(shapes []shape)
	Pairs() [][2]int
}

func newBroadphase(name string, cellSize float64) (broadphase, error) {
	switch name {
	case "", BackendBruteForce:
		return &bruteForce{}, nil
	case BackendSpatialHash:
		if cellSize <= 0 {
			cellSize = 4
		}
		return &spatialHash{cell: cellSize, buckets: make(map[uint64][]int)}, nil
	default:
		return nil, fmt.Errorf("collision backend %q: %w", name, ErrUnknownBackend)
	}
}

type bruteForce struct {
	shapes []shape
}

func (b *bruteForce) Name() string { return BackendBruteForce }

func (b *bruteForce) Rebuild(shapes []shape) { b.shapes = shapes }

func (b *bruteForce) Pairs() [][2]int {
	var out [][2]int
	for i := 0; i < len(b.shapes); i++ {
		for j := i + 1; j < len(b.shapes); j++ {
			if overlapping(b.shapes[i], b.shapes[j]) {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

func (b *bruteForce) Test(req collision.Request) []collision.Hit {
	return testShapes(b.shapes, allIndexes(len(b.shapes)), req)
}

func (b *bruteForce) LineTest(start, end geom.Vector3, req collision.Request) []collision.Hit {
	return lineShapes(b.shapes, allIndexes(len(b.shapes)), start, end, req)
}

// spatialHash buckets shapes into uniform grid cells keyed by an xxhash of
// the cell coordinates.
type spatialHash struct {
	cell    float64
	shapes  []shape
	buckets map[uint64][]int
}

func (h *spatialHash) Name() string { return BackendSpatialHash }

func (h *spatialHash) Rebuild(shapes []shape) {
	h.shapes = shapes
	clear(h.buckets)
	for i, s := range shapes {
		h.eachCell(s.bounds(), func(key uint64) {
			h.buckets[key] = append(h.buckets[key], i)
		})
	}
}

func (h *spatialHash) Pairs() [][2]int {
	seen := make(map[[2]int]struct{})
	var out [][2]int
	for _, bucket := range h.buckets {
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				i, j := bucket[x], bucket[y]
				if i > j {
					i, j = j, i
				}
				pair := [2]int{i, j}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				if overlapping(h.shapes[i], h.shapes[j]) {
					out = append(out, pair)
				}
			}
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a][0] != out[b][0] {
			return out[a][0] < out[b][0]
		}
		return out[a][1] < out[b][1]
	})
	return out
}

func (h *spatialHash) Test(req collision.Request) []collision.Hit {
	return testShapes(h.shapes, h.candidates(requestBounds(req)), req)
}

func (h *spatialHash) LineTest(start, end geom.Vector3, req collision.Request) []collision.Hit {
	box := geom.AABB{
		Min: geom.Vector3{X: math.Min(start.X, end.X), Y: math.Min(start.Y, end.Y), Z: math.Min(start.Z, end.Z)},
		Max: geom.Vector3{X: math.Max(start.X, end.X), Y: math.Max(start.Y, end.Y), Z: math.Max(start.Z, end.Z)},
	}
	return lineShapes(h.shapes, h.candidates(box), start, end, req)
}

func (h *spatialHash) candidates(box geom.AABB) []int {
	seen := make(map[int]struct{})
	var out []int
	h.eachCell(box, func(key uint64) {
		for _, i := range h.buckets[key] {
			if _, dup := seen[i]; !dup {
				seen[i] = struct{}{}
				out = append(out, i)
			}
		}
	})
	sort.Ints(out)
	return out
}

func (h *spatialHash) eachCell(box geom.AABB, fn func(key uint64)) {
	minX, maxX := h.coord(box.Min.X), h.coord(box.Max.X)
	minY, maxY := h.coord(box.Min.Y), h.coord(box.Max.Y)
	minZ, maxZ := h.coord(box.Min.Z), h.coord(box.Max.Z)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				fn(cellKey(x, y, z))
			}
		}
	}
}

func (h *spatialHash) coord(v float64) int32 {
	return int32(math.Floor(v / h.cell))
}

func cellKey(x, y, z int32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(x))
	binary.LittleEndian.PutUint32(buf[4:], uint32(y))
	binary.LittleEndian.PutUint32(buf[8:], uint32(z))
	return xxhash.Sum64(buf[:])
}

func overlapping(a, b shape) bool {
	return a.pos.Distance(b.pos) < a.radius+b.radius
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func requestBounds(req collision.Request) geom.AABB {
	if req.Shape == collision.ShapeBox {
		return geom.Box(req.Center, req.Extents)
	}
	r := geom.Vector3{X: req.Radius, Y: req.Radius, Z: req.Radius}
	return geom.AABB{Min: req.Center.Sub(r), Max: req.Center.Add(r)}
}

func testShapes(shapes []shape, idx []int, req collision.Request) []collision.Hit {
	var hits []collision.Hit
	for _, i := range idx {
		s := shapes[i]
		if req.Ignores(s.name) {
			continue
		}
		switch req.Shape {
		case collision.ShapeBox:
			if !geom.Box(req.Center, req.Extents).Overlaps(s.bounds()) {
				continue
			}
		default:
			if req.Center.Distance(s.pos) > req.Radius+s.radius {
				continue
			}
		}
		hits = append(hits, collision.Hit{
			Body:     s.name,
			Point:    s.pos,
			Normal:   s.pos.Sub(req.Center).Normalize(),
			Distance: req.Center.Distance(s.pos),
		})
	}
	sortHits(hits)
	return hits
}

func lineShapes(shapes []shape, idx []int, start, end geom.Vector3, req collision.Request) []collision.Hit {
	var hits []collision.Hit
	seg := end.Sub(start)
	for _, i := range idx {
		s := shapes[i]
		if req.Ignores(s.name) {
			continue
		}
		t, ok := geom.SegmentSphere(start, end, s.pos, s.radius)
		if !ok {
			continue
		}
		point := start.Add(seg.Scale(t))
		hits = append(hits, collision.Hit{
			Body:     s.name,
			Point:    point,
			Normal:   point.Sub(s.pos).Normalize(),
			Distance: t * seg.Len(),
		})
	}
	sortHits(hits)
	return hits
}

func sortHits(hits []collision.Hit) {
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
}
