package lod

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// MinCellSize keeps the grid from degenerating into one cell per point.
const MinCellSize = 1.0

// CellKey identifies a cubic grid cell.
type CellKey struct {
	X int
	Y int
	Z int
}

// Snapshot is a player's position captured at the start of a world tick.
type Snapshot struct {
	Player   uuid.UUID
	Position mgl64.Vec3
}

// Index buckets one tick's snapshots into a uniform grid. It is built per
// world per tick and never mutated afterwards.
type Index struct {
	cellSize    float64
	invCellSize float64
	snapshots   []Snapshot
	cells       map[CellKey][]int
	keys        []CellKey
}

// BuildIndex buckets every snapshot by its cell. The cell size is normally
// the LOD radius so that CountNearby only visits adjacent cells.
func BuildIndex(snapshots []Snapshot, cellSize float64) *Index {
	if cellSize < MinCellSize || math.IsNaN(cellSize) {
		cellSize = MinCellSize
	}
	idx := &Index{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		snapshots:   snapshots,
		cells:       make(map[CellKey][]int),
		keys:        make([]CellKey, len(snapshots)),
	}
	for i, snap := range snapshots {
		key := idx.cellFor(snap.Position)
		idx.keys[i] = key
		idx.cells[key] = append(idx.cells[key], i)
	}
	return idx
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.snapshots)
}

func (idx *Index) CellSize() float64 {
	if idx == nil {
		return 0
	}
	return idx.cellSize
}

// Snapshot returns the i-th snapshot passed to BuildIndex.
func (idx *Index) Snapshot(i int) Snapshot {
	return idx.snapshots[i]
}

// CountNearby counts snapshots, including the source, within radius of
// snapshot src. With radius no larger than the cell size only the 27 cells
// around the source are visited.
func (idx *Index) CountNearby(src int, radius float64) int {
	if idx == nil || src < 0 || src >= len(idx.snapshots) {
		return 0
	}
	if radius <= 0 {
		return 1
	}
	span := max(1, int(math.Ceil(radius*idx.invCellSize)))
	radiusSq := radius * radius
	origin := idx.snapshots[src].Position
	home := idx.keys[src]

	count := 0
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for dz := -span; dz <= span; dz++ {
				bucket := idx.cells[CellKey{X: home.X + dx, Y: home.Y + dy, Z: home.Z + dz}]
				for _, candidate := range bucket {
					if distanceSq(origin, idx.snapshots[candidate].Position) <= radiusSq {
						count++
					}
				}
			}
		}
	}
	return count
}

// CountNearbyBruteForce is the reference O(n) count used by the density
// probe and to cross-check the grid.
func CountNearbyBruteForce(snapshots []Snapshot, src int, radius float64) int {
	if src < 0 || src >= len(snapshots) {
		return 0
	}
	radiusSq := radius * radius
	origin := snapshots[src].Position
	count := 0
	for _, snap := range snapshots {
		if distanceSq(origin, snap.Position) <= radiusSq {
			count++
		}
	}
	return count
}

func (idx *Index) cellFor(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: idx.coordToCell(pos.X()),
		Y: idx.coordToCell(pos.Y()),
		Z: idx.coordToCell(pos.Z()),
	}
}

func (idx *Index) coordToCell(value float64) int {
	return int(math.Floor(value * idx.invCellSize))
}

func distanceSq(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}
