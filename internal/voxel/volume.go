package voxel

// Volume is a world-aligned box of voxels and packed lights filled by the
// chunk storage for meshing and physics.
type Volume struct {
	X, Y, Z int
	W, H, D int

	Voxels []Voxel
	Lights []Light
}

func NewVolume(x, y, z, w, h, d int) *Volume {
	n := w * h * d
	return &Volume{
		X: x, Y: y, Z: z,
		W: w, H: h, D: d,
		Voxels: make([]Voxel, n),
		Lights: make([]Light, n),
	}
}

// Index takes coordinates relative to the volume origin.
func (v *Volume) Index(rx, ry, rz int) int {
	return (ry*v.D+rz)*v.W + rx
}

func (v *Volume) Contains(x, y, z int) bool {
	return x >= v.X && x < v.X+v.W && y >= v.Y && y < v.Y+v.H && z >= v.Z && z < v.Z+v.D
}

// Voxel takes world coordinates.
func (v *Volume) Voxel(x, y, z int) Voxel {
	if !v.Contains(x, y, z) {
		return Voxel{ID: BlockVoid}
	}
	return v.Voxels[v.Index(x-v.X, y-v.Y, z-v.Z)]
}

func (v *Volume) Light(x, y, z, ch int) int {
	if !v.Contains(x, y, z) {
		return 0
	}
	return Extract(v.Lights[v.Index(x-v.X, y-v.Y, z-v.Z)], ch)
}
