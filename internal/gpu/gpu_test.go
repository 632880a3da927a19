package gpu_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/gpu/hostdev"
)

func TestRecordWidths(t *testing.T) {
	tests := []struct {
		name   string
		record any
		layout gpu.Layout
		want   int
	}{
		{"truss", gpu.TrussRecord{}, gpu.LayoutTrusses, 12},
		{"node info", gpu.NodeInfoRecord{}, gpu.LayoutNodeInfo, 8},
		{"node other", gpu.NodeOtherRecord{}, gpu.LayoutNodeOther, 36},
		{"vec3", gpu.Vec3Record{}, gpu.LayoutPositions, 12},
		{"transform", gpu.TransformRecord{}, gpu.LayoutMeshTransform, 48},
		{"continuous", gpu.ContinuousRecord{}, gpu.LayoutContinuous, 52},
		{"contact", gpu.ContactRecord{}, gpu.LayoutContact, 24},
		{"simulation params", gpu.SimulationParams{}, gpu.LayoutSimulationParams, 32},
		{"impulse params", gpu.ImpulseParams{}, gpu.LayoutImpulseParams, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, binary.Size(tt.record))
			assert.Equal(t, tt.want, tt.layout.Stride)
		})
	}
}

func TestNewBufferContract(t *testing.T) {
	dev := hostdev.NewDevice()

	_, err := gpu.NewBuffer[gpu.TrussRecord](dev, gpu.LayoutNodeOther, 4)
	require.ErrorIs(t, err, gpu.ErrBufferContract)
	assert.Zero(t, dev.Live(), "nothing allocated on contract violation")

	assert.PanicsWithError(t, err.Error(), func() {
		gpu.MustNewBuffer[gpu.TrussRecord](dev, gpu.LayoutNodeOther, 4)
	})
}

func TestBufferWriteRead(t *testing.T) {
	dev := hostdev.NewDevice()
	b := gpu.MustNewBuffer[gpu.TrussRecord](dev, gpu.LayoutTrusses, 3)

	in := []gpu.TrussRecord{
		{RestLength: 1, IndexPair: [2]int32{0, 1}},
		{RestLength: 2.5, IndexPair: [2]int32{1, 2}},
	}
	require.NoError(t, gpu.Write(b, in))

	out := make([]gpu.TrussRecord, 2)
	require.NoError(t, gpu.Read(b, out))
	assert.Equal(t, in, out)

	all, err := gpu.ReadAll[gpu.TrussRecord](b)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, gpu.TrussRecord{}, all[2])
}

func TestBufferOverflow(t *testing.T) {
	dev := hostdev.NewDevice()
	b := gpu.MustNewBuffer[float32](dev, gpu.LayoutStiffnessLength, 2)
	err := gpu.Write(b, []float32{1, 2, 3})
	assert.ErrorIs(t, err, gpu.ErrBufferOverflow)
}

func TestBufferWrongRecordOnWrite(t *testing.T) {
	dev := hostdev.NewDevice()
	b := gpu.MustNewBuffer[float32](dev, gpu.LayoutStiffnessLength, 2)
	err := gpu.Write(b, []gpu.Vec3Record{{1, 2, 3}})
	assert.ErrorIs(t, err, gpu.ErrBufferContract)
}

func TestZeroCountAllocatesOne(t *testing.T) {
	dev := hostdev.NewDevice()
	b := gpu.MustNewBuffer[gpu.TrussRecord](dev, gpu.LayoutTrusses, 0)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 12, b.Size())
}

func TestBufferReleaseOnce(t *testing.T) {
	dev := hostdev.NewDevice()
	b := gpu.MustNewBuffer[gpu.Vec3Record](dev, gpu.LayoutPositions, 4)

	require.NoError(t, b.Release())
	require.NoError(t, b.Release(), "second release is a no-op")
	assert.True(t, b.Released())
	assert.Equal(t, 1, dev.ReleasedCount())

	err := gpu.Write(b, []gpu.Vec3Record{{1, 1, 1}})
	assert.ErrorIs(t, err, gpu.ErrBufferReleased)
	_, err = gpu.ReadAll[gpu.Vec3Record](b)
	assert.ErrorIs(t, err, gpu.ErrBufferReleased)
}

func TestGroups(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0}, {1, 1}, {255, 1}, {256, 1}, {257, 2}, {1024, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gpu.Groups(tt.n), "n=%d", tt.n)
	}
	assert.Equal(t, 20736, gpu.TrussGroups*gpu.TrussGroups*64)
}

func TestPassNames(t *testing.T) {
	assert.Equal(t, "SimulateTruss", gpu.PassSimulateTruss.String())
	assert.Equal(t, "RunIC", gpu.PassImpulse.String())
	assert.Len(t, gpu.Passes(), 8)
}

func softCounts() gpu.Counts {
	return gpu.Counts{
		Nodes:            10,
		Trusses:          20,
		MaxConnections:   4,
		MaxCollisions:    8,
		MaxMeshVertices:  64,
		MaxMeshTriangles: 32,
	}
}

func TestBufferSetSoft(t *testing.T) {
	dev := hostdev.NewDevice()
	set, err := gpu.NewBufferSet(dev, gpu.ProfileSoft, softCounts())
	require.NoError(t, err)

	assert.Equal(t, 40, set.NodeInfo.Len())
	assert.Equal(t, 96, set.MeshTriangles.Len())
	assert.Equal(t, 8, set.Continuous.Len())
	assert.Nil(t, set.OriginPositions)
	assert.Equal(t, len(set.Buffers()), dev.Live())

	require.NoError(t, set.Release())
	require.NoError(t, set.Release())
	assert.Zero(t, dev.Live())
}

func TestBufferSetSolid(t *testing.T) {
	dev := hostdev.NewDevice()
	c := softCounts()
	c.Trusses = 0
	c.OriginNodes = 40
	set, err := gpu.NewBufferSet(dev, gpu.ProfileSolid, c)
	require.NoError(t, err)
	defer set.Release()

	assert.Nil(t, set.Trusses)
	assert.Nil(t, set.NodeInfo)
	assert.Equal(t, 40, set.OriginPositions.Len())
}

func TestBufferSetReleasesOnFailure(t *testing.T) {
	dev := &hostdev.FailingDevice{Device: hostdev.NewDevice(), FailAt: 5}
	set, err := gpu.NewBufferSet(dev, gpu.ProfileSoft, softCounts())
	require.ErrorIs(t, err, hostdev.ErrInjected)
	assert.Nil(t, set)
	assert.Zero(t, dev.Live(), "partial allocations released")
	assert.Equal(t, 4, dev.ReleasedCount())
}

func TestBufferSetBind(t *testing.T) {
	dev := hostdev.NewDevice()
	set, err := gpu.NewBufferSet(dev, gpu.ProfileSoft, softCounts())
	require.NoError(t, err)
	defer set.Release()

	k := hostdev.NewKernel()
	require.NoError(t, set.Bind(k))

	assert.Same(t, set.Trusses, k.Bound(gpu.PassSimulateTruss, "ROTrussesData"))
	assert.Same(t, set.Positions, k.Bound(gpu.PassSimulateNode, "RWNodePositions"))
	assert.Same(t, set.SimulationParams, k.Bound(gpu.PassImpulse, "SimulationParams"))
	assert.Nil(t, k.Bound(gpu.PassSolidNode, "RWNodePositions"))
	assert.Same(t, set.MeshTriangles, k.Bound(gpu.PassImpulse, "ROMeshTriONE"))

	for _, b := range set.Bindings() {
		assert.NotNil(t, b.Buffer, "pass %s", b.Pass)
	}
}
