package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

func vmRef(value string) types.ManagedObjectReference {
	return types.ManagedObjectReference{Type: "VirtualMachine", Value: value}
}

func shadowVM(name string, ref types.ManagedObjectReference, diskSizes ...int64) *VM {
	return &VM{
		Name:       name,
		MemoryMB:   shadowVMMemoryMB,
		NumCPU:     shadowVMNumCPU,
		PoweredOff: true,
		DiskSizes:  diskSizes,
		Ref:        ref,
	}
}

func TestNewVM(t *testing.T) {
	ref := vmRef("vm-42")
	snapshot := mo.VirtualMachine{
		ManagedEntity: mo.ManagedEntity{
			ExtensibleManagedObject: mo.ExtensibleManagedObject{Self: ref},
			Name:                    "volume-0001",
		},
		Config: &types.VirtualMachineConfigInfo{
			Annotation: "netapp-backed cinder volume",
			Hardware: types.VirtualHardware{
				MemoryMB: 128,
				NumCPU:   1,
				Device: []types.BaseVirtualDevice{
					&types.VirtualDisk{CapacityInBytes: 50 * gib},
					&types.VirtualE1000{},
				},
			},
		},
		Runtime: types.VirtualMachineRuntimeInfo{
			PowerState: types.VirtualMachinePowerStatePoweredOff,
		},
	}

	vm, err := NewVM(snapshot)
	require.NoError(t, err)

	assert.Equal(t, "volume-0001", vm.Name)
	assert.Equal(t, "netapp-backed cinder volume", vm.Annotation)
	assert.Equal(t, int32(128), vm.MemoryMB)
	assert.Equal(t, int32(1), vm.NumCPU)
	assert.True(t, vm.PoweredOff)
	assert.Equal(t, []int64{50 * gib}, vm.DiskSizes)
	assert.Equal(t, 1, vm.NICs)
	assert.Equal(t, ref, vm.Ref)
	assert.Equal(t, 50*gib, vm.TotalDiskSize())
}

func TestNewVMWithoutConfig(t *testing.T) {
	snapshot := mo.VirtualMachine{
		ManagedEntity: mo.ManagedEntity{Name: "orphaned"},
	}
	_, err := NewVM(snapshot)

	var missing *MissingPropertyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "orphaned", missing.Object)
}

func TestIsShadow(t *testing.T) {
	tests := []struct {
		name     string
		vm       *VM
		expected bool
	}{
		{
			name:     "single disk placeholder",
			vm:       shadowVM("volume-1", vmRef("vm-1"), 100*gib),
			expected: true,
		},
		{
			name:     "no disk",
			vm:       shadowVM("volume-2", vmRef("vm-2")),
			expected: false,
		},
		{
			name:     "two disks",
			vm:       shadowVM("volume-3", vmRef("vm-3"), 100*gib, 10*gib),
			expected: false,
		},
		{
			name: "powered on",
			vm: &VM{
				Name: "running", MemoryMB: shadowVMMemoryMB, NumCPU: shadowVMNumCPU,
				PoweredOff: false, DiskSizes: []int64{100 * gib},
			},
			expected: false,
		},
		{
			name: "regular vm",
			vm: &VM{
				Name: "worker", MemoryMB: 16384, NumCPU: 8,
				PoweredOff: false, DiskSizes: []int64{100 * gib}, NICs: 2,
			},
			expected: false,
		},
		{
			name: "shadow shaped but with a nic",
			vm: &VM{
				Name: "volume-4", MemoryMB: shadowVMMemoryMB, NumCPU: shadowVMNumCPU,
				PoweredOff: true, DiskSizes: []int64{100 * gib}, NICs: 1,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.vm.IsShadow())
		})
	}
}

func TestShadowVMs(t *testing.T) {
	shadow := shadowVM("volume-1", vmRef("vm-1"), 100*gib)
	broken := shadowVM("volume-2", vmRef("vm-2"))
	regular := &VM{Name: "worker", MemoryMB: 16384, NumCPU: 8, Ref: vmRef("vm-3")}
	vms := NewVMCollection(shadow, broken, regular)

	shadows := vms.ShadowVMs([]types.ManagedObjectReference{
		vmRef("vm-1"), vmRef("vm-2"), vmRef("vm-3"), vmRef("vm-999"),
	})

	require.Len(t, shadows, 1)
	assert.Equal(t, "volume-1", shadows[0].Name)
}

func TestSortVMsByTotalDiskSize(t *testing.T) {
	small := shadowVM("small", vmRef("vm-1"), 10*gib)
	large := shadowVM("large", vmRef("vm-2"), 500*gib)
	medium := shadowVM("medium", vmRef("vm-3"), 100*gib)

	vms := []*VM{small, large, medium}
	SortVMsByTotalDiskSize(vms)

	assert.Equal(t, []*VM{large, medium, small}, vms)
}
