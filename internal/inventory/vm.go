package inventory

import (
	"sort"

	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// Shadow vms are minimal placeholder vms standing in for cinder volumes: one
// disk, no nics, powered off, and a fixed minimal compute footprint.
const (
	shadowVMMemoryMB = 128
	shadowVMNumCPU   = 1
)

// VM is a typed view of one virtual machine, built from a vCenter property
// snapshot and discarded at the end of the balancing cycle.
type VM struct {
	Name       string
	Annotation string
	MemoryMB   int32
	NumCPU     int32
	PoweredOff bool
	DiskSizes  []int64
	NICs       int
	// Ref identifies the vm in the vCenter but does not own it.
	Ref types.ManagedObjectReference
}

// NewVM builds a VM from its property snapshot. Snapshots without a hardware
// config section cannot be classified and yield an error.
func NewVM(m mo.VirtualMachine) (*VM, error) {
	if m.Config == nil {
		return nil, &MissingPropertyError{Object: m.Name, Property: "config.hardware"}
	}
	vm := &VM{
		Name:       m.Name,
		Annotation: m.Config.Annotation,
		MemoryMB:   m.Config.Hardware.MemoryMB,
		NumCPU:     m.Config.Hardware.NumCPU,
		PoweredOff: m.Runtime.PowerState == types.VirtualMachinePowerStatePoweredOff,
		Ref:        m.Self,
	}
	for _, dev := range m.Config.Hardware.Device {
		if disk, ok := dev.(*types.VirtualDisk); ok {
			vm.DiskSizes = append(vm.DiskSizes, disk.CapacityInBytes)
			continue
		}
		if _, ok := dev.(types.BaseVirtualEthernetCard); ok {
			vm.NICs++
		}
	}
	return vm, nil
}

// IsShadow reports whether the vm is a shadow vm, i.e. a relocatable
// placeholder for a cinder volume. Shadow-shaped vms with zero or more than
// one disk are broken placeholders and are excluded with a warning.
func (v *VM) IsShadow() bool {
	if v.MemoryMB != shadowVMMemoryMB || v.NumCPU != shadowVMNumCPU || !v.PoweredOff || v.NICs > 0 {
		return false
	}
	switch {
	case len(v.DiskSizes) == 0:
		zap.S().Named("inventory").Warnf("shadow vm %s without a disk", v.Name)
		return false
	case len(v.DiskSizes) > 1:
		zap.S().Named("inventory").Warnf("shadow vm %s with more than one disk", v.Name)
		return false
	}
	return true
}

// TotalDiskSize is the summed capacity of all attached disks in bytes.
func (v *VM) TotalDiskSize() int64 {
	var total int64
	for _, size := range v.DiskSizes {
		total += size
	}
	return total
}

// VMs holds all vms of one inventory snapshot.
type VMs struct {
	Elements []*VM

	byRef map[types.ManagedObjectReference]*VM
}

// NewVMs builds the vm collection from the raw property snapshot. Entries
// without a hardware config (templates mid-clone, orphaned entries) are
// skipped.
func NewVMs(snapshots []mo.VirtualMachine) *VMs {
	vms := &VMs{byRef: make(map[types.ManagedObjectReference]*VM, len(snapshots))}
	for _, m := range snapshots {
		vm, err := NewVM(m)
		if err != nil {
			zap.S().Named("inventory").Debugf("skipping vm %q: %v", m.Name, err)
			continue
		}
		vms.Elements = append(vms.Elements, vm)
		vms.byRef[vm.Ref] = vm
	}
	return vms
}

// NewVMCollection builds a collection from already constructed vms.
func NewVMCollection(vms ...*VM) *VMs {
	collection := &VMs{byRef: make(map[types.ManagedObjectReference]*VM, len(vms))}
	for _, vm := range vms {
		collection.Elements = append(collection.Elements, vm)
		collection.byRef[vm.Ref] = vm
	}
	return collection
}

// ByRef returns the vm with the given managed object reference, or nil.
func (v *VMs) ByRef(ref types.ManagedObjectReference) *VM {
	return v.byRef[ref]
}

// ByName returns the vm with the given name, or nil.
func (v *VMs) ByName(name string) *VM {
	for _, vm := range v.Elements {
		if vm.Name == name {
			return vm
		}
	}
	return nil
}

// ShadowVMs resolves the given references and returns those that are shadow
// vms. Unknown references are ignored.
func (v *VMs) ShadowVMs(refs []types.ManagedObjectReference) []*VM {
	var shadows []*VM
	for _, ref := range refs {
		vm := v.byRef[ref]
		if vm == nil {
			continue
		}
		if vm.IsShadow() {
			shadows = append(shadows, vm)
		}
	}
	return shadows
}

// SortVMsByTotalDiskSize sorts vms by summed disk capacity, largest first.
// The sort is stable so ties keep their collection order.
func SortVMsByTotalDiskSize(vms []*VM) {
	sort.SliceStable(vms, func(i, j int) bool {
		return vms[i].TotalDiskSize() > vms[j].TotalDiskSize()
	})
}
