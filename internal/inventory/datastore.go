package inventory

import (
	"slices"
	"sort"

	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const gib = int64(1) << 30

// Datastore is a typed view of one vCenter datastore. Free space and the
// member vm set are mutated by simulated moves within a cycle; usage is
// always derived from capacity and free space, never stored.
type Datastore struct {
	Name     string
	Capacity int64
	Free     int64
	VMRefs   []types.ManagedObjectReference
	Ref      types.ManagedObjectReference
}

func NewDatastore(m mo.Datastore) (*Datastore, error) {
	if m.Summary.Capacity == 0 {
		return nil, &MissingPropertyError{Object: m.Name, Property: "summary.capacity"}
	}
	return &Datastore{
		Name:     m.Name,
		Capacity: m.Summary.Capacity,
		Free:     m.Summary.FreeSpace,
		VMRefs:   m.Vm,
		Ref:      m.Self,
	}, nil
}

// Usage is the used fraction of the datastore in percent, recomputed from
// capacity and free space on every call.
func (d *Datastore) Usage() float64 {
	return (1 - float64(d.Free)/float64(d.Capacity)) * 100
}

// Used is the occupied space in bytes.
func (d *Datastore) Used() int64 {
	return d.Capacity - d.Free
}

func (d *Datastore) IsBelowUsage(usage float64) bool {
	return d.Usage() < usage
}

func (d *Datastore) IsAboveUsage(usage float64) bool {
	return d.Usage() > usage
}

func (d *Datastore) IsBelowFreeGiB(freeGiB int64) bool {
	return d.Free < freeGiB*gib
}

// AddShadowVM books the vm onto the datastore: free space shrinks by the vm's
// total disk size and the vm joins the member set.
func (d *Datastore) AddShadowVM(vm *VM) {
	d.Free -= vm.TotalDiskSize()
	d.VMRefs = append(d.VMRefs, vm.Ref)
}

// RemoveShadowVM books the vm off the datastore: the vm leaves the member set
// and its total disk size is returned to the free space.
func (d *Datastore) RemoveShadowVM(vm *VM) {
	d.VMRefs = slices.DeleteFunc(d.VMRefs, func(ref types.ManagedObjectReference) bool {
		return ref == vm.Ref
	})
	d.Free += vm.TotalDiskSize()
}

// Datastores holds the datastores of one inventory snapshot. Filter methods
// narrow the collection in place; the collection is rebuilt each cycle.
type Datastores struct {
	Elements []*Datastore
}

// NewDatastores builds the datastore collection from the raw property
// snapshot. Datastores reporting zero capacity cannot be balanced and are
// excluded up front.
func NewDatastores(snapshots []mo.Datastore) *Datastores {
	ds := &Datastores{}
	for _, m := range snapshots {
		element, err := NewDatastore(m)
		if err != nil {
			zap.S().Named("inventory").Warnf("datastore %q has zero capacity", m.Name)
			continue
		}
		ds.Elements = append(ds.Elements, element)
	}
	return ds
}

// ByName returns the datastore with the given name, or nil.
func (d *Datastores) ByName(name string) *Datastore {
	for _, ds := range d.Elements {
		if ds.Name == name {
			return ds
		}
	}
	return nil
}

// FilterRelocatable narrows the collection to the datastores eligible for
// balancing on the given storage medium, minus the deny-listed ones.
func (d *Datastores) FilterRelocatable(medium string, denylist []string) {
	pattern := datastoreNamePattern(medium)
	var kept []*Datastore
	for _, ds := range d.Elements {
		if !pattern.MatchString(ds.Name) {
			continue
		}
		if slices.Contains(denylist, ds.Name) {
			continue
		}
		kept = append(kept, ds)
	}
	d.Elements = kept
}

// SortByUsage sorts the datastores by usage, most used first. An optional
// weight per datastore name biases the order; datastores without a weight
// entry count with factor 1.
func (d *Datastores) SortByUsage(weight map[string]float64) {
	sort.SliceStable(d.Elements, func(i, j int) bool {
		return weightedUsage(d.Elements[i], weight) > weightedUsage(d.Elements[j], weight)
	})
}

func weightedUsage(ds *Datastore, weight map[string]float64) float64 {
	w, ok := weight[ds.Name]
	if !ok {
		w = 1
	}
	return ds.Usage() * w
}

// OverallCapacity is the summed capacity of all datastores in bytes.
func (d *Datastores) OverallCapacity() int64 {
	var total int64
	for _, ds := range d.Elements {
		total += ds.Capacity
	}
	return total
}

// OverallFree is the summed free space of all datastores in bytes.
func (d *Datastores) OverallFree() int64 {
	var total int64
	for _, ds := range d.Elements {
		total += ds.Free
	}
	return total
}

// OverallAverageUsage is the capacity-weighted average usage in percent.
// Returns 0 for an empty collection.
func (d *Datastores) OverallAverageUsage() float64 {
	capacity := d.OverallCapacity()
	if capacity == 0 {
		return 0
	}
	return (1 - float64(d.OverallFree())/float64(capacity)) * 100
}
