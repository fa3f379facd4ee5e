// Package ffi exposes worlds and schedulers through a table of functions over
// integer handles and raw pointers, for runtimes that cannot hold Go values.
// Component layouts cross the boundary as size and alignment pairs.
package ffi

import (
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/depot"
	"github.com/TheBitDrifter/depot/schedule"
	"go.uber.org/zap"
)

// WorldHandle identifies a world created through a Table. Zero is never a
// valid handle.
type WorldHandle uint64

// SystemCallback is the body of a foreign system. Any status other than
// StatusOK fails the system for the current tick.
type SystemCallback func(world WorldHandle, tick uint64, userData unsafe.Pointer) Status

// Table is the function table handed to a foreign runtime. Entities cross as
// packed uint64 values and component types as their registry ids.
type Table struct {
	CreateWorld       func() (WorldHandle, Status)
	DestroyWorld      func(world WorldHandle) Status
	RegisterComponent func(name string, size, align uintptr) (uint32, Status)
	CreateEntity      func(world WorldHandle, components []uint32, data []unsafe.Pointer) (uint64, Status)
	DestroyEntity     func(world WorldHandle, entity uint64) Status
	AddComponent      func(world WorldHandle, entity uint64, component uint32, data unsafe.Pointer) Status
	RemoveComponent   func(world WorldHandle, entity uint64, component uint32) Status
	GetComponent      func(world WorldHandle, entity uint64, component uint32) (unsafe.Pointer, Status)
	SetComponent      func(world WorldHandle, entity uint64, component uint32, data unsafe.Pointer) Status
	RegisterSystem    func(world WorldHandle, name string, reads, writes []uint32, callback SystemCallback, userData unsafe.Pointer) Status
	Tick              func(world WorldHandle) Status
}

type instance struct {
	world     *depot.World
	scheduler *schedule.Scheduler
}

type host struct {
	mu     sync.RWMutex
	next   WorldHandle
	worlds map[WorldHandle]*instance
	opts   []schedule.Option
	log    *zap.Logger
}

// NewTable returns a table whose worlds are scheduled with opts.
func NewTable(opts ...schedule.Option) *Table {
	h := &host{
		next:   1,
		worlds: make(map[WorldHandle]*instance),
		opts:   opts,
		log:    depot.Config.Logger().Named("ffi"),
	}
	return &Table{
		CreateWorld:       h.createWorld,
		DestroyWorld:      h.destroyWorld,
		RegisterComponent: h.registerComponent,
		CreateEntity:      h.createEntity,
		DestroyEntity:     h.destroyEntity,
		AddComponent:      h.addComponent,
		RemoveComponent:   h.removeComponent,
		GetComponent:      h.getComponent,
		SetComponent:      h.setComponent,
		RegisterSystem:    h.registerSystem,
		Tick:              h.tick,
	}
}

// guard converts an access conflict panic into a status. Other panics are
// not ours to swallow.
func (h *host) guard(status *Status) {
	r := recover()
	if r == nil {
		return
	}
	if conflict, ok := r.(depot.AccessConflictError); ok {
		h.log.Error("access conflict at the boundary", zap.Error(conflict))
		*status = StatusAccessConflict
		return
	}
	panic(r)
}

func (h *host) lookup(handle WorldHandle) (*instance, Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.worlds[handle]
	if !ok {
		return nil, StatusUnknownWorld
	}
	return inst, StatusOK
}

func (h *host) createWorld() (WorldHandle, Status) {
	world := depot.Factory.NewWorld()
	scheduler, err := schedule.New(world, h.opts...)
	if err != nil {
		return 0, statusOf(err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	handle := h.next
	h.next++
	h.worlds[handle] = &instance{world: world, scheduler: scheduler}
	h.log.Debug("world created", zap.Uint64("handle", uint64(handle)), zap.Stringer("world", world.ID()))
	return handle, StatusOK
}

func (h *host) destroyWorld(handle WorldHandle) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.worlds[handle]
	if !ok {
		return StatusUnknownWorld
	}
	if inst.world.Locked() {
		return StatusAccessConflict
	}
	delete(h.worlds, handle)
	return StatusOK
}

func (h *host) registerComponent(name string, size, align uintptr) (uint32, Status) {
	if name == "" {
		return 0, StatusInvalidArgument
	}
	ct, err := depot.RegisterRawComponent(name, size, align)
	if err != nil {
		return 0, statusOf(err)
	}
	return uint32(ct.ID()), StatusOK
}

// raw reads a component value of type id from data. A nil data pointer
// yields the zero value.
func raw(id uint32, data unsafe.Pointer) (depot.RawValue, Status) {
	ct, ok := depot.ComponentTypeByID(depot.ComponentID(id))
	if !ok {
		return depot.RawValue{}, StatusUnknownComponent
	}
	if !ct.PointerFree() {
		return depot.RawValue{}, StatusInvalidArgument
	}
	bytes := make([]byte, ct.Size())
	if data != nil && ct.Size() > 0 {
		copy(bytes, unsafe.Slice((*byte)(data), ct.Size()))
	}
	return depot.RawValue{Type: ct, Bytes: bytes}, StatusOK
}

func (h *host) createEntity(handle WorldHandle, components []uint32, data []unsafe.Pointer) (entity uint64, status Status) {
	defer h.guard(&status)
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return 0, status
	}
	if data != nil && len(data) != len(components) {
		return 0, StatusInvalidArgument
	}
	values := make([]depot.Value, len(components))
	for i, id := range components {
		var ptr unsafe.Pointer
		if data != nil {
			ptr = data[i]
		}
		v, status := raw(id, ptr)
		if status != StatusOK {
			return 0, status
		}
		values[i] = v
	}
	e, err := inst.world.NewEntity(values...)
	if err != nil {
		return 0, statusOf(err)
	}
	return e.Bits(), StatusOK
}

func (h *host) destroyEntity(handle WorldHandle, entity uint64) (status Status) {
	defer h.guard(&status)
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	if !inst.world.DestroyEntity(depot.EntityFromBits(entity)) {
		return StatusStaleEntity
	}
	return StatusOK
}

func (h *host) addComponent(handle WorldHandle, entity uint64, component uint32, data unsafe.Pointer) (status Status) {
	defer h.guard(&status)
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	v, status := raw(component, data)
	if status != StatusOK {
		return status
	}
	return statusOf(inst.world.AddComponent(depot.EntityFromBits(entity), v))
}

func (h *host) removeComponent(handle WorldHandle, entity uint64, component uint32) (status Status) {
	defer h.guard(&status)
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	ct, ok := depot.ComponentTypeByID(depot.ComponentID(component))
	if !ok {
		return StatusUnknownComponent
	}
	return statusOf(inst.world.RemoveComponent(depot.EntityFromBits(entity), ct))
}

// getComponent returns the address of the component data, valid until the
// next structural change of the world.
func (h *host) getComponent(handle WorldHandle, entity uint64, component uint32) (unsafe.Pointer, Status) {
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return nil, status
	}
	if _, ok := depot.ComponentTypeByID(depot.ComponentID(component)); !ok {
		return nil, StatusUnknownComponent
	}
	ptr, err := inst.world.RawPointer(depot.EntityFromBits(entity), depot.ComponentID(component))
	if err != nil {
		return nil, statusOf(err)
	}
	return ptr, StatusOK
}

func (h *host) setComponent(handle WorldHandle, entity uint64, component uint32, data unsafe.Pointer) Status {
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	if data == nil {
		return StatusInvalidArgument
	}
	v, status := raw(component, data)
	if status != StatusOK {
		return status
	}
	return statusOf(inst.world.SetRaw(depot.EntityFromBits(entity), depot.ComponentID(component), v.Bytes))
}

func (h *host) registerSystem(handle WorldHandle, name string, reads, writes []uint32, callback SystemCallback, userData unsafe.Pointer) Status {
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	if name == "" || callback == nil {
		return StatusInvalidArgument
	}
	sys := schedule.NewSystem(name, func(ctx *schedule.Context) error {
		if status := callback(handle, ctx.Tick, userData); status != StatusOK {
			return statusError{status: status}
		}
		return nil
	})
	for _, id := range reads {
		ct, ok := depot.ComponentTypeByID(depot.ComponentID(id))
		if !ok {
			return StatusUnknownComponent
		}
		sys.Reads(ct)
	}
	for _, id := range writes {
		ct, ok := depot.ComponentTypeByID(depot.ComponentID(id))
		if !ok {
			return StatusUnknownComponent
		}
		sys.Writes(ct)
	}
	if err := inst.scheduler.Add(sys); err != nil {
		return StatusInvalidArgument
	}
	return StatusOK
}

func (h *host) tick(handle WorldHandle) (status Status) {
	defer h.guard(&status)
	inst, status := h.lookup(handle)
	if status != StatusOK {
		return status
	}
	return statusOf(inst.scheduler.Tick())
}
