package depot

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/TheBitDrifter/mask"
	"github.com/cespare/xxhash/v2"
)

// MaxComponentTypes bounds the number of component types a process may
// register. It is the width of archetype signatures: 64 by default, raised
// with the mask package's m256, m512 and m1024 build tags.
const MaxComponentTypes = mask.MaxBits

// ComponentID is the dense, process-wide identity of a registered component type.
type ComponentID uint32

// ComponentType describes the byte layout of a component. Descriptors are
// created once by the registry and never change afterwards.
type ComponentType struct {
	id          ComponentID
	name        string
	typ         reflect.Type
	size        uintptr
	align       uintptr
	fingerprint uint64
	pointerFree bool
	raw         bool
}

func (ct *ComponentType) Descriptor() *ComponentType { return ct }

func (ct *ComponentType) ID() ComponentID { return ct.id }

func (ct *ComponentType) Name() string { return ct.name }

func (ct *ComponentType) Size() uintptr { return ct.size }

func (ct *ComponentType) Align() uintptr { return ct.align }

// Type is the Go type backing the component's column memory. Raw components
// registered by size and alignment get a synthesized array type.
func (ct *ComponentType) Type() reflect.Type { return ct.typ }

// Fingerprint is a hash of the component name, stable across processes.
func (ct *ComponentType) Fingerprint() uint64 { return ct.fingerprint }

// PointerFree reports whether the component bytes may be copied verbatim.
func (ct *ComponentType) PointerFree() bool { return ct.pointerFree }

func (ct *ComponentType) String() string {
	return ct.name
}

type componentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]ComponentID
	names  Cache[*ComponentType]
}

var registry = newComponentRegistry()

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		byType: make(map[reflect.Type]ComponentID),
		names:  FactoryNewCache[*ComponentType](MaxComponentTypes),
	}
}

func (r *componentRegistry) registerType(t reflect.Type) (*ComponentType, error) {
	r.mu.RLock()
	id, found := r.byType[t]
	if found {
		ct := *r.names.GetItem32(uint32(id))
		r.mu.RUnlock()
		return ct, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, found := r.byType[t]; found {
		return *r.names.GetItem32(uint32(id)), nil
	}
	name := typeName(t)
	if _, taken := r.names.GetIndex(name); taken {
		// Function-local types may share a qualified name.
		name = name + "#" + strconv.Itoa(r.names.Len())
	}
	ct := &ComponentType{
		name:        name,
		typ:         t,
		size:        t.Size(),
		align:       uintptr(t.Align()),
		fingerprint: xxhash.Sum64String(name),
		pointerFree: !hasPointers(t),
	}
	idx, err := r.names.Register(name, ct)
	if err != nil {
		return nil, CapacityExhaustedError{Resource: "component registry", Limit: MaxComponentTypes}
	}
	ct.id = ComponentID(idx)
	r.byType[t] = ct.id
	return ct, nil
}

func (r *componentRegistry) registerRaw(name string, size, align uintptr) (*ComponentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, taken := r.names.GetIndex(name); taken {
		existing := *r.names.GetItem(idx)
		if existing.raw && existing.size == size && existing.align == align {
			return existing, nil
		}
		return nil, fmt.Errorf("component name %q already registered with a different layout", name)
	}
	t, err := rawLayoutType(size, align)
	if err != nil {
		return nil, err
	}
	ct := &ComponentType{
		name:        name,
		typ:         t,
		size:        size,
		align:       align,
		fingerprint: xxhash.Sum64String(name),
		pointerFree: true,
		raw:         true,
	}
	idx, err := r.names.Register(name, ct)
	if err != nil {
		return nil, CapacityExhaustedError{Resource: "component registry", Limit: MaxComponentTypes}
	}
	ct.id = ComponentID(idx)
	return ct, nil
}

func (r *componentRegistry) byID(id ComponentID) (*ComponentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= r.names.Len() {
		return nil, false
	}
	return *r.names.GetItem32(uint32(id)), true
}

func (r *componentRegistry) byName(name string) (*ComponentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.names.GetIndex(name)
	if !ok {
		return nil, false
	}
	return *r.names.GetItem(idx), true
}

// RegisterRawComponent registers a component known only by its layout, as
// used across the foreign boundary. Alignment must be 1, 2, 4 or 8 and size a
// multiple of it. Registering the same name and layout twice is a no-op.
func RegisterRawComponent(name string, size, align uintptr) (*ComponentType, error) {
	return registry.registerRaw(name, size, align)
}

// ComponentTypeByID resolves a registered component id.
func ComponentTypeByID(id ComponentID) (*ComponentType, bool) {
	return registry.byID(id)
}

// LookupComponent resolves a registered component by name.
func LookupComponent(name string) (*ComponentType, bool) {
	return registry.byName(name)
}

func typeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func rawLayoutType(size, align uintptr) (reflect.Type, error) {
	var word reflect.Type
	switch align {
	case 1:
		word = reflect.TypeOf(uint8(0))
	case 2:
		word = reflect.TypeOf(uint16(0))
	case 4:
		word = reflect.TypeOf(uint32(0))
	case 8:
		word = reflect.TypeOf(uint64(0))
	default:
		return nil, fmt.Errorf("unsupported component alignment %d", align)
	}
	if size%align != 0 {
		return nil, fmt.Errorf("component size %d is not a multiple of alignment %d", size, align)
	}
	return reflect.ArrayOf(int(size/align), word), nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Interface, reflect.Chan, reflect.Func:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
