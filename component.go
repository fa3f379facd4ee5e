package depot

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Component represents a data attribute/state that can be attached to entities.
// Components can be used to create queries for entities.
type Component interface {
	Descriptor() *ComponentType
}

// Value is a component paired with the data to store for it.
type Value interface {
	Component
	validate() error
	store(col *column, slot int)
}

type componentValue[T any] struct {
	ct *ComponentType
	v  T
}

func (cv componentValue[T]) Descriptor() *ComponentType { return cv.ct }

func (cv componentValue[T]) validate() error { return nil }

func (cv componentValue[T]) store(col *column, slot int) {
	*(*T)(col.at(slot)) = cv.v
}

// RawValue carries component bytes for a pointer-free component type.
type RawValue struct {
	Type  *ComponentType
	Bytes []byte
}

func (rv RawValue) Descriptor() *ComponentType { return rv.Type }

func (rv RawValue) validate() error {
	if !rv.Type.pointerFree {
		return fmt.Errorf("component %s holds pointers and cannot be set from raw bytes", rv.Type.name)
	}
	if uintptr(len(rv.Bytes)) != rv.Type.size {
		return fmt.Errorf("component %s expects %d bytes, got %d", rv.Type.name, rv.Type.size, len(rv.Bytes))
	}
	return nil
}

func (rv RawValue) store(col *column, slot int) {
	if rv.Type.size == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(col.at(slot)), rv.Type.size), rv.Bytes)
}

// NewComponent registers T (once per process) and returns its typed accessor.
func NewComponent[T any]() (AccessibleComponent[T], error) {
	ct, err := registry.registerType(reflect.TypeFor[T]())
	if err != nil {
		return AccessibleComponent[T]{}, err
	}
	return AccessibleComponent[T]{ComponentType: ct}, nil
}

// FactoryNewComponent is NewComponent for package-level declarations; it
// panics when the registry is full.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	c, err := NewComponent[T]()
	if err != nil {
		panic(err)
	}
	return c
}
