package depot

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
)

func TestComponentRegistration(t *testing.T) {
	first := FactoryNewComponent[Position]()
	second := FactoryNewComponent[Position]()
	if first.ComponentType != second.ComponentType {
		t.Errorf("Registering a type twice produced two descriptors")
	}

	vel := FactoryNewComponent[Velocity]()
	if vel.ID() == first.ID() {
		t.Errorf("Distinct types share id %d", vel.ID())
	}

	tests := []struct {
		name        string
		ct          *ComponentType
		size        uintptr
		pointerFree bool
	}{
		{"Position", first.ComponentType, 16, true},
		{"Health", FactoryNewComponent[Health]().ComponentType, 2 * reflect.TypeFor[int]().Size(), true},
		{"Label", FactoryNewComponent[Label]().ComponentType, reflect.TypeFor[string]().Size(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ct.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", tt.ct.Size(), tt.size)
			}
			if tt.ct.PointerFree() != tt.pointerFree {
				t.Errorf("PointerFree() = %v, want %v", tt.ct.PointerFree(), tt.pointerFree)
			}
			if tt.ct.Name() != "github.com/TheBitDrifter/depot."+tt.name {
				t.Errorf("Name() = %q", tt.ct.Name())
			}
			byID, ok := ComponentTypeByID(tt.ct.ID())
			if !ok || byID != tt.ct {
				t.Errorf("ComponentTypeByID(%d) = %v, %v", tt.ct.ID(), byID, ok)
			}
			if tt.ct.Fingerprint() == 0 {
				t.Errorf("Fingerprint() is zero")
			}
		})
	}

	if _, ok := ComponentTypeByID(MaxComponentTypes - 1); ok {
		t.Errorf("Unregistered id resolved")
	}
}

func TestRegistryCapacity(t *testing.T) {
	r := newComponentRegistry()
	for i := range MaxComponentTypes {
		if _, err := r.registerRaw("raw"+strconv.Itoa(i), 4, 4); err != nil {
			t.Fatalf("Registration %d failed: %v", i, err)
		}
	}
	_, err := r.registerRaw("overflow", 4, 4)
	var exhausted CapacityExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Limit != MaxComponentTypes {
		t.Errorf("Registration beyond the limit error = %v", err)
	}
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Errorf("error does not wrap ErrCapacityExhausted")
	}
}

// TestHighestComponentID stores, queries and removes the component with the
// largest id an archetype signature can hold.
func TestHighestComponentID(t *testing.T) {
	r := newComponentRegistry()
	var last *ComponentType
	for i := range MaxComponentTypes {
		ct, err := r.registerRaw("wide"+strconv.Itoa(i), 8, 8)
		if err != nil {
			t.Fatalf("Registration %d failed: %v", i, err)
		}
		last = ct
	}
	if last.ID() != MaxComponentTypes-1 {
		t.Fatalf("Last id = %d, want %d", last.ID(), MaxComponentTypes-1)
	}

	posComp := FactoryNewComponent[Position]()
	world := Factory.NewWorld()
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wide, err := world.NewEntity(posComp.With(Position{X: 7}), RawValue{Type: last, Bytes: data})
	if err != nil {
		t.Fatalf("NewEntity with component id %d failed: %v", last.ID(), err)
	}
	if _, err := world.NewEntity(posComp.With(Position{X: 1})); err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}

	if !world.Has(wide, last) {
		t.Errorf("Entity lacks component id %d", last.ID())
	}
	if got := countMatches(world, last); got != 1 {
		t.Errorf("Query on id %d matched %d entities, want 1", last.ID(), got)
	}
	if got := countMatches(world, posComp); got != 2 {
		t.Errorf("Query on Position matched %d entities, want 2", got)
	}

	if err := world.RemoveComponent(wide, last); err != nil {
		t.Fatalf("RemoveComponent failed: %v", err)
	}
	if world.Has(wide, last) {
		t.Errorf("Component id %d still present after removal", last.ID())
	}
	if pos, ok := posComp.Get(world, wide); !ok || pos.X != 7 {
		t.Errorf("Position after removal = %v, %v", pos, ok)
	}
}

func TestChunkCapacity(t *testing.T) {
	pos := FactoryNewComponent[Position]().ComponentType
	vel := FactoryNewComponent[Velocity]().ComponentType

	tests := []struct {
		name       string
		budget     int
		components []*ComponentType
		want       int
	}{
		{"Default budget", DefaultChunkBytes, []*ComponentType{pos, vel}, DefaultChunkBytes / 40},
		{"Tiny budget", 1, []*ComponentType{pos}, 1},
		{"Capped", 1 << 30, nil, MaxChunkCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunkCapacity(tt.budget, tt.components); got != tt.want {
				t.Errorf("chunkCapacity() = %d, want %d", got, tt.want)
			}
		})
	}
}
