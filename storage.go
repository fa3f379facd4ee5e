package depot

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	iter_util "github.com/TheBitDrifter/util/iter"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ Storage = &World{}

// World owns entities and their component data. Structural operations are
// not safe for concurrent use; component reads and writes through queries may
// run in parallel under the scheduler's access rules.
type World struct {
	id         uuid.UUID
	chunkBytes int
	entities   entityTable
	archetypes *archetypes
	// rows tracks table entries for every chunk table of the world
	rows       table.EntryIndex
	tick       uint64
	locks      atomic.Int32
	onDestroy  []EntityDestroyCallback
	log        *zap.Logger
}

type archetypes struct {
	nextID           archetypeID
	asSlice          []*archetype
	idsGroupedByMask map[mask.Mask]archetypeID
}

// WorldOption customizes a World at construction.
type WorldOption func(*World)

func WithChunkBytes(n int) WorldOption {
	return func(w *World) {
		if n > 0 {
			w.chunkBytes = n
		}
	}
}

func WithEntityLimit(n int) WorldOption {
	return func(w *World) {
		w.entities.limit = max(n, 0)
	}
}

func WithLogger(l *zap.Logger) WorldOption {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

func newWorld(opts ...WorldOption) *World {
	chunkBytes, limit := Config.snapshot()
	w := &World{
		id:         uuid.New(),
		chunkBytes: chunkBytes,
		entities:   entityTable{limit: limit},
		rows:       table.Factory.NewEntryIndex(),
		archetypes: &archetypes{
			nextID:           1,
			idsGroupedByMask: make(map[mask.Mask]archetypeID),
		},
		tick: 1,
		log:  Config.Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(zap.String("world", w.id.String()))
	return w
}

func (w *World) ID() uuid.UUID {
	return w.id
}

// Tick is the current change tick. Writes performed now are stamped with it.
func (w *World) Tick() uint64 {
	return w.tick
}

// AdvanceTick starts a new change tick and returns it.
func (w *World) AdvanceTick() uint64 {
	w.guard("AdvanceTick")
	w.tick++
	return w.tick
}

func (w *World) Len() int {
	return w.entities.live
}

func (w *World) Alive(e Entity) bool {
	_, ok := w.entities.lookup(e)
	return ok
}

// Locked reports whether an iteration or a scheduler stage currently forbids
// structural changes.
func (w *World) Locked() bool {
	return w.locks.Load() > 0
}

func (w *World) Lock() {
	w.locks.Add(1)
}

func (w *World) Unlock() {
	if w.locks.Add(-1) < 0 {
		panic("depot: Unlock of unlocked world")
	}
}

func (w *World) guard(op string) {
	if w.locks.Load() > 0 {
		panic(AccessConflictError{Op: op, Reason: "structural change while the world is being iterated"})
	}
}

// OnDestroy registers a callback run after an entity is destroyed.
func (w *World) OnDestroy(callback EntityDestroyCallback) {
	w.onDestroy = append(w.onDestroy, callback)
}

func (w *World) NewEntity(values ...Value) (Entity, error) {
	w.guard("NewEntity")
	var signature mask.Mask
	components := make([]*ComponentType, 0, len(values))
	for _, v := range values {
		ct := v.Descriptor()
		if err := v.validate(); err != nil {
			return Entity{}, err
		}
		if signature.ContainsAll(bitOf(ct)) {
			return Entity{}, ComponentExistsError{Component: ct}
		}
		signature.Mark(uint32(ct.id))
		components = append(components, ct)
	}
	arch := w.archetypeFor(signature, components)
	e, err := w.entities.allocate()
	if err != nil {
		return Entity{}, err
	}
	chunkIndex, slot, err := w.place(arch, e)
	if err != nil {
		w.entities.release(e)
		return Entity{}, err
	}
	c := arch.chunks[chunkIndex]
	for _, v := range values {
		v.store(&c.columns[arch.columnIndex(v.Descriptor().id)], slot)
	}
	return e, nil
}

// NewEntities creates n entities holding zero values of the given components.
// Each chunk is filled with one batch of table entries.
func (w *World) NewEntities(n int, components ...Component) ([]Entity, error) {
	w.guard("NewEntities")
	if n < 0 {
		return nil, fmt.Errorf("cannot create %d entities", n)
	}
	var signature mask.Mask
	types := make([]*ComponentType, 0, len(components))
	for _, c := range components {
		ct := c.Descriptor()
		if signature.ContainsAll(bitOf(ct)) {
			return nil, ComponentExistsError{Component: ct}
		}
		signature.Mark(uint32(ct.id))
		types = append(types, ct)
	}
	arch := w.archetypeFor(signature, types)
	entities := make([]Entity, 0, n)
	for len(entities) < n {
		batch := make([]Entity, 0, min(arch.room(), n-len(entities)))
		var allocErr error
		for len(batch) < cap(batch) {
			e, err := w.entities.allocate()
			if err != nil {
				allocErr = fmt.Errorf("failed to create entity %d of %d: %w", len(entities)+len(batch)+1, n, err)
				break
			}
			batch = append(batch, e)
		}
		if len(batch) > 0 {
			if err := w.fill(arch, batch); err != nil {
				for _, e := range batch {
					w.entities.release(e)
				}
				return entities, err
			}
			entities = append(entities, batch...)
		}
		if allocErr != nil {
			return entities, allocErr
		}
	}
	return entities, nil
}

// fill appends fresh entities to the tail chunk of arch. The batch must fit.
func (w *World) fill(arch *archetype, batch []Entity) error {
	chunkIndex, allocated, err := arch.tail(w.rows)
	w.logChunk(arch, chunkIndex, allocated)
	if err != nil {
		return err
	}
	c := arch.chunks[chunkIndex]
	start, err := c.grow(len(batch), w.tick)
	if err != nil {
		arch.trim()
		return err
	}
	for i, e := range batch {
		c.entities[start+i] = e
		rec := &w.entities.records[e.index]
		rec.arch, rec.chunk, rec.slot = arch, chunkIndex, start+i
	}
	arch.size += len(batch)
	return nil
}

func (w *World) place(arch *archetype, e Entity) (chunkIndex, slot int, err error) {
	chunkIndex, slot, allocated, err := arch.push(e, w.rows, w.tick)
	w.logChunk(arch, chunkIndex, allocated)
	if err != nil {
		return 0, 0, err
	}
	rec := &w.entities.records[e.index]
	rec.arch, rec.chunk, rec.slot = arch, chunkIndex, slot
	return chunkIndex, slot, nil
}

func (w *World) logChunk(arch *archetype, chunkIndex int, allocated bool) {
	if allocated {
		w.log.Debug("chunk allocated",
			zap.Uint32("archetype", uint32(arch.id)),
			zap.Int("chunk", chunkIndex),
			zap.Int("capacity", arch.capacity),
		)
	}
}

// DestroyEntity removes e and invalidates every handle to it. It reports
// false, without touching storage, when e is stale or unknown.
func (w *World) DestroyEntity(e Entity) bool {
	w.guard("DestroyEntity")
	rec, ok := w.entities.lookup(e)
	if !ok {
		return false
	}
	w.vacate(rec)
	w.entities.release(e)
	for _, callback := range w.onDestroy {
		callback(e)
	}
	return true
}

func (w *World) DestroyEntities(entities ...Entity) int {
	destroyed := 0
	for _, e := range entities {
		if w.DestroyEntity(e) {
			destroyed++
		}
	}
	return destroyed
}

// vacate swap-removes rec's slot. The table only rejects slots outside its
// length, so a failure here means the entity index is corrupt.
func (w *World) vacate(rec *entityRecord) {
	moved, ok, err := rec.arch.swapRemove(rec.chunk, rec.slot, w.tick)
	if err != nil {
		panic(fmt.Errorf("depot: vacate slot %d of chunk %d: %w", rec.slot, rec.chunk, err))
	}
	if ok {
		movedRec := &w.entities.records[moved.index]
		movedRec.chunk, movedRec.slot = rec.chunk, rec.slot
	}
}

func (w *World) AddComponent(e Entity, v Value) error {
	w.guard("AddComponent")
	rec, ok := w.entities.lookup(e)
	if !ok {
		return StaleEntityError{Entity: e}
	}
	ct := v.Descriptor()
	if err := v.validate(); err != nil {
		return err
	}
	if rec.arch.has(ct.id) {
		return ComponentExistsError{Component: ct}
	}
	dest := w.transition(rec.arch, ct, true)
	chunkIndex, slot, err := w.migrate(e, rec, dest)
	if err != nil {
		return err
	}
	c := dest.chunks[chunkIndex]
	v.store(&c.columns[dest.columnIndex(ct.id)], slot)
	return nil
}

func (w *World) RemoveComponent(e Entity, c Component) error {
	w.guard("RemoveComponent")
	rec, ok := w.entities.lookup(e)
	if !ok {
		return StaleEntityError{Entity: e}
	}
	ct := c.Descriptor()
	if !rec.arch.has(ct.id) {
		return ComponentNotFoundError{Component: ct}
	}
	dest := w.transition(rec.arch, ct, false)
	_, _, err := w.migrate(e, rec, dest)
	return err
}

// migrate is the single structural move: it copies the surviving columns of
// e into a new slot of dest and swap-removes the old slot.
func (w *World) migrate(e Entity, rec *entityRecord, dest *archetype) (chunkIndex, slot int, err error) {
	src := rec.arch
	srcChunk := src.chunks[rec.chunk]
	srcSlot := rec.slot
	chunkIndex, slot, allocated, err := dest.push(e, w.rows, w.tick)
	w.logChunk(dest, chunkIndex, allocated)
	if err != nil {
		return 0, 0, err
	}
	destChunk := dest.chunks[chunkIndex]
	for i, ct := range dest.components {
		if src.has(ct.id) {
			if err := destChunk.copyColumn(destChunk.columns[i].element, slot, srcChunk, srcSlot); err != nil {
				return 0, 0, fmt.Errorf("failed to move %v: %w", ct, err)
			}
		}
	}
	w.vacate(rec)
	rec.arch, rec.chunk, rec.slot = dest, chunkIndex, slot
	return chunkIndex, slot, nil
}

func (w *World) transition(origin *archetype, ct *ComponentType, add bool) *archetype {
	edges := origin.removeEdges
	if add {
		edges = origin.addEdges
	}
	if dest, ok := edges[ct.id]; ok {
		return dest
	}
	signature := origin.signature
	originalComps := iter_util.Collect(origin.ComponentTypes())
	var components []*ComponentType
	if add {
		signature.Mark(uint32(ct.id))
		components = append(originalComps, ct)
	} else {
		signature.Unmark(uint32(ct.id))
		components = make([]*ComponentType, 0, len(originalComps))
		for _, comp := range originalComps {
			if comp != ct {
				components = append(components, comp)
			}
		}
	}
	dest := w.archetypeFor(signature, components)
	edges[ct.id] = dest
	return dest
}

func (w *World) archetypeFor(signature mask.Mask, components []*ComponentType) *archetype {
	if id, found := w.archetypes.idsGroupedByMask[signature]; found {
		return w.archetypes.asSlice[id-1]
	}
	created := newArchetype(w.archetypes.nextID, signature, w.chunkBytes, components)
	w.archetypes.asSlice = append(w.archetypes.asSlice, created)
	w.archetypes.idsGroupedByMask[signature] = created.id
	w.archetypes.nextID++
	w.log.Debug("archetype created",
		zap.Uint32("archetype", uint32(created.id)),
		zap.Stringers("components", created.components),
		zap.Int("chunk_capacity", created.capacity),
	)
	return created
}

func (w *World) locate(e Entity, ct *ComponentType) (*column, int, bool) {
	rec, ok := w.entities.lookup(e)
	if !ok {
		return nil, 0, false
	}
	col := rec.arch.columnIndex(ct.id)
	if col < 0 {
		return nil, 0, false
	}
	return &rec.arch.chunks[rec.chunk].columns[col], rec.slot, true
}

func (w *World) Has(e Entity, c Component) bool {
	rec, ok := w.entities.lookup(e)
	return ok && rec.arch.has(c.Descriptor().id)
}

// ComponentsOf lists the component types of e in id order.
func (w *World) ComponentsOf(e Entity) ([]*ComponentType, bool) {
	rec, ok := w.entities.lookup(e)
	if !ok {
		return nil, false
	}
	return iter_util.Collect(rec.arch.ComponentTypes()), true
}

// RawPointer returns the address of e's component data. The pointer is valid
// until the next structural change. Writes through it are not seen by change
// detection; use SetRaw for that.
func (w *World) RawPointer(e Entity, id ComponentID) (unsafe.Pointer, error) {
	ct, err := w.resolve(e, id)
	if err != nil {
		return nil, err
	}
	col, slot, _ := w.locate(e, ct)
	return col.at(slot), nil
}

// SetRaw overwrites e's component with raw bytes. Only pointer-free
// component types accept raw writes.
func (w *World) SetRaw(e Entity, id ComponentID, data []byte) error {
	ct, err := w.resolve(e, id)
	if err != nil {
		return err
	}
	v := RawValue{Type: ct, Bytes: data}
	if err := v.validate(); err != nil {
		return err
	}
	col, slot, _ := w.locate(e, ct)
	v.store(col, slot)
	col.version = w.tick
	return nil
}

func (w *World) resolve(e Entity, id ComponentID) (*ComponentType, error) {
	ct, ok := ComponentTypeByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown component id %d", id)
	}
	rec, ok := w.entities.lookup(e)
	if !ok {
		return nil, StaleEntityError{Entity: e}
	}
	if !rec.arch.has(id) {
		return nil, ComponentNotFoundError{Component: ct}
	}
	return ct, nil
}

// TransferEntities moves entities with all their data into dst. The source
// handles become stale; the returned handles are valid in dst.
func (w *World) TransferEntities(dst *World, entities ...Entity) ([]Entity, error) {
	w.guard("TransferEntities")
	dst.guard("TransferEntities")
	if dst == w {
		return entities, nil
	}
	transferred := make([]Entity, 0, len(entities))
	for _, e := range entities {
		rec, ok := w.entities.lookup(e)
		if !ok {
			return transferred, StaleEntityError{Entity: e}
		}
		src := rec.arch
		dest := dst.archetypeFor(src.signature, src.components)
		moved, err := dst.entities.allocate()
		if err != nil {
			return transferred, fmt.Errorf("failed to transfer %v: %w", e, err)
		}
		chunkIndex, slot, err := dst.place(dest, moved)
		if err != nil {
			dst.entities.release(moved)
			return transferred, fmt.Errorf("failed to transfer %v: %w", e, err)
		}
		srcChunk := src.chunks[rec.chunk]
		destChunk := dest.chunks[chunkIndex]
		for i := range destChunk.columns {
			if err := destChunk.copyColumn(destChunk.columns[i].element, slot, srcChunk, rec.slot); err != nil {
				return transferred, fmt.Errorf("failed to transfer %v: %w", e, err)
			}
		}
		w.vacate(rec)
		w.entities.release(e)
		transferred = append(transferred, moved)
	}
	return transferred, nil
}

// Archetypes describes every archetype in creation order.
func (w *World) Archetypes() []ArchetypeInfo {
	infos := make([]ArchetypeInfo, len(w.archetypes.asSlice))
	for i, arch := range w.archetypes.asSlice {
		infos[i] = arch.info()
	}
	return infos
}

// EachChunk visits every non-empty chunk in native (archetype, chunk) order
// with read access to all columns. Returning false stops the walk.
func (w *World) EachChunk(fn func(ChunkView) bool) {
	w.Lock()
	defer w.Unlock()
	for _, arch := range w.archetypes.asSlice {
		access := readAll(arch)
		for _, c := range arch.chunks {
			if !fn(ChunkView{ref: chunkRef{arch: arch, chunk: c}, access: access, tick: w.tick}) {
				return
			}
		}
	}
}

func bitOf(ct *ComponentType) mask.Mask {
	var m mask.Mask
	m.Mark(uint32(ct.id))
	return m
}
