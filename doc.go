/*
Package depot provides an archetype-based Entity-Component-System (ECS) store
with a dependency-aware parallel scheduler in the schedule subpackage.

Entities sharing the same set of component types live in the same archetype.
Each archetype stores its entities in fixed-capacity chunks that hold one
contiguous array per component, so iterating a query walks memory linearly.

Core Concepts:

  - Entity: A generational handle. Destroyed handles never alias new entities.
  - Component: A registered data type. Every process has at most MaxComponentTypes of them.
  - Archetype: The storage for one exact set of component types.
  - Query: A filter over archetypes that also declares read and write access.
  - CommandBuffer: Structural changes recorded for later application.

Basic Usage:

	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()

	world := depot.Factory.NewWorld()
	world.NewEntity(position.With(Position{}), velocity.With(Velocity{X: 1}))

	query := depot.Factory.NewQuery()
	query.And(depot.Write(position), velocity)

	query.ForEach(world, func(cursor *depot.Cursor) {
		pos := position.Write(cursor)
		vel := velocity.Read(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	})

Structural changes (creating or destroying entities, adding or removing
components) panic while the world is being iterated. Record them in a
CommandBuffer and apply it afterwards.
*/
package depot
