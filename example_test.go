package depot_test

import (
	"fmt"

	"github.com/TheBitDrifter/depot"
)

// Position is a simple component for 2D coordinates
type Position struct {
	X float64
	Y float64
}

// Velocity is a simple component for 2D movement
type Velocity struct {
	X float64
	Y float64
}

// Name is a simple component for entity identification
type Name struct {
	Value string
}

// Example shows basic usage with entity creation and queries
func Example_basic() {
	world := depot.Factory.NewWorld()

	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()
	name := depot.FactoryNewComponent[Name]()

	world.NewEntities(5, position)
	world.NewEntities(3, position, velocity)
	world.NewEntity(
		position.With(Position{X: 10, Y: 20}),
		velocity.With(Velocity{X: 1, Y: 2}),
		name.With(Name{Value: "Player"}),
	)

	// Count entities with position and velocity
	query := depot.Factory.NewQuery()
	query.And(position, velocity)
	cursor := depot.Factory.NewCursor(query, world)
	matchCount := 0
	for cursor.Next() {
		matchCount++
	}
	fmt.Printf("Found %d entities with position and velocity\n", matchCount)

	// Move the named entity
	query = depot.Factory.NewQuery()
	query.And(depot.Write(position), velocity, name)
	for _, cursor := range depot.Factory.NewCursor(query, world).Entities() {
		pos := position.Write(cursor)
		vel := velocity.Read(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
		fmt.Printf("Updated %s to position (%.1f, %.1f)\n", name.Read(cursor).Value, pos.X, pos.Y)
	}

	// Output:
	// Found 4 entities with position and velocity
	// Updated Player to position (11.0, 22.0)
}

// Example_queries shows how to use different query operations
func Example_queries() {
	world := depot.Factory.NewWorld()

	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()
	name := depot.FactoryNewComponent[Name]()

	world.NewEntities(3, position)
	world.NewEntities(3, position, velocity)
	world.NewEntities(3, position, name)
	world.NewEntities(3, position, velocity, name)

	// AND query: entities with position AND velocity
	andQuery := depot.Factory.NewQuery()
	andQuery.And(position, velocity)
	fmt.Printf("AND query matched %d entities\n", countOf(andQuery, world))

	// OR query: entities with velocity OR name
	orQuery := depot.Factory.NewQuery()
	orQuery.Or(velocity, name)
	fmt.Printf("OR query matched %d entities\n", countOf(orQuery, world))

	// NOT query: entities with position but NOT velocity
	notQuery := depot.Factory.NewQuery()
	notQuery.And(position, notQuery.Not(velocity))
	fmt.Printf("NOT query matched %d entities\n", countOf(notQuery, world))

	// Output:
	// AND query matched 6 entities
	// OR query matched 9 entities
	// NOT query matched 6 entities
}

// Example_commandBuffer shows deferring structural changes found during a
// query until the iteration is over
func Example_commandBuffer() {
	world := depot.Factory.NewWorld()
	position := depot.FactoryNewComponent[Position]()

	for i := range 5 {
		world.NewEntity(position.With(Position{X: float64(i)}))
	}

	commands := depot.NewCommandBuffer()
	query := depot.Factory.NewQuery()
	query.And(position)
	query.ForEach(world, func(cursor *depot.Cursor) {
		if position.Read(cursor).X >= 3 {
			commands.Destroy(cursor.Entity())
		}
	})
	if err := commands.Apply(world); err != nil {
		fmt.Println(err)
	}
	fmt.Printf("%d entities left\n", world.Len())

	// Output:
	// 3 entities left
}

func countOf(q depot.Query, w *depot.World) int {
	cursor := depot.Factory.NewCursor(q, w)
	defer cursor.Reset()
	return cursor.TotalMatched()
}
