/*
Package registry holds the closed set of entity kinds a workspace works with.

Every Go type stored in a workspace is registered once as a Kind. The
registration captures everything the store needs to handle items of that
type through an untyped boundary:

  - the identity key selector used for upserts
  - the declared parent kinds (the type hierarchy is an explicit table,
    never discovered by walking the Go type system)
  - the partition dimension and an optional item-level partition key
  - an optional DynamoDB index map used by the ddb sink

Registration:

	reg := registry.New()
	registry.MustRegister[Animal](reg, "Animal", func(a Animal) any { return a.AnimalID() })
	registry.MustRegister[Dog](reg, "Dog", func(d Dog) any { return d.ID },
	    registry.Parent[Animal](),
	    registry.WithPartition("tenant"),
	    registry.WithIndexMap(map[string]string{
	        "PK": "DOG#{ID}",
	        "SK": "DOG#{ID}",
	    }),
	)

Parents must be registered before their children and the child type must be
assignable to each parent type, which in practice means parents are either
interfaces the child implements or the child itself. Abstract kinds never
get a bucket of their own but still link the hierarchy.

The registry is thread-safe and should be populated during initialization.
*/
package registry
