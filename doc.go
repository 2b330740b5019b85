/*
Package workspace provides a partitioned in-memory data workspace: a
type-indexed object store that buffers pending mutations and synchronizes
them on demand to a downstream sink.

The library is organised the way data flows through it:
  - registry: the closed set of kinds, their parents and identity keys
  - partition: which partition a read or write targets
  - collection: the identity-keyed upsert set behind every bucket
  - store: the kind -> partition -> bucket index, cascading and lazy initialization
  - policy: how empty buckets are initialized (generator, source, disabled)
  - changes: pending deltas per kind and partition since the last commit
  - datastore: sink and source contracts, with ddb and mock implementations

Key Features:
  - Writes cascade into every registered non-abstract ancestor kind
  - Snapshot writes replace a bucket instead of merging into it
  - Partition keys come from the item, the call context or the ambient state
  - Buckets initialize lazily from a generator or an external source
  - Pending changes commit to any Sink, including another Workspace

Basic Usage:

	reg := registry.New()
	registry.MustRegister[Animal](reg, "Animal", func(a Animal) any { return a.AnimalID() })
	registry.MustRegister[Dog](reg, "Dog", func(d Dog) any { return d.ID }, registry.Parent[Animal]())

	ws, _ := workspace.New(reg)
	_ = workspace.UpdateOne(ctx, ws, Dog{ID: "a"})

	animals, _ := workspace.Query[Animal](ctx, ws) // [Dog{ID: "a"}]

	// Flush pending changes to DynamoDB
	sink := ddb.NewStore(client, "my-table", reg)
	err := ws.CommitTo(ctx, sink)

A Workspace has a single logical owner. Internal state is guarded so
accidental concurrent use is memory-safe, but at most one CommitTo may run
at a time and callers serialize multi-writer access themselves.
*/
package workspace
