/*
Package partition resolves the partition a read or write of a kind targets.

A kind is associated with at most one named partition dimension (tenant,
year, ...). The key used for an item is, in order of precedence:

  - the item-level key from the kind's partition key selector
  - a call-scoped value carried by context.Context (WithKey)
  - the ambient value held by the workspace's Context (Set, Scope, SetInstance)

When none is available the key is Unset. Writes treat that as a
configuration error; reads switch to union mode over every known partition.

Call-scoped values are the preferred way to target a partition for one call:

	ctx = partition.WithKey(ctx, "tenant", "acme")
	err := workspace.UpdateOne(ctx, ws, policy)

Mutating the ambient value is supported for long-lived defaults and must be
paired with a deferred restore:

	restore := ws.Partitions().Scope("tenant", "acme")
	defer restore()
*/
package partition
