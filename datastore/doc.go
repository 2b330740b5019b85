/*
Package datastore defines the boundary contracts between the workspace core
and the systems around it.

Source feeds empty buckets on first query:

	type Source interface {
	    Query(ctx context.Context, kind *registry.Kind) ([]any, error)
	}

PartitionedSource narrows that query to one partition key. Sink receives
committed changes:

	type Sink interface {
	    UpdateItems(ctx context.Context, items any, opts ...storagemodels.UpdateOption) error
	    DeleteItems(ctx context.Context, items any) error
	    Commit(ctx context.Context, opts ...storagemodels.CommitOption) error
	    PartitionOf(t reflect.Type) (string, bool)
	}

Implementations:
  - workspace.Workspace: a workspace is itself a sink, so workspaces chain
  - ddb: DynamoDB sink and partition-aware source for single-table designs
  - mock: in-memory sink and source for testing
*/
package datastore
