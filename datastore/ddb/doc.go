/*
Package ddb provides a DynamoDB sink and source for workspaces.

Store supports:
  - Single-table design patterns
  - Macro-based key expansion (e.g., "USER#{ID}")
  - Kind and partition reads through a GSI
  - Paged reads with retry logic
  - Automatic EntityType and PartitionKey injection for polymorphic storage

Key Layout:

Every item carries its registered kind name in EntityType. Kinds registered
with registry.WithIndexMap get their PK, SK and any extra attributes from the
expanded templates; other kinds use "<Kind>#<id>" for both. GSI1 is keyed by
PK1 = kind name and SK1 = "<partition key>#<id>":

	reg := registry.New()
	registry.MustRegister(reg, "Player", func(p *Player) any { return p.ID },
	    registry.WithPartition("ratingSystem"),
	    registry.WithIndexMap(map[string]string{
	        "PK": "PLAYER#{ID}",
	        "SK": "RS#{PartitionKey}",
	    }),
	)

Writes are buffered by UpdateItems and DeleteItems and flushed by Commit, so a
Store can be the target of Workspace.CommitTo. As a policy source it reads all
items of a kind, or one partition of it:

	store := ddb.NewStore(client, "my-table", reg,
	    ddb.WithFetchOptions(
	        storagemodels.WithPageSize(25),
	        storagemodels.WithMaxRetries(3),
	    ),
	)
	pol := policy.NewBuilder().FromSource(store).Build()
*/
package ddb
