// Package policy declares how empty workspace buckets are initialized.
//
// Rules are assembled with an immutable Builder and frozen into a Policy:
//
//	p := policy.NewBuilder().FromSource(ddbStore)
//	p = policy.FromFunction(p, loadTenants)
//	p = policy.Disable[AuditEntry](p)
//	ws := workspace.New(reg, workspace.WithPolicy(p.Build()))
//
// A per-kind generator wins over the global source; the disable switch wins
// over both. A kind with no rule initializes to empty.
package policy
