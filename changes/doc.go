// Package changes schedules the deltas a workspace has accumulated since its
// last commit, grouped per kind and partition.
package changes
