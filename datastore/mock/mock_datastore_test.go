/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/suparena/workspace/datastore/mock"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

type TestEntity struct {
	ID   string
	Name string
}

type Match struct {
	ID      string
	EventID string
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	registry.MustRegister(reg, "TestEntity", func(e *TestEntity) any { return e.ID })
	registry.MustRegister(reg, "Match", func(m *Match) any { return m.ID },
		registry.WithPartition("event"))
	return reg
}

func TestMockDataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("BasicOperations", func(t *testing.T) {
		reg := newRegistry(t)
		mockStore := mock.New(reg)

		entity := &TestEntity{ID: "123", Name: "Test"}
		if err := mockStore.UpdateItems(ctx, entity); err != nil {
			t.Fatalf("UpdateItems failed: %v", err)
		}
		if mockStore.Count() != 1 {
			t.Fatalf("Expected 1 item, got %d", mockStore.Count())
		}

		kind, _ := registry.KindOf[*TestEntity](reg)
		items, err := mockStore.Query(ctx, kind)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(items) != 1 || items[0].(*TestEntity).Name != "Test" {
			t.Fatalf("Retrieved items mismatch: %+v", items)
		}

		if err := mockStore.DeleteItems(ctx, []*TestEntity{entity}); err != nil {
			t.Fatalf("DeleteItems failed: %v", err)
		}
		if mockStore.Count() != 0 {
			t.Fatalf("Expected 0 items after delete, got %d", mockStore.Count())
		}

		calls := mockStore.Calls()
		if len(calls) != 2 || calls[0].Op != mock.OpUpdate || calls[1].Op != mock.OpDelete {
			t.Fatalf("Unexpected calls: %+v", calls)
		}
	})

	t.Run("ErrorSimulation", func(t *testing.T) {
		reg := newRegistry(t)
		updateErr := errors.New("update failed")
		commitErr := errors.New("commit failed")
		queryErr := errors.New("query failed")
		mockStore := mock.New(reg).
			WithUpdateError(updateErr).
			WithCommitError(commitErr).
			WithQueryError(queryErr)

		if err := mockStore.UpdateItems(ctx, &TestEntity{ID: "1"}); !errors.Is(err, updateErr) {
			t.Fatalf("Expected update error, got: %v", err)
		}
		if err := mockStore.Commit(ctx); !errors.Is(err, commitErr) {
			t.Fatalf("Expected commit error, got: %v", err)
		}
		kind, _ := registry.KindOf[*TestEntity](reg)
		if _, err := mockStore.Query(ctx, kind); !errors.Is(err, queryErr) {
			t.Fatalf("Expected query error, got: %v", err)
		}
		if mockStore.Queries() != 1 {
			t.Fatalf("Expected failed query to be counted, got %d", mockStore.Queries())
		}
	})

	t.Run("PartitionFromContext", func(t *testing.T) {
		reg := newRegistry(t)
		mockStore := mock.New(reg)

		if err := mockStore.UpdateItems(partition.WithKey(ctx, "event", "e1"), &Match{ID: "m1"}); err != nil {
			t.Fatalf("UpdateItems failed: %v", err)
		}
		if err := mockStore.UpdateItems(partition.WithKey(ctx, "event", "e2"), &Match{ID: "m2"}); err != nil {
			t.Fatalf("UpdateItems failed: %v", err)
		}

		matchType := reflect.TypeFor[*Match]()
		if got := mockStore.Items(matchType, "e1"); len(got) != 1 {
			t.Fatalf("Expected 1 match in e1, got %d", len(got))
		}
		if calls := mockStore.Calls(); calls[1].PartitionKey != "e2" {
			t.Fatalf("Expected recorded partition e2, got %v", calls[1].PartitionKey)
		}

		kind, _ := registry.KindOf[*Match](reg)
		items, err := mockStore.QueryPartition(ctx, kind, "event", "e2")
		if err != nil {
			t.Fatalf("QueryPartition failed: %v", err)
		}
		if len(items) != 1 || items[0].(*Match).ID != "m2" {
			t.Fatalf("Unexpected partition items: %+v", items)
		}

		if name, ok := mockStore.PartitionOf(matchType); !ok || name != "event" {
			t.Fatalf("Expected event partition, got %q %v", name, ok)
		}
		if _, ok := mockStore.PartitionOf(reflect.TypeFor[*TestEntity]()); ok {
			t.Fatal("TestEntity should not be partitioned")
		}
	})

	t.Run("CommitAndClear", func(t *testing.T) {
		reg := newRegistry(t)
		mockStore := mock.New(reg)

		if err := mockStore.UpdateItems(ctx, []*TestEntity{{ID: "1"}}, storagemodels.WithSnapshot()); err != nil {
			t.Fatalf("UpdateItems failed: %v", err)
		}
		if err := mockStore.Commit(ctx, storagemodels.WithOrigin("test")); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if calls := mockStore.Calls(); !calls[0].Options.Snapshot {
			t.Fatal("Expected snapshot option to be recorded")
		}
		if commits := mockStore.Commits(); len(commits) != 1 || commits[0].Origin != "test" {
			t.Fatalf("Unexpected commits: %+v", commits)
		}

		mockStore.Clear()
		if mockStore.Count() != 0 || len(mockStore.Calls()) != 0 || len(mockStore.Commits()) != 0 {
			t.Fatal("Clear did not reset the store")
		}
	})

	t.Run("QueryFunc", func(t *testing.T) {
		reg := newRegistry(t)
		mockStore := mock.New(reg).WithQueryFunc(func(ctx context.Context, kind *registry.Kind) ([]any, error) {
			return []any{&TestEntity{ID: "gen"}}, nil
		})
		kind, _ := registry.KindOf[*TestEntity](reg)
		items, err := mockStore.Query(ctx, kind)
		if err != nil || len(items) != 1 {
			t.Fatalf("Unexpected result: %v %v", items, err)
		}
	})
}
