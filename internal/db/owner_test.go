package db

import (
	"context"
	"testing"

	tdsync "github.com/marcus/tdo/internal/sync"
)

func pendingOps(t *testing.T, db *DB) []tdsync.PendingOperation {
	t.Helper()
	var ops []tdsync.PendingOperation
	ctx := context.Background()
	for {
		tx, err := db.NextPendingTransaction(ctx)
		if err != nil {
			t.Fatalf("NextPendingTransaction: %v", err)
		}
		if tx == nil {
			return ops
		}
		ops = append(ops, tx.Operations...)
		if err := tx.Complete(ctx); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
}

func TestSignedOutWritesQueueNullOwners(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.AddTodo(ctx, NewTodo{Description: "offline"}); err != nil {
		t.Fatal(err)
	}
	ops := pendingOps(t, db)
	if len(ops) != 2 {
		t.Fatalf("ops = %v", ops)
	}
	if v, ok := ops[0].Data["owner_id"]; !ok || v != nil {
		t.Errorf("list owner_id = %#v, want null", v)
	}
	if v, ok := ops[1].Data["created_by"]; !ok || v != nil {
		t.Errorf("todo created_by = %#v, want null", v)
	}
	if v := ops[1].Data["completed_by"]; v != nil {
		t.Errorf("todo completed_by = %#v, want null", v)
	}
}

func TestClaimUnownedStampsRowsAndQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Written while signed out.
	first, err := db.AddTodo(ctx, NewTodo{Description: "offline"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SetCompleted(ctx, first.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	// Written after sign-in against the same default list.
	second, err := db.AddTodo(ctx, NewTodo{Description: "online", CreatedBy: "other"})
	if err != nil {
		t.Fatal(err)
	}

	n, err := db.ClaimUnowned(ctx, "user-1")
	if err != nil {
		t.Fatalf("ClaimUnowned: %v", err)
	}
	if n != 3 {
		t.Errorf("rewritten entries = %d, want 3", n)
	}

	list, err := db.GetList(ctx, first.ListID)
	if err != nil {
		t.Fatal(err)
	}
	if list.OwnerID != "user-1" {
		t.Errorf("local list owner = %q", list.OwnerID)
	}
	got, err := db.GetTodo(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CreatedBy != "user-1" || got.CompletedBy != "user-1" {
		t.Errorf("local todo = %+v", got)
	}
	kept, err := db.GetTodo(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.CreatedBy != "other" {
		t.Errorf("owned todo was reassigned: %q", kept.CreatedBy)
	}

	ops := pendingOps(t, db)
	if len(ops) != 4 {
		t.Fatalf("ops = %v", ops)
	}
	if ops[0].Table != "lists" || ops[0].Data["owner_id"] != "user-1" {
		t.Errorf("list put = %v", ops[0].Data)
	}
	if ops[1].Data["created_by"] != "user-1" {
		t.Errorf("todo put = %v", ops[1].Data)
	}
	if ops[2].Op != tdsync.OpPatch || ops[2].Data["completed_by"] != "user-1" {
		t.Errorf("complete patch = %v", ops[2].Data)
	}
	if ops[3].Data["created_by"] != "other" || ops[3].Data["list_id"] != first.ListID {
		t.Errorf("second todo put = %v", ops[3].Data)
	}
}

func TestClaimUnownedLeavesReopenPatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	todo, err := db.AddTodo(ctx, NewTodo{Description: "x", CreatedBy: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SetCompleted(ctx, todo.ID, true, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SetCompleted(ctx, todo.ID, false, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ClaimUnowned(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	ops := pendingOps(t, db)
	reopen := ops[len(ops)-1]
	if reopen.Data["completed"] != false || reopen.Data["completed_by"] != nil {
		t.Errorf("reopen patch = %v, want completed_by null", reopen.Data)
	}
}

func TestClaimUnownedRequiresUser(t *testing.T) {
	if _, err := newTestDB(t).ClaimUnowned(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
