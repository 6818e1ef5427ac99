package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/marcus/tdo/internal/connector"
	"github.com/marcus/tdo/internal/db"
)

func TestErrorLine(t *testing.T) {
	plain := errorLine(errors.New("boom"))
	if plain != "Error: boom" {
		t.Errorf("errorLine(plain) = %q", plain)
	}

	wrapped := fmt.Errorf("upload: %w", &connector.CredentialsUnavailableError{Reason: "not signed in"})
	got := errorLine(wrapped)
	if !strings.Contains(got, "not signed in") || !strings.Contains(got, "tdo auth login") {
		t.Errorf("errorLine(credentials) = %q, want login hint", got)
	}
}

func TestFailedCount(t *testing.T) {
	if err := failedCount(0, 3); err != nil {
		t.Errorf("failedCount(0, 3) = %v, want nil", err)
	}
	err := failedCount(2, 3)
	if err == nil || err.Error() != "2 of 3 failed" {
		t.Errorf("failedCount(2, 3) = %v", err)
	}
}

func TestListHint(t *testing.T) {
	ctx := context.Background()
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer database.Close()

	for _, name := range []string{"Groceries", "Work"} {
		if _, err := database.CreateList(ctx, name, ""); err != nil {
			t.Fatalf("CreateList(%s): %v", name, err)
		}
	}

	_, err = database.GetList(ctx, "Grocerys")
	hinted := listHint(ctx, database, "Grocerys", err)
	if !errors.Is(hinted, db.ErrNotFound) {
		t.Fatalf("hint lost the sentinel: %v", hinted)
	}
	if !strings.Contains(hinted.Error(), "did you mean Groceries?") {
		t.Errorf("got %q, want a suggestion", hinted)
	}

	other := errors.New("disk full")
	if got := listHint(ctx, database, "Grocerys", other); got != other {
		t.Errorf("non-lookup errors should pass through, got %v", got)
	}
}
