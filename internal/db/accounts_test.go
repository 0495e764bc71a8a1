package db

import (
	"context"
	"testing"

	"github.com/chatvault/chatvault/internal/testutil"
)

func TestGetOrCreateAccount(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	t.Run("creates new account", func(t *testing.T) {
		accountID, err := GetOrCreateAccount(ctx, pool, "alice@corp.example")
		if err != nil {
			t.Fatalf("GetOrCreateAccount failed: %v", err)
		}
		if accountID == "" {
			t.Fatal("Expected account ID to be set")
		}
	})

	t.Run("returns same id for existing account", func(t *testing.T) {
		first, err := GetOrCreateAccount(ctx, pool, "bob@corp.example")
		if err != nil {
			t.Fatalf("GetOrCreateAccount failed: %v", err)
		}

		second, err := GetOrCreateAccount(ctx, pool, "bob@corp.example")
		if err != nil {
			t.Fatalf("GetOrCreateAccount failed on second call: %v", err)
		}

		if first != second {
			t.Errorf("Expected same account ID, got %s and %s", first, second)
		}
	})
}

func TestAccountLastSynced(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	accountID, err := GetOrCreateAccount(ctx, pool, "carol@corp.example")
	if err != nil {
		t.Fatalf("GetOrCreateAccount failed: %v", err)
	}

	t.Run("nil before first sweep", func(t *testing.T) {
		lastSynced, err := GetAccountLastSynced(ctx, pool, accountID)
		if err != nil {
			t.Fatalf("GetAccountLastSynced failed: %v", err)
		}
		if lastSynced != nil {
			t.Errorf("Expected nil last synced time, got %v", lastSynced)
		}
	})

	t.Run("set after sweep completes", func(t *testing.T) {
		if err := SetAccountLastSynced(ctx, pool, accountID); err != nil {
			t.Fatalf("SetAccountLastSynced failed: %v", err)
		}

		lastSynced, err := GetAccountLastSynced(ctx, pool, accountID)
		if err != nil {
			t.Fatalf("GetAccountLastSynced failed: %v", err)
		}
		if lastSynced == nil {
			t.Fatal("Expected last synced time to be set")
		}
	})
}
