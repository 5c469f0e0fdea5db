package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"database/sql"

	"github.com/onnwee/replyt/db"
	"github.com/onnwee/replyt/testutil"
)

func seedToken(t *testing.T, dbx *sql.DB, provider, access, refresh string, expiry time.Time, scope string) {
	t.Helper()
	if _, err := dbx.Exec(`DELETE FROM oauth_tokens WHERE provider=$1`, provider); err != nil {
		t.Fatalf("clear token row: %v", err)
	}
	if err := db.UpsertOAuthToken(context.Background(), dbx, provider, access, refresh, expiry, scope); err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestStartRefresherOutsideWindow(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	seedToken(t, dbx, "refresher-outside", "access123", "refresh456", time.Now().Add(1*time.Hour), "scope1")

	refreshCalled := false
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled = true
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "scope1", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	StartRefresher(ctx, dbx, "refresher-outside", 50*time.Millisecond, 30*time.Minute, fn)
	<-ctx.Done()

	if refreshCalled {
		t.Error("refresh ran for a token that expires in 1 hour with a 30 minute window")
	}
}

func TestStartRefresherWithinWindow(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	seedToken(t, dbx, "refresher-within", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "scope1")

	refreshed := make(chan struct{}, 1)
	newExpiry := time.Now().Add(2 * time.Hour)
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if refreshToken != "old-refresh" {
			t.Errorf("refresh called with token %q, want old-refresh", refreshToken)
		}
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return "new-access", "new-refresh", newExpiry, "scope2", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefresher(ctx, dbx, "refresher-within", 50*time.Millisecond, 15*time.Minute, fn)

	// The loop carries scheduling and pre-refresh jitter, so allow a wide margin.
	select {
	case <-refreshed:
	case <-time.After(10 * time.Second):
		t.Fatal("refresh never ran for a token expiring within the window")
	}
	// Let the persist complete before reading back.
	time.Sleep(200 * time.Millisecond)
	cancel()

	access, refresh, _, scope, err := db.GetOAuthToken(context.Background(), dbx, "refresher-within")
	if err != nil {
		t.Fatalf("read updated token: %v", err)
	}
	if access != "new-access" || refresh != "new-refresh" || scope != "scope2" {
		t.Errorf("token after refresh = (%q, %q, %q), want (new-access, new-refresh, scope2)", access, refresh, scope)
	}
}

func TestStartRefresherRefreshError(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	seedToken(t, dbx, "refresher-err", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "scope1")

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "", "", time.Time{}, "", errors.New("refresh failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	StartRefresher(ctx, dbx, "refresher-err", 50*time.Millisecond, 15*time.Minute, fn)
	<-ctx.Done()

	access, _, _, _, err := db.GetOAuthToken(context.Background(), dbx, "refresher-err")
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if access != "old-access" {
		t.Errorf("token updated after refresh error: access=%q", access)
	}
}

func TestStartRefresherNoRefreshToken(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	seedToken(t, dbx, "refresher-nort", "access123", "", time.Now().Add(5*time.Minute), "scope1")

	refreshCalled := false
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		refreshCalled = true
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "scope1", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	StartRefresher(ctx, dbx, "refresher-nort", 50*time.Millisecond, 15*time.Minute, fn)
	<-ctx.Done()

	if refreshCalled {
		t.Error("refresh ran without a refresh token")
	}
}

func TestStartRefresherCancellation(t *testing.T) {
	dbx := testutil.SetupTestDB(t)

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "access", "refresh", time.Now().Add(1 * time.Hour), "scope", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	StartRefresher(ctx, dbx, "refresher-cancel", 1*time.Second, 15*time.Minute, fn)
	cancel()
	time.Sleep(50 * time.Millisecond)
	// Reaching here without a hang means the goroutine honored cancellation.
}

func TestStartRefresherPreservesRefreshTokenAndScope(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	seedToken(t, dbx, "refresher-keep", "old-access", "original-refresh", time.Now().Add(5*time.Minute), "scope1")

	// Refresh responses may omit the rotated refresh token and scope.
	refreshed := make(chan struct{}, 1)
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return "new-access", "", time.Now().Add(2 * time.Hour), "", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefresher(ctx, dbx, "refresher-keep", 50*time.Millisecond, 15*time.Minute, fn)
	select {
	case <-refreshed:
	case <-time.After(10 * time.Second):
		t.Fatal("refresh never ran")
	}
	time.Sleep(200 * time.Millisecond)
	cancel()

	_, refresh, _, scope, err := db.GetOAuthToken(context.Background(), dbx, "refresher-keep")
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if refresh != "original-refresh" {
		t.Errorf("refresh token = %q, want original preserved", refresh)
	}
	if scope != "scope1" {
		t.Errorf("scope = %q, want original preserved", scope)
	}
}
