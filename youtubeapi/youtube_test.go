package youtubeapi

import (
	"context"
	"testing"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/replyt/config"
)

// mockTokenStore implements TokenStore for testing
type mockTokenStore struct {
	tokens map[string]tokenData
}

type tokenData struct {
	access  string
	refresh string
	expiry  time.Time
	scope   string
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]tokenData)}
}

func (m *mockTokenStore) UpsertOAuthToken(ctx context.Context, provider string, accessToken string, refreshToken string, expiry time.Time, scope string) error {
	m.tokens[provider] = tokenData{access: accessToken, refresh: refreshToken, expiry: expiry, scope: scope}
	return nil
}

func (m *mockTokenStore) GetOAuthToken(ctx context.Context, provider string) (string, string, time.Time, string, error) {
	if data, ok := m.tokens[provider]; ok {
		return data.access, data.refresh, data.expiry, data.scope, nil
	}
	return "", "", time.Time{}, "", nil
}

func testService(t *testing.T, cfg *config.Config, store TokenStore) *Service {
	t.Helper()
	svc, err := New(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc
}

func TestNewScopeParsing(t *testing.T) {
	tests := []struct {
		name       string
		scopesConf string
		wantLen    int
	}{
		{"default single scope", "", 1},
		{"comma separated", "scope1,scope2,scope3", 3},
		{"space separated", "scope1 scope2 scope3", 3},
		{"mixed separators", "scope1, scope2 scope3", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{YTAPIKey: "key", YTScopes: tt.scopesConf}
			svc := testService(t, cfg, newMockTokenStore())
			if len(svc.oauth.Scopes) != tt.wantLen {
				t.Errorf("scopes length = %d, want %d", len(svc.oauth.Scopes), tt.wantLen)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	full := &config.Config{YTAPIKey: "key", YTClientID: "id", YTClientSecret: "secret", YTRefreshToken: "rt"}
	svc := testService(t, full, newMockTokenStore())
	if !svc.CanWrite() {
		t.Error("complete bundle should be write-capable")
	}

	readOnly := &config.Config{YTAPIKey: "key", YTClientID: "id"}
	svc = testService(t, readOnly, newMockTokenStore())
	if svc.CanWrite() {
		t.Error("partial bundle should be read-only")
	}
}

func TestSeedToken(t *testing.T) {
	cfg := &config.Config{YTAPIKey: "key", YTClientID: "id", YTClientSecret: "secret", YTRefreshToken: "env-rt", YTAccessToken: "env-at"}
	store := newMockTokenStore()
	svc := testService(t, cfg, store)

	if err := svc.SeedToken(context.Background()); err != nil {
		t.Fatalf("SeedToken: %v", err)
	}
	if got := store.tokens[provider].refresh; got != "env-rt" {
		t.Errorf("stored refresh = %q, want env-rt", got)
	}

	// A second call must not clobber a stored (possibly newer) token.
	store.tokens[provider] = tokenData{access: "newer-at", refresh: "newer-rt", expiry: time.Now().Add(time.Hour)}
	if err := svc.SeedToken(context.Background()); err != nil {
		t.Fatalf("SeedToken second call: %v", err)
	}
	if got := store.tokens[provider].refresh; got != "newer-rt" {
		t.Errorf("stored refresh after reseed = %q, want newer-rt", got)
	}
}

func TestSeedTokenReadOnlyIsNoop(t *testing.T) {
	cfg := &config.Config{YTAPIKey: "key"}
	store := newMockTokenStore()
	svc := testService(t, cfg, store)
	if err := svc.SeedToken(context.Background()); err != nil {
		t.Fatalf("SeedToken: %v", err)
	}
	if len(store.tokens) != 0 {
		t.Error("read-only service should not seed tokens")
	}
}

func TestRefreshIfNeededValidToken(t *testing.T) {
	cfg := &config.Config{YTAPIKey: "key", YTClientID: "id", YTClientSecret: "secret", YTRefreshToken: "rt"}
	store := newMockTokenStore()
	svc := testService(t, cfg, store)

	future := time.Now().Add(10 * time.Minute)
	_ = store.UpsertOAuthToken(context.Background(), provider, "valid-token", "rt", future, "")

	tok, err := svc.refreshIfNeeded(context.Background())
	if err != nil {
		t.Fatalf("refreshIfNeeded: %v", err)
	}
	if tok.AccessToken != "valid-token" {
		t.Errorf("AccessToken = %q, want valid-token", tok.AccessToken)
	}
}

func TestRefreshIfNeededNoToken(t *testing.T) {
	cfg := &config.Config{YTAPIKey: "key", YTClientID: "id", YTClientSecret: "secret"}
	svc := testService(t, cfg, newMockTokenStore())
	if _, err := svc.refreshIfNeeded(context.Background()); err == nil {
		t.Error("expected error when no refresh token anywhere")
	}
}

func thread(id, videoID, text, published string, likeCount int64, replies ...*yt.Comment) *yt.CommentThread {
	return &yt.CommentThread{
		Snippet: &yt.CommentThreadSnippet{
			TopLevelComment: &yt.Comment{
				Id: id,
				Snippet: &yt.CommentSnippet{
					AuthorDisplayName: "someone",
					TextDisplay:       text,
					TextOriginal:      text,
					PublishedAt:       published,
					UpdatedAt:         published,
					LikeCount:         likeCount,
				},
			},
			TotalReplyCount: int64(len(replies)),
		},
		Replies: &yt.CommentThreadReplies{Comments: replies},
	}
}

func TestFlattenThreads(t *testing.T) {
	reply := &yt.Comment{
		Id: "r1",
		Snippet: &yt.CommentSnippet{
			AuthorDisplayName: "other",
			TextOriginal:      "me too",
			PublishedAt:       "2024-05-01T11:00:00Z",
			ParentId:          "c1",
		},
	}
	threads := []*yt.CommentThread{
		thread("c1", "v1", "Great video!", "2024-05-01T10:00:00Z", 3, reply),
		thread("c2", "v1", "nice", "2024-05-02T10:00:00Z", 0),
	}

	got := flattenThreads("v1", threads)
	if len(got) != 3 {
		t.Fatalf("flattened %d comments, want 3", len(got))
	}
	if got[0].ID != "c1" || got[0].ParentID != "" || got[0].ReplyCount != 1 {
		t.Errorf("top-level comment malformed: %+v", got[0])
	}
	if got[1].ID != "r1" || got[1].ParentID != "c1" {
		t.Errorf("reply should carry parent id: %+v", got[1])
	}
	if got[0].VideoID != "v1" || got[1].VideoID != "v1" {
		t.Error("video id not propagated")
	}
	if got[0].LikeCount != 3 {
		t.Errorf("like count = %d, want 3", got[0].LikeCount)
	}
	want, _ := time.Parse(time.RFC3339, "2024-05-01T10:00:00Z")
	if !got[0].PublishedAt.Equal(want) {
		t.Errorf("published at = %v, want %v", got[0].PublishedAt, want)
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	comments := []Comment{
		{ID: "old", PublishedAt: base},
		{ID: "newest", PublishedAt: base.Add(2 * time.Hour)},
		{ID: "mid", PublishedAt: base.Add(time.Hour)},
	}
	sortNewestFirst(comments)
	wantOrder := []string{"newest", "mid", "old"}
	for i, want := range wantOrder {
		if comments[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, comments[i].ID, want)
		}
	}
}
