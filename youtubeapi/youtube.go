// Package youtubeapi wraps the YouTube Data API for the reply pipeline: listing
// a channel's recent videos and their comments with the API key, and posting
// replies through the OAuth write path. Tokens are persisted via the provided
// TokenStore interface so they can be refreshed and reused across restarts.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/replyt/config"
)

const provider = "youtube"

// Bounds for the channel-wide comment sweep, matching the upstream API page caps.
const (
	recentVideoWindow   = 20
	commentsPerVideoCap = 50
)

type TokenStore interface {
	UpsertOAuthToken(ctx context.Context, provider string, accessToken string, refreshToken string, expiry time.Time, scope string) error
	GetOAuthToken(ctx context.Context, provider string) (accessToken string, refreshToken string, expiry time.Time, scope string, err error)
}

// Video is one entry of a channel's upload listing.
type Video struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// Comment is a single comment or reply as fetched from the platform.
// A non-empty ParentID marks a reply to a top-level comment.
type Comment struct {
	ID              string
	VideoID         string
	Author          string
	AuthorChannelID string
	TextDisplay     string
	TextOriginal    string
	PublishedAt     time.Time
	UpdatedAt       time.Time
	LikeCount       int64
	ReplyCount      int64
	ParentID        string
}

// Service talks to the YouTube Data API. The read client is keyed by the API
// key; the write client is built per call from the stored OAuth token so a
// refreshed token is always picked up.
type Service struct {
	cfg      *config.Config
	db       TokenStore
	oauth    *oauth2.Config
	read     *yt.Service
	canWrite bool
}

// New builds a Service. opts are appended to the read client options (tests
// override the endpoint through them).
func New(ctx context.Context, cfg *config.Config, ts TokenStore, opts ...option.ClientOption) (*Service, error) {
	scopes := []string{"https://www.googleapis.com/auth/youtube.force-ssl"}
	if cfg.YTScopes != "" {
		// allow comma or space separated
		s := strings.ReplaceAll(cfg.YTScopes, ",", " ")
		if fields := strings.Fields(s); len(fields) > 0 {
			scopes = fields
		}
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.YTClientID,
		ClientSecret: cfg.YTClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.YTRedirectURI,
		Scopes:       scopes,
	}
	readOpts := append([]option.ClientOption{option.WithAPIKey(cfg.YTAPIKey)}, opts...)
	read, err := yt.NewService(ctx, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("youtube read client: %w", err)
	}
	return &Service{cfg: cfg, db: ts, oauth: oauthCfg, read: read, canWrite: cfg.HasWriteCredentials()}, nil
}

// CanWrite reports whether a complete OAuth bundle was present at construction.
// Pure predicate; no network call.
func (s *Service) CanWrite() bool { return s.canWrite }

// SeedToken stores the env-provided refresh token when no row exists yet, so the
// background refresher owns freshness from then on. Refreshed tokens are always
// persisted; the process never depends on the env copy after startup.
func (s *Service) SeedToken(ctx context.Context) error {
	if !s.canWrite {
		return nil
	}
	_, refresh, _, _, err := s.db.GetOAuthToken(ctx, provider)
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if refresh != "" {
		return nil
	}
	// Env access token may be absent or stale; an expired entry forces an
	// immediate refresh on first use.
	expiry := time.Now().Add(-time.Minute)
	if err := s.db.UpsertOAuthToken(ctx, provider, s.cfg.YTAccessToken, s.cfg.YTRefreshToken, expiry, strings.Join(s.oauth.Scopes, " ")); err != nil {
		return fmt.Errorf("seed token: %w", err)
	}
	slog.Info("seeded youtube oauth token from env", slog.String("component", "youtubeapi"))
	return nil
}

// ListRecentVideos returns up to limit of the channel's videos, newest first.
func (s *Service) ListRecentVideos(ctx context.Context, channelID string, limit int64) ([]Video, error) {
	if limit <= 0 {
		limit = recentVideoWindow
	}
	res, err := s.read.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Type("video").
		Order("date").
		MaxResults(limit).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list channel videos: %w", err)
	}
	out := make([]Video, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		out = append(out, Video{ID: item.Id.VideoId, Title: item.Snippet.Title, PublishedAt: published})
	}
	return out, nil
}

// ListComments returns up to limit comment threads of a video flattened into
// comments, top-level entries first within each thread, replies carrying their
// parent's id. A video with comments disabled surfaces as an error here; the
// channel-wide sweep tolerates that per video.
func (s *Service) ListComments(ctx context.Context, videoID string, limit int64) ([]Comment, error) {
	if limit <= 0 {
		limit = commentsPerVideoCap
	}
	res, err := s.read.CommentThreads.List([]string{"snippet", "replies"}).
		VideoId(videoID).
		Order("time").
		MaxResults(limit).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list comments for video %s: %w", videoID, err)
	}
	return flattenThreads(videoID, res.Items), nil
}

// ListNewComments sweeps the channel's recent-video window and returns all
// comments flattened and sorted newest-published-first. Per-video failures
// (comments disabled, transient errors) are logged and swallowed so one broken
// video never aborts the whole fetch.
func (s *Service) ListNewComments(ctx context.Context, channelID string) ([]Comment, error) {
	videos, err := s.ListRecentVideos(ctx, channelID, recentVideoWindow)
	if err != nil {
		return nil, err
	}
	var all []Comment
	for _, v := range videos {
		comments, err := s.ListComments(ctx, v.ID, commentsPerVideoCap)
		if err != nil {
			slog.Warn("skipping video comments", slog.String("video_id", v.ID), slog.Any("err", err), slog.String("component", "youtubeapi"))
			continue
		}
		all = append(all, comments...)
	}
	sortNewestFirst(all)
	return all, nil
}

// PostReply attempts the authenticated write. It returns false rather than an
// error on failure: the pipeline records a false return as the comment's error
// status and moves on. Must not be called when CanWrite is false.
func (s *Service) PostReply(ctx context.Context, commentID, text string) bool {
	if !s.canWrite {
		slog.Error("post reply called without oauth credentials", slog.String("comment_id", commentID), slog.String("component", "youtubeapi"))
		return false
	}
	svc, err := s.writeClient(ctx)
	if err != nil {
		slog.Error("youtube write client", slog.Any("err", err), slog.String("comment_id", commentID), slog.String("component", "youtubeapi"))
		return false
	}
	reply := &yt.Comment{Snippet: &yt.CommentSnippet{ParentId: commentID, TextOriginal: text}}
	if _, err := svc.Comments.Insert([]string{"snippet"}, reply).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
			slog.Error("post reply auth failure; oauth token may be expired or lack force-ssl scope",
				slog.Int("code", gerr.Code), slog.String("comment_id", commentID), slog.String("component", "youtubeapi"))
		} else {
			slog.Error("post reply failed", slog.Any("err", err), slog.String("comment_id", commentID), slog.String("component", "youtubeapi"))
		}
		return false
	}
	slog.Info("posted reply", slog.String("comment_id", commentID), slog.String("component", "youtubeapi"))
	return true
}

func (s *Service) writeClient(ctx context.Context) (*yt.Service, error) {
	tok, err := s.refreshIfNeeded(ctx)
	if err != nil {
		return nil, err
	}
	client := s.oauth.Client(ctx, tok)
	return yt.NewService(ctx, option.WithHTTPClient(client))
}

func (s *Service) refreshIfNeeded(ctx context.Context) (*oauth2.Token, error) {
	access, refresh, expiry, scope, err := s.db.GetOAuthToken(ctx, provider)
	if err != nil {
		return nil, err
	}
	if refresh == "" {
		refresh = s.cfg.YTRefreshToken
	}
	if refresh == "" {
		return nil, errors.New("no youtube refresh token stored")
	}
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: expiry}
	if tok.AccessToken != "" && time.Until(tok.Expiry) > 2*time.Minute {
		return tok, nil
	}
	newTok, err := s.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh youtube token: %w", err)
	}
	if err := s.db.UpsertOAuthToken(ctx, provider, newTok.AccessToken, newTok.RefreshToken, newTok.Expiry, scope); err != nil {
		slog.Warn("persist refreshed token", slog.Any("err", err), slog.String("component", "youtubeapi"))
	}
	return newTok, nil
}

// flattenThreads converts API comment threads into the flat Comment form the
// pipeline consumes: each thread's top-level comment followed by its replies.
func flattenThreads(videoID string, threads []*yt.CommentThread) []Comment {
	var out []Comment
	for _, thread := range threads {
		if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
			continue
		}
		top := thread.Snippet.TopLevelComment
		c := fromAPIComment(videoID, top)
		c.ReplyCount = thread.Snippet.TotalReplyCount
		out = append(out, c)
		if thread.Replies == nil {
			continue
		}
		for _, reply := range thread.Replies.Comments {
			out = append(out, fromAPIComment(videoID, reply))
		}
	}
	return out
}

func fromAPIComment(videoID string, c *yt.Comment) Comment {
	out := Comment{ID: c.Id, VideoID: videoID}
	if c.Snippet == nil {
		return out
	}
	out.Author = c.Snippet.AuthorDisplayName
	if c.Snippet.AuthorChannelId != nil {
		out.AuthorChannelID = c.Snippet.AuthorChannelId.Value
	}
	out.TextDisplay = c.Snippet.TextDisplay
	out.TextOriginal = c.Snippet.TextOriginal
	out.PublishedAt, _ = time.Parse(time.RFC3339, c.Snippet.PublishedAt)
	out.UpdatedAt, _ = time.Parse(time.RFC3339, c.Snippet.UpdatedAt)
	out.LikeCount = c.Snippet.LikeCount
	out.ParentID = c.Snippet.ParentId
	return out
}

func sortNewestFirst(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].PublishedAt.After(comments[j].PublishedAt)
	})
}
