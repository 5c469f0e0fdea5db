// Package bot ties the comment store, the YouTube adapter and the reply
// generator into one processing cycle: fetch, dedup, filter, generate, post or
// simulate, record, report. It owns the store handle and the cycle lifecycle;
// the collaborators stay stateless beyond their cached auth.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/replyt/config"
	"github.com/onnwee/replyt/db"
	"github.com/onnwee/replyt/openaiapi"
	"github.com/onnwee/replyt/telemetry"
	"github.com/onnwee/replyt/youtubeapi"
)

// ErrCycleRunning is returned when a cycle trigger overlaps an in-flight cycle.
// Overlap would break the single-writer assumption on the store, so a
// concurrent trigger is rejected instead of queued.
var ErrCycleRunning = errors.New("processing cycle already running")

// Store is the persistence capability the orchestrator needs. Implemented by
// db.Store; tests substitute an in-memory double.
type Store interface {
	Init(ctx context.Context) error
	IsProcessed(ctx context.Context, id string) (bool, error)
	InsertPending(ctx context.Context, rec db.ProcessedRecord) error
	UpdateStatus(ctx context.Context, id, status, replyText string) error
	CountProcessed(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	Heartbeat(ctx context.Context, key string) error
	Close() error
}

// Source lists comments and performs the authenticated write. Implemented by
// youtubeapi.Service.
type Source interface {
	ListNewComments(ctx context.Context, channelID string) ([]youtubeapi.Comment, error)
	CanWrite() bool
	PostReply(ctx context.Context, commentID, text string) bool
}

// Generator decides eligibility and produces reply text. Implemented by
// openaiapi.Client.
type Generator interface {
	Eligible(comment youtubeapi.Comment) bool
	Generate(ctx context.Context, comment youtubeapi.Comment, videoTitle string) (openaiapi.Reply, error)
}

// Stats is the reporting surface consumed by the HTTP layer.
type Stats struct {
	TotalProcessed   int            `json:"total_processed"`
	ByStatus         map[string]int `json:"by_status"`
	CanPost          bool           `json:"can_post"`
	CheckInterval    string         `json:"check_interval"`
	MaxRepliesPerRun int            `json:"max_replies_per_run"`
	ReplyStyle       string         `json:"reply_style"`
}

// Service is the pipeline orchestrator.
type Service struct {
	cfg    *config.Config
	store  Store
	source Source
	gen    Generator

	initMu      sync.Mutex
	initialized bool

	cycleMu sync.Mutex
}

// New wires the orchestrator. The config value is read-only from here on.
func New(cfg *config.Config, store Store, source Source, gen Generator) *Service {
	return &Service{cfg: cfg, store: store, source: source, gen: gen}
}

// Initialize prepares the store schema and logs the operating mode. Idempotent;
// a no-op after the first success.
func (s *Service) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	s.initialized = true
	if s.source.CanWrite() {
		slog.Info("bot initialized: full mode (can post replies)", slog.String("component", "bot"))
	} else {
		slog.Info("bot initialized: read-only mode (replies will be simulated)", slog.String("component", "bot"))
	}
	return nil
}

// RunCycle executes one processing cycle. A concurrent call while a cycle is in
// flight returns ErrCycleRunning. Fetch and store-availability failures abort
// the cycle (the next tick retries); everything per-comment is contained.
func (s *Service) RunCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrCycleRunning
	}
	defer s.cycleMu.Unlock()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	start := time.Now()
	telemetry.CyclesTotal.Inc()
	_ = s.store.Heartbeat(ctx, "job_reply_cycle_last")
	logger := slog.Default().With(slog.String("component", "bot"))

	comments, err := s.source.ListNewComments(ctx, s.cfg.YTChannelID)
	if err != nil {
		return fmt.Errorf("fetch comments: %w", err)
	}
	telemetry.CommentsFetched.Add(float64(len(comments)))

	fresh := make([]youtubeapi.Comment, 0, len(comments))
	for _, c := range comments {
		seen, err := s.store.IsProcessed(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("dedup check for %s: %w", c.ID, err)
		}
		if !seen {
			fresh = append(fresh, c)
		}
	}
	telemetry.SetNewComments(len(fresh))
	logger.Info("cycle fetch complete", slog.Int("fetched", len(comments)), slog.Int("new", len(fresh)))

	if len(fresh) == 0 {
		return nil
	}
	if !s.source.CanWrite() {
		logger.Info("read-only mode: replies will be recorded but not posted")
	}
	// Recency bias: the list arrives newest first, so under load the freshest
	// comments win over backlog.
	if len(fresh) > s.cfg.MaxRepliesPerRun {
		fresh = fresh[:s.cfg.MaxRepliesPerRun]
	}

	processed := 0
	for _, c := range fresh {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processComment(ctx, c)
		processed++
		telemetry.CommentsProcessed.Inc()
		// Fixed pause between comments to stay under upstream rate limits.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ReplyDelay):
		}
	}

	dur := time.Since(start)
	telemetry.CycleDuration.Observe(dur.Seconds())
	total, err := s.store.CountProcessed(ctx)
	if err != nil {
		logger.Warn("count processed", slog.Any("err", err))
	}
	logger.Info("cycle complete", slog.Int("processed", processed), slog.Int("total_processed", total), slog.Duration("duration", dur))
	return nil
}

// processComment drives one comment through pending to its terminal status.
// Nothing here may abort the cycle for the remaining comments; failures are
// recorded on the comment's own row.
func (s *Service) processComment(ctx context.Context, c youtubeapi.Comment) {
	logger := slog.Default().With(slog.String("comment_id", c.ID), slog.String("video_id", c.VideoID), slog.String("component", "bot"))

	rec := db.ProcessedRecord{ID: c.ID, VideoID: c.VideoID, ProcessedAt: time.Now().UTC(), Status: db.StatusPending}
	if err := s.store.InsertPending(ctx, rec); err != nil {
		// Includes ErrConflict, which the dedup pass should have prevented;
		// either way this comment cannot be safely processed now.
		logger.Error("record pending", slog.Any("err", err))
		return
	}

	if !s.gen.Eligible(c) {
		telemetry.CommentsSkipped.Inc()
		if err := s.store.UpdateStatus(ctx, c.ID, db.StatusSkipped, ""); err != nil {
			logger.Error("mark skipped", slog.Any("err", err))
		}
		logger.Info("skipped comment (filtered out)")
		return
	}

	genStart := time.Now()
	reply, err := s.gen.Generate(ctx, c, "")
	telemetry.GenerationDuration.Observe(time.Since(genStart).Seconds())
	if err != nil {
		telemetry.RepliesFailed.Inc()
		logger.Error("generate reply", slog.Any("err", err))
		s.markError(ctx, c.ID, "", logger)
		return
	}

	if !s.source.CanWrite() {
		telemetry.RepliesSimulated.Inc()
		if err := s.store.UpdateStatus(ctx, c.ID, db.StatusReplied, reply.Content); err != nil {
			logger.Error("record simulated reply", slog.Any("err", err))
			return
		}
		logger.Info("simulated reply (read-only mode)", slog.String("reply", reply.Content))
		return
	}

	if ok := s.source.PostReply(ctx, c.ID, reply.Content); !ok {
		telemetry.RepliesFailed.Inc()
		logger.Warn("post reply failed; recording error status")
		// Keep the generated text for audit even though the post failed.
		s.markError(ctx, c.ID, reply.Content, logger)
		return
	}
	telemetry.RepliesPosted.Inc()
	if err := s.store.UpdateStatus(ctx, c.ID, db.StatusReplied, reply.Content); err != nil {
		logger.Error("record reply", slog.Any("err", err))
		return
	}
	logger.Info("replied to comment", slog.String("author", c.Author))
}

func (s *Service) markError(ctx context.Context, id, replyText string, logger *slog.Logger) {
	if err := s.store.UpdateStatus(ctx, id, db.StatusError, replyText); err != nil {
		logger.Error("mark error", slog.Any("err", err))
	}
}

// Stats returns the cumulative counts and configuration summary for display.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.Initialize(ctx); err != nil {
		return Stats{}, err
	}
	total, err := s.store.CountProcessed(ctx)
	if err != nil {
		return Stats{}, err
	}
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalProcessed:   total,
		ByStatus:         byStatus,
		CanPost:          s.source.CanWrite(),
		CheckInterval:    s.cfg.CheckInterval.String(),
		MaxRepliesPerRun: s.cfg.MaxRepliesPerRun,
		ReplyStyle:       s.cfg.ReplyStyle,
	}, nil
}

// Close releases the store handle. A cycle in flight is allowed to finish; the
// scheduler stops invoking new ones before shutdown calls this.
func (s *Service) Close() error {
	slog.Info("shutting down bot", slog.String("component", "bot"))
	return s.store.Close()
}
