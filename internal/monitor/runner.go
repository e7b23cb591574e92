package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/subwatch/internal/metrics"
	"github.com/hitoshi/subwatch/internal/model"
	"github.com/hitoshi/subwatch/internal/repository"
)

// ContentSource はRedditからコンテンツを取得するインターフェース。
type ContentSource interface {
	// FetchRecentPosts はsubredditの新着投稿を新しい順に返す。
	FetchRecentPosts(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error)
	// FetchComments は投稿のコメントを平坦化して返す。
	FetchComments(ctx context.Context, postRedditID string, limit int) ([]model.CommentDraft, error)
}

// RunnerConfig は実行エグゼキューターの動作パラメータ。
type RunnerConfig struct {
	PostFetchLimit    int
	CommentPostLimit  int
	CommentFetchLimit int
	TrailingWindow    time.Duration
	RunTimeout        time.Duration
}

// Runner はモニター実行のエグゼキューター。
// 1回の実行は必ず実行記録（running → completed/failed）を残す。
// 同一モニターの実行は同時に1つまでで、2つ目の要求はエラーになる。
type Runner struct {
	source   ContentSource
	monitors repository.MonitorRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	runs     repository.RunRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      RunnerConfig

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRunner はRunnerを生成する。
func NewRunner(
	source ContentSource,
	monitors repository.MonitorRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	runs repository.RunRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg RunnerConfig,
) *Runner {
	return &Runner{
		source:   source,
		monitors: monitors,
		posts:    posts,
		comments: comments,
		runs:     runs,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}
}

// Execute はモニターを1回実行する。
// 対象モニターの検証、subredditごとの投稿・コメント取得とキーワード
// マッチング、保存、実行記録の終端化までを行う。subreddit単位のエラーは
// 実行を止めず、実行記録に "; " 連結で集約される。
func (r *Runner) Execute(ctx context.Context, monitorID string) (*model.RunResult, error) {
	if !r.acquire(monitorID) {
		return nil, model.NewRunInProgressError(monitorID)
	}
	defer r.release(monitorID)

	startedAt := time.Now()
	run := &model.MonitorRun{
		ID:        uuid.NewString(),
		MonitorID: monitorID,
		Status:    model.RunStatusRunning,
		StartedAt: startedAt,
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("実行記録の作成に失敗しました: %w", err)
	}

	// 実行は呼び出し元のキャンセル（スケジュール解除や置き換え）では
	// 中断されない。打ち切りはRunTimeoutの期限超過のみ。
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RunTimeout)
	defer cancel()

	mon, err := r.monitors.FindByID(runCtx, monitorID)
	if err != nil {
		r.finalize(ctx, run, model.RunStatusFailed, 0, 0, err.Error(), startedAt)
		return nil, fmt.Errorf("モニターの取得に失敗しました: %w", err)
	}
	if mon == nil {
		r.finalize(ctx, run, model.RunStatusFailed, 0, 0, "Monitor not found", startedAt)
		return nil, model.NewMonitorNotFoundError(monitorID)
	}
	if !mon.IsActive {
		r.finalize(ctx, run, model.RunStatusFailed, 0, 0, "Monitor is not active", startedAt)
		return nil, fmt.Errorf("モニターは無効化されています: %s", monitorID)
	}

	windowStart := startedAt.Add(-r.cfg.TrailingWindow)
	result := &model.RunResult{}

	for _, sub := range mon.Subreddits {
		if runCtx.Err() != nil {
			break
		}
		savedPosts, savedComments, err := r.checkSubreddit(runCtx, mon, sub, windowStart)
		result.PostsFound += savedPosts
		result.CommentsFound += savedComments
		if err != nil {
			r.logger.Warn("subredditのチェックに失敗しました",
				slog.String("monitor_id", monitorID),
				slog.String("subreddit", sub),
				slog.String("error", err.Error()),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("r/%s: %v", sub, err))
		}
	}

	if r.metrics != nil && len(result.Errors) > 0 {
		r.metrics.AddSubredditErrors(len(result.Errors))
	}

	// バリデーションを通過した実行はsubredditエラーの有無に関わらず
	// チェック済み時刻を進める
	if err := r.monitors.UpdateLastChecked(context.WithoutCancel(ctx), monitorID, startedAt); err != nil {
		r.logger.Warn("チェック済み時刻の更新に失敗しました",
			slog.String("monitor_id", monitorID),
			slog.String("error", err.Error()),
		)
	}

	status := model.RunStatusCompleted
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		status = model.RunStatusFailed
		result.Errors = append(result.Errors, "run timed out")
	}
	r.finalize(ctx, run, status, result.PostsFound, result.CommentsFound,
		strings.Join(result.Errors, "; "), startedAt)

	r.logger.Info("モニター実行が完了しました",
		slog.String("monitor_id", monitorID),
		slog.String("status", string(status)),
		slog.Int("posts_found", result.PostsFound),
		slog.Int("comments_found", result.CommentsFound),
		slog.Int("error_count", len(result.Errors)),
	)

	return result, nil
}

// checkSubreddit は1つのsubredditの投稿とコメントをチェックする。
// 途中でエラーが発生した場合も、それまでに保存した件数を返す。
func (r *Runner) checkSubreddit(ctx context.Context, mon *model.Monitor, subreddit string, windowStart time.Time) (int, int, error) {
	drafts, err := r.source.FetchRecentPosts(ctx, subreddit, r.cfg.PostFetchLimit)
	if err != nil {
		return 0, 0, err
	}

	savedPosts := 0
	for _, draft := range drafts {
		if draft.CreatedAt.Before(windowStart) {
			continue
		}
		matched := MatchKeywordsUnion(draft.Title, draft.Content, mon.Keywords)
		if len(matched) == 0 {
			continue
		}
		saved, err := r.savePost(ctx, mon.ID, draft, matched)
		if err != nil {
			return savedPosts, 0, err
		}
		if saved {
			savedPosts++
		}
	}

	// コメントは新着上位の投稿のみを対象にする（マッチの有無は問わない）
	commentTargets := drafts
	if len(commentTargets) > r.cfg.CommentPostLimit {
		commentTargets = commentTargets[:r.cfg.CommentPostLimit]
	}

	savedComments := 0
	for _, target := range commentTargets {
		comments, err := r.source.FetchComments(ctx, target.RedditID, r.cfg.CommentFetchLimit)
		if err != nil {
			return savedPosts, savedComments, err
		}
		for _, draft := range comments {
			if draft.CreatedAt.Before(windowStart) {
				continue
			}
			matched := MatchKeywords(draft.Content, mon.Keywords)
			if len(matched) == 0 {
				continue
			}
			saved, err := r.saveComment(ctx, mon.ID, draft, matched)
			if err != nil {
				return savedPosts, savedComments, err
			}
			if saved {
				savedComments++
			}
		}
	}

	return savedPosts, savedComments, nil
}

// savePost はマッチした投稿を保存する。
// 保存済みのReddit IDはスキップし、同時挿入レースによる一意制約違反も
// 保存済みとして扱う。
func (r *Runner) savePost(ctx context.Context, monitorID string, draft model.PostDraft, matched []string) (bool, error) {
	exists, err := r.posts.ExistsByRedditID(ctx, draft.RedditID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	post := &model.Post{
		ID:              uuid.NewString(),
		RedditID:        draft.RedditID,
		Title:           draft.Title,
		Content:         draft.Content,
		Author:          draft.Author,
		Subreddit:       draft.Subreddit,
		URL:             draft.URL,
		Permalink:       draft.Permalink,
		Score:           draft.Score,
		NumComments:     draft.NumComments,
		IsNSFW:          draft.IsNSFW,
		MatchedKeywords: matched,
		MonitorID:       monitorID,
		CreatedAt:       draft.CreatedAt,
		FoundAt:         time.Now(),
	}
	if err := r.posts.Create(ctx, post); err != nil {
		if repository.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// saveComment はマッチしたコメントを保存する。重複の扱いはsavePostと同じ。
func (r *Runner) saveComment(ctx context.Context, monitorID string, draft model.CommentDraft, matched []string) (bool, error) {
	exists, err := r.comments.ExistsByRedditID(ctx, draft.RedditID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	comment := &model.Comment{
		ID:              uuid.NewString(),
		RedditID:        draft.RedditID,
		Content:         draft.Content,
		Author:          draft.Author,
		Subreddit:       draft.Subreddit,
		PostRedditID:    draft.PostRedditID,
		Permalink:       draft.Permalink,
		Score:           draft.Score,
		IsNSFW:          draft.IsNSFW,
		MatchedKeywords: matched,
		MonitorID:       monitorID,
		CreatedAt:       draft.CreatedAt,
		FoundAt:         time.Now(),
	}
	if err := r.comments.Create(ctx, comment); err != nil {
		if repository.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// finalize は実行記録を終端状態に遷移させ、メトリクスを記録する。
// 呼び出し元のコンテキストがタイムアウト済みでも終端化は実行する。
func (r *Runner) finalize(ctx context.Context, run *model.MonitorRun, status model.RunStatus, postsFound, commentsFound int, errMsg string, startedAt time.Time) {
	completedAt := time.Now()
	run.Status = status
	run.PostsFound = postsFound
	run.CommentsFound = commentsFound
	run.ErrorMessage = errMsg
	run.CompletedAt = &completedAt

	if err := r.runs.UpdateResult(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Error("実行記録の終端化に失敗しました",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	if r.metrics != nil {
		r.metrics.ObserveRun(string(status), completedAt.Sub(startedAt))
		r.metrics.AddPostsFound(postsFound)
		r.metrics.AddCommentsFound(commentsFound)
	}
}

func (r *Runner) acquire(monitorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[monitorID]; ok {
		return false
	}
	r.inFlight[monitorID] = struct{}{}
	return true
}

func (r *Runner) release(monitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, monitorID)
}
