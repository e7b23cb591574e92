package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/subwatch/internal/metrics"
	"github.com/hitoshi/subwatch/internal/model"
)

func testRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PostFetchLimit:    50,
		CommentPostLimit:  10,
		CommentFetchLimit: 50,
		TrailingWindow:    time.Hour,
		RunTimeout:        time.Minute,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func activeMonitor() *model.Monitor {
	return &model.Monitor{
		ID:            "mon-1",
		UserID:        "user-1",
		Name:          "Go watch",
		Subreddits:    []string{"golang"},
		Keywords:      []string{"generics"},
		CheckInterval: 5,
		IsActive:      true,
	}
}

func TestExecuteSavesMatchedContent(t *testing.T) {
	now := time.Now()
	mon := activeMonitor()

	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			return []model.PostDraft{
				{RedditID: "p1", Title: "Generics in practice", Content: "examples", CreatedAt: now},
				{RedditID: "p2", Title: "Unrelated post", Content: "nothing", CreatedAt: now},
			}, nil
		},
		FetchCommentsFunc: func(ctx context.Context, postRedditID string, limit int) ([]model.CommentDraft, error) {
			return []model.CommentDraft{
				{RedditID: "c1", Content: "I love generics", PostRedditID: postRedditID, CreatedAt: now},
				{RedditID: "c2", Content: "off topic", PostRedditID: postRedditID, CreatedAt: now},
			}, nil
		},
	}

	var savedPosts []*model.Post
	var savedComments []*model.Comment
	var finalRun *model.MonitorRun
	var lastChecked time.Time

	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
		UpdateLastCheckedFunc: func(ctx context.Context, id string, checkedAt time.Time) error {
			lastChecked = checkedAt
			return nil
		},
	}
	posts := &mockPostRepo{
		CreateFunc: func(ctx context.Context, p *model.Post) error {
			savedPosts = append(savedPosts, p)
			return nil
		},
	}
	seenComments := map[string]bool{}
	comments := &mockCommentRepo{
		ExistsByRedditIDFunc: func(ctx context.Context, redditID string) (bool, error) {
			return seenComments[redditID], nil
		},
		CreateFunc: func(ctx context.Context, c *model.Comment) error {
			seenComments[c.RedditID] = true
			savedComments = append(savedComments, c)
			return nil
		},
	}
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			finalRun = run
			return nil
		},
	}

	runner := NewRunner(source, monitors, posts, comments, runs, metrics.New(), testLogger(), testRunnerConfig())

	result, err := runner.Execute(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.PostsFound != 1 {
		t.Errorf("保存投稿数が不正です: got %d, want 1", result.PostsFound)
	}
	// c1は2つの投稿のコメントとして返るが、2回目は重複排除される
	if result.CommentsFound != 1 {
		t.Errorf("保存コメント数が不正です: got %d, want 1", result.CommentsFound)
	}
	if len(result.Errors) != 0 {
		t.Errorf("エラーは発生しないべきです: %v", result.Errors)
	}

	if len(savedPosts) != 1 || savedPosts[0].RedditID != "p1" {
		t.Fatalf("保存された投稿が不正です: %+v", savedPosts)
	}
	if got := savedPosts[0].MatchedKeywords; len(got) != 1 || got[0] != "generics" {
		t.Errorf("マッチキーワードが不正です: %v", got)
	}
	if savedPosts[0].MonitorID != "mon-1" {
		t.Errorf("MonitorIDが不正です: %s", savedPosts[0].MonitorID)
	}
	if savedPosts[0].FoundAt.IsZero() {
		t.Error("FoundAtが設定されていません")
	}

	if finalRun == nil {
		t.Fatal("実行記録が終端化されていません")
	}
	if finalRun.Status != model.RunStatusCompleted {
		t.Errorf("実行ステータスが不正です: %s", finalRun.Status)
	}
	if finalRun.CompletedAt == nil {
		t.Error("CompletedAtが設定されていません")
	}
	if lastChecked.IsZero() {
		t.Error("last_checkedが更新されていません")
	}
}

func TestExecuteMonitorNotFound(t *testing.T) {
	var finalRun *model.MonitorRun
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			finalRun = run
			return nil
		},
	}
	runner := NewRunner(&mockContentSource{}, &mockMonitorRepo{}, &mockPostRepo{}, &mockCommentRepo{},
		runs, nil, testLogger(), testRunnerConfig())

	_, err := runner.Execute(context.Background(), "missing")
	if err == nil {
		t.Fatal("エラーが返るべきです")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMonitorNotFound {
		t.Errorf("MONITOR_NOT_FOUNDエラーが返るべきです: %v", err)
	}
	if finalRun == nil || finalRun.Status != model.RunStatusFailed {
		t.Fatalf("実行記録はfailedになるべきです: %+v", finalRun)
	}
	if finalRun.ErrorMessage != "Monitor not found" {
		t.Errorf("エラーメッセージが不正です: %s", finalRun.ErrorMessage)
	}
}

func TestExecuteInactiveMonitor(t *testing.T) {
	mon := activeMonitor()
	mon.IsActive = false

	var finalRun *model.MonitorRun
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
	}
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			finalRun = run
			return nil
		},
	}
	runner := NewRunner(&mockContentSource{}, monitors, &mockPostRepo{}, &mockCommentRepo{},
		runs, nil, testLogger(), testRunnerConfig())

	if _, err := runner.Execute(context.Background(), "mon-1"); err == nil {
		t.Fatal("エラーが返るべきです")
	}
	if finalRun == nil || finalRun.Status != model.RunStatusFailed {
		t.Fatalf("実行記録はfailedになるべきです: %+v", finalRun)
	}
	if finalRun.ErrorMessage != "Monitor is not active" {
		t.Errorf("エラーメッセージが不正です: %s", finalRun.ErrorMessage)
	}
}

func TestExecuteAggregatesSubredditErrors(t *testing.T) {
	mon := activeMonitor()
	mon.Subreddits = []string{"golang", "rust", "zig"}

	var lastCheckedUpdated bool
	var finalRun *model.MonitorRun

	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			if subreddit == "golang" {
				return nil, nil
			}
			return nil, errors.New("api unavailable")
		},
	}
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
		UpdateLastCheckedFunc: func(ctx context.Context, id string, checkedAt time.Time) error {
			lastCheckedUpdated = true
			return nil
		},
	}
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			finalRun = run
			return nil
		},
	}
	runner := NewRunner(source, monitors, &mockPostRepo{}, &mockCommentRepo{},
		runs, nil, testLogger(), testRunnerConfig())

	result, err := runner.Execute(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("subredditエラーは実行を失敗させないべきです: %v", err)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("エラー数が不正です: %v", result.Errors)
	}

	// subredditエラーがあってもバリデーション通過後はcompletedになる
	if finalRun.Status != model.RunStatusCompleted {
		t.Errorf("実行ステータスが不正です: %s", finalRun.Status)
	}
	if !strings.Contains(finalRun.ErrorMessage, "; ") {
		t.Errorf(`複数エラーは"; "で連結されるべきです: %s`, finalRun.ErrorMessage)
	}
	if !strings.Contains(finalRun.ErrorMessage, "r/rust") || !strings.Contains(finalRun.ErrorMessage, "r/zig") {
		t.Errorf("エラーメッセージにsubreddit名が含まれるべきです: %s", finalRun.ErrorMessage)
	}
	if !lastCheckedUpdated {
		t.Error("subredditエラーがあってもlast_checkedは更新されるべきです")
	}
}

func TestExecuteSkipsAlreadySeenContent(t *testing.T) {
	now := time.Now()
	mon := activeMonitor()

	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			return []model.PostDraft{
				{RedditID: "seen", Title: "generics", CreatedAt: now},
				{RedditID: "race", Title: "generics", CreatedAt: now},
			}, nil
		},
	}
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
	}
	posts := &mockPostRepo{
		ExistsByRedditIDFunc: func(ctx context.Context, redditID string) (bool, error) {
			return redditID == "seen", nil
		},
		CreateFunc: func(ctx context.Context, p *model.Post) error {
			// 同時挿入レースで先を越されたケース
			return &pq.Error{Code: "23505"}
		},
	}
	runner := NewRunner(source, monitors, posts, &mockCommentRepo{},
		&mockRunRepo{}, nil, testLogger(), testRunnerConfig())

	result, err := runner.Execute(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.PostsFound != 0 {
		t.Errorf("保存済み・レース負けの投稿はカウントされないべきです: %d", result.PostsFound)
	}
	if len(result.Errors) != 0 {
		t.Errorf("一意制約違反はエラーにならないべきです: %v", result.Errors)
	}
}

func TestExecuteSkipsContentOutsideWindow(t *testing.T) {
	mon := activeMonitor()
	old := time.Now().Add(-2 * time.Hour)

	created := 0
	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			return []model.PostDraft{{RedditID: "p1", Title: "generics", CreatedAt: old}}, nil
		},
	}
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
	}
	posts := &mockPostRepo{
		CreateFunc: func(ctx context.Context, p *model.Post) error {
			created++
			return nil
		},
	}
	runner := NewRunner(source, monitors, posts, &mockCommentRepo{},
		&mockRunRepo{}, nil, testLogger(), testRunnerConfig())

	result, err := runner.Execute(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if created != 0 || result.PostsFound != 0 {
		t.Errorf("ウィンドウ外の投稿は保存されないべきです: created=%d", created)
	}
}

func TestExecuteRejectsConcurrentRun(t *testing.T) {
	mon := activeMonitor()
	started := make(chan struct{})
	block := make(chan struct{})
	var startedOnce sync.Once

	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			startedOnce.Do(func() { close(started) })
			<-block
			return nil, nil
		},
	}
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
	}
	runner := NewRunner(source, monitors, &mockPostRepo{}, &mockCommentRepo{},
		&mockRunRepo{}, nil, testLogger(), testRunnerConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Execute(context.Background(), "mon-1")
	}()

	<-started
	_, err := runner.Execute(context.Background(), "mon-1")
	close(block)
	wg.Wait()

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRunInProgress {
		t.Errorf("RUN_IN_PROGRESSエラーが返るべきです: %v", err)
	}

	// 1つ目の実行完了後は再実行できる
	if _, err := runner.Execute(context.Background(), "mon-1"); err != nil {
		t.Errorf("実行完了後の再実行が失敗しました: %v", err)
	}
}

func TestExecuteSurvivesCallerCancel(t *testing.T) {
	// スケジュール解除や置き換えで呼び出し元のコンテキストが
	// キャンセルされても、進行中の実行は中断されず自力で完了する
	now := time.Now()
	mon := activeMonitor()
	fetchStarted := make(chan struct{})
	release := make(chan struct{})

	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			close(fetchStarted)
			<-release
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []model.PostDraft{
				{RedditID: "p1", Title: "Generics in practice", CreatedAt: now},
			}, nil
		},
	}

	var finalRun *model.MonitorRun
	var lastChecked time.Time
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
		UpdateLastCheckedFunc: func(ctx context.Context, id string, checkedAt time.Time) error {
			lastChecked = checkedAt
			return nil
		},
	}
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			finalRun = run
			return nil
		},
	}
	runner := NewRunner(source, monitors, &mockPostRepo{}, &mockCommentRepo{},
		runs, nil, testLogger(), testRunnerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan *model.RunResult, 1)
	go func() {
		result, err := runner.Execute(ctx, "mon-1")
		if err != nil {
			t.Errorf("予期しないエラー: %v", err)
		}
		resultCh <- result
	}()

	<-fetchStarted
	cancel()
	close(release)
	result := <-resultCh

	if result.PostsFound != 1 {
		t.Errorf("保存投稿数が不正です: got %d, want 1", result.PostsFound)
	}
	if len(result.Errors) != 0 {
		t.Errorf("エラーは発生しないべきです: %v", result.Errors)
	}
	if finalRun == nil || finalRun.Status != model.RunStatusCompleted {
		t.Fatalf("実行記録はcompletedになるべきです: %+v", finalRun)
	}
	if strings.Contains(finalRun.ErrorMessage, "run timed out") {
		t.Errorf("キャンセルをタイムアウトとして記録すべきではありません: %s", finalRun.ErrorMessage)
	}
	if lastChecked.IsZero() {
		t.Error("チェック済み時刻が更新されるべきです")
	}
}

func TestExecuteRunTimeout(t *testing.T) {
	now := time.Now()
	mon := activeMonitor()
	mon.Subreddits = []string{"golang", "rust"}

	var fetchCalls int
	source := &mockContentSource{
		FetchRecentPostsFunc: func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
			fetchCalls++
			time.Sleep(50 * time.Millisecond)
			return []model.PostDraft{
				{RedditID: "p1", Title: "Generics in practice", CreatedAt: now},
			}, nil
		},
	}

	var finalRun *model.MonitorRun
	var lastChecked time.Time
	monitors := &mockMonitorRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Monitor, error) { return mon, nil },
		UpdateLastCheckedFunc: func(ctx context.Context, id string, checkedAt time.Time) error {
			if ctx.Err() != nil {
				t.Errorf("チェック済み時刻の更新は期限切れ後も実行されるべきです: %v", ctx.Err())
			}
			lastChecked = checkedAt
			return nil
		},
	}
	runs := &mockRunRepo{
		UpdateResultFunc: func(ctx context.Context, run *model.MonitorRun) error {
			if ctx.Err() != nil {
				t.Errorf("実行記録の終端化は期限切れ後も実行されるべきです: %v", ctx.Err())
			}
			finalRun = run
			return nil
		},
	}

	cfg := testRunnerConfig()
	cfg.RunTimeout = 10 * time.Millisecond
	runner := NewRunner(source, monitors, &mockPostRepo{}, &mockCommentRepo{},
		runs, nil, testLogger(), cfg)

	result, err := runner.Execute(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	// 1つ目のsubreddit処理後に期限切れとなり、2つ目はスキップされる
	if fetchCalls != 1 {
		t.Errorf("期限切れ後のsubredditはスキップされるべきです: %d回呼ばれました", fetchCalls)
	}
	if result.PostsFound != 1 {
		t.Errorf("期限前に保存された投稿は数えられるべきです: got %d", result.PostsFound)
	}
	if finalRun == nil || finalRun.Status != model.RunStatusFailed {
		t.Fatalf("実行記録はfailedになるべきです: %+v", finalRun)
	}
	if !strings.Contains(finalRun.ErrorMessage, "run timed out") {
		t.Errorf("タイムアウトのメッセージが記録されるべきです: %s", finalRun.ErrorMessage)
	}
	if lastChecked.IsZero() {
		t.Error("バリデーション通過済みの実行はチェック済み時刻を更新すべきです")
	}
}
