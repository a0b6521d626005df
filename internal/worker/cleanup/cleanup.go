// Package cleanup は期限切れリフレッシュトークンの定期削除ジョブを提供する。
// ログアウトやトークン更新で失効しなかったトークンも、有効期限を過ぎた時点で
// 検証対象から外れるが、テーブル肥大化を防ぐため定期的に物理削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/metrics"
)

// TokenPurger は期限切れトークンの削除を抽象化するインターフェース。
// repository.RefreshTokenRepository が満たす。
type TokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れリフレッシュトークンの削除ジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	purger  TokenPurger
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger TokenPurger, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:  purger,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
	}
}

// Run は現在時刻より前に期限切れとなったトークンを削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := j.now()

	deleted, err := j.purger.DeleteExpired(ctx, start)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れトークンの削除に失敗: %w", err)
	}

	j.metrics.RecordTokensCleaned(deleted)
	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return deleted, nil
}

// Start は起動直後に1回、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の実行失敗はログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("トークンクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)
}
