package blog

import (
	"context"
	"time"
)

const (
	// defaultMaxAttempts はCAS競合時の最大試行回数の既定値。
	defaultMaxAttempts = 5
	// defaultInitialBackoff は指数バックオフの初回遅延。
	defaultInitialBackoff = 5 * time.Millisecond
	// defaultMaxBackoff は指数バックオフの最大遅延。
	defaultMaxBackoff = 200 * time.Millisecond
)

// RetryPolicy はリアクション更新の楽観的排他制御における再試行方針。
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy は最大試行回数のみを指定した既定の再試行方針を返す。
// maxAttempts が1未満の場合は既定値を使用する。
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// Backoff は連続競合回数に基づいて指数バックオフ遅延を計算する。
// 初回InitialBackoff、2倍ずつ増加、最大MaxBackoff。
func (p RetryPolicy) Backoff(conflicts int) time.Duration {
	delay := p.InitialBackoff
	for i := 0; i < conflicts; i++ {
		delay *= 2
		if delay > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return delay
}

// wait はコンテキストがキャンセルされるまで最大dだけ待機する。
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
