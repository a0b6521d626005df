package blog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hitoshi/blogman/internal/model"
)

// ReactionKind はリアクションの種別。
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// メトリクスのresultラベル値
const (
	resultAdded     = "added"
	resultRemoved   = "removed"
	resultBlocked   = "blocked"
	resultUnblocked = "unblocked"
	resultForbidden = "forbidden"
	resultNotFound  = "not_found"
	resultInvalid   = "invalid"
	resultConflict  = "conflict"
	resultError     = "error"
)

// ReactionOutcome はリアクション操作の結果。
// Addedはトグル後に閲覧者のリアクションが付いている場合にtrueとなる。
type ReactionOutcome struct {
	model.ReactionCounts
	Added bool
}

// Like は閲覧者の高評価をトグルし、更新後の件数を返す。
// 低評価済みの場合は低評価を外して高評価に切り替える。
func (s *Service) Like(ctx context.Context, viewerID, blogID string) (ReactionOutcome, error) {
	return s.react(ctx, viewerID, blogID, ReactionLike)
}

// Dislike は閲覧者の低評価をトグルし、更新後の件数を返す。
func (s *Service) Dislike(ctx context.Context, viewerID, blogID string) (ReactionOutcome, error) {
	return s.react(ctx, viewerID, blogID, ReactionDislike)
}

func (s *Service) react(ctx context.Context, viewerID, blogID string, kind ReactionKind) (ReactionOutcome, error) {
	start := s.now()
	defer func() { s.metrics.RecordReactionLatency(s.now().Sub(start)) }()

	if err := validateID(blogID); err != nil {
		s.metrics.RecordReaction(string(kind), resultInvalid)
		return ReactionOutcome{}, err
	}

	var added bool
	b, err := s.mutate(ctx, blogID, func(b *model.Blog) error {
		if err := checkCanReact(viewerID, b); err != nil {
			return err
		}
		added = applyReaction(b, viewerID, kind)
		return nil
	})
	if err != nil {
		s.metrics.RecordReaction(string(kind), resultLabel(err))
		return ReactionOutcome{}, err
	}

	result := resultRemoved
	if added {
		result = resultAdded
	}
	s.metrics.RecordReaction(string(kind), result)
	s.logger.Debug("reaction applied",
		slog.String("user_id", viewerID),
		slog.String("blog_id", blogID),
		slog.String("kind", string(kind)),
		slog.String("result", result),
		slog.Int("like_count", b.LikeCount),
		slog.Int("dislike_count", b.DislikeCount),
	)
	return ReactionOutcome{ReactionCounts: b.Counts(), Added: added}, nil
}

// ToggleBlock は投稿者が指定ユーザーのブロック状態を切り替える。
// 戻り値はトグル後にブロックされているかどうか。
func (s *Service) ToggleBlock(ctx context.Context, requesterID, blogID, targetID string) (bool, error) {
	kind := "block"
	if err := validateID(blogID); err != nil {
		s.metrics.RecordReaction(kind, resultInvalid)
		return false, err
	}
	if err := validateID(targetID); err != nil {
		s.metrics.RecordReaction(kind, resultInvalid)
		return false, err
	}

	var blocked bool
	_, err := s.mutate(ctx, blogID, func(b *model.Blog) error {
		if !b.IsAuthor(requesterID) {
			if CanView(requesterID, b) {
				return model.NewForbiddenError("Only the author can block users on this blog.")
			}
			return model.NewBlogNotFoundError()
		}
		if targetID == requesterID {
			return model.NewValidationError("You cannot block yourself.")
		}
		blocked = applyBlockToggle(b, targetID)
		return nil
	})
	if err != nil {
		s.metrics.RecordReaction(kind, resultLabel(err))
		return false, err
	}

	result := resultUnblocked
	if blocked {
		result = resultBlocked
	}
	s.metrics.RecordReaction(kind, result)
	s.logger.Info("block toggled",
		slog.String("blog_id", blogID),
		slog.String("author_id", requesterID),
		slog.String("target_id", targetID),
		slog.Bool("blocked", blocked),
	)
	return blocked, nil
}

// mutate は記事を読み込み、fnで変更してCASで保存する。
// 他のリクエストと競合した場合は再読み込みして再試行する。
// fnが返したエラーはそのまま呼び出し側に返し、保存は行わない。
func (s *Service) mutate(ctx context.Context, blogID string, fn func(b *model.Blog) error) (*model.Blog, error) {
	var saved *model.Blog
	err := s.retryOnConflict(ctx, s.metrics.RecordReactionConflict, model.NewReactionConflictError, func() error {
		b, err := s.blogRepo.FindByID(ctx, blogID)
		if err != nil {
			return fmt.Errorf("記事の取得に失敗しました: %w", err)
		}
		if b == nil {
			return model.NewBlogNotFoundError()
		}
		if err := fn(b); err != nil {
			return err
		}
		if err := s.blogRepo.UpdateReactions(ctx, b); err != nil {
			return err
		}
		saved = b
		return nil
	})
	if err != nil {
		if model.IsCode(err, model.ErrCodeReactionConflict) {
			s.logger.Warn("reaction retries exhausted",
				slog.String("blog_id", blogID),
				slog.Int("max_attempts", s.retry.MaxAttempts),
			)
		}
		return nil, err
	}
	return saved, nil
}

// checkCanReact はリアクション可否を判定する。
// ブロックされた閲覧者はFORBIDDEN、閲覧できない下書きはBLOG_NOT_FOUNDとなる。
func checkCanReact(viewerID string, b *model.Blog) error {
	if b.IsAuthor(viewerID) {
		return nil
	}
	if b.IsBlocked(viewerID) {
		return model.NewForbiddenError("You are blocked from interacting with this blog.")
	}
	if !b.IsPublished {
		return model.NewBlogNotFoundError()
	}
	return nil
}

// applyReaction は高評価・低評価のトグルを適用する唯一の変更経路。
// 同じ種別が付いていれば外し、付いていなければ反対側から外して付与する。
// 件数は集合から再計算する。付与した場合はtrueを返す。
func applyReaction(b *model.Blog, viewerID string, kind ReactionKind) bool {
	own, other := &b.LikedBy, &b.DislikedBy
	if kind == ReactionDislike {
		own, other = other, own
	}

	added := false
	if slices.Contains(*own, viewerID) {
		*own = without(*own, viewerID)
	} else {
		*other = without(*other, viewerID)
		*own = append(*own, viewerID)
		added = true
	}
	b.Recount()
	return added
}

// applyBlockToggle はブロック状態を切り替える。
// ブロック時は対象ユーザーの既存リアクションも取り除く。解除時は何も復元しない。
// トグル後にブロックされていればtrueを返す。
func applyBlockToggle(b *model.Blog, targetID string) bool {
	blocked := false
	if b.IsBlocked(targetID) {
		b.BlockedUsers = without(b.BlockedUsers, targetID)
	} else {
		b.BlockedUsers = append(b.BlockedUsers, targetID)
		b.LikedBy = without(b.LikedBy, targetID)
		b.DislikedBy = without(b.DislikedBy, targetID)
		blocked = true
	}
	b.Recount()
	return blocked
}

func without(set []string, id string) []string {
	return slices.DeleteFunc(set, func(v string) bool { return v == id })
}

// resultLabel はエラーをメトリクスのresultラベル値に変換する。
func resultLabel(err error) string {
	switch {
	case model.IsCode(err, model.ErrCodeForbidden):
		return resultForbidden
	case model.IsCode(err, model.ErrCodeBlogNotFound):
		return resultNotFound
	case model.IsCode(err, model.ErrCodeValidation), model.IsCode(err, model.ErrCodeInvalidID):
		return resultInvalid
	case model.IsCode(err, model.ErrCodeReactionConflict):
		return resultConflict
	default:
		return resultError
	}
}
