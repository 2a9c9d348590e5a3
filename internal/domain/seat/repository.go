package seat

import "context"

// Repository は座席テーブルのレコードストアを表すインターフェース。
// フィルタもトランザクションも持たず、全件読み込みと1行書き込みのみを提供する。
type Repository interface {
	// ReadAll はストア上の順序で全座席を取得する（RowPosition/Version 付き）
	ReadAll(ctx context.Context) ([]*Seat, error)

	// WriteOne は RowPosition の行を書き換える。
	// 保存済みの Version または自然キーが一致しない場合は ErrOptimisticLockConflict を返す。
	// 成功時は s.Version をインクリメントする。
	WriteOne(ctx context.Context, s *Seat) error

	// ReplaceAll は座席テーブル全体を消去して書き直す（一括ロード専用）
	ReplaceAll(ctx context.Context, seats []*Seat) error
}
