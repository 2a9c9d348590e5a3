package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound             = errors.New("座席が見つかりません")
	ErrSeatOccupied             = errors.New("座席は既に占有されています")
	ErrSeatHeldByAnother        = errors.New("座席は別のセッションが仮押さえ中です")
	ErrSeatAwaitingConfirmation = errors.New("座席は確認待ちです")
	ErrConcurrentModification   = errors.New("座席が同時に更新されました")
	ErrOptimisticLockConflict   = errors.New("楽観的ロックの競合が発生しました")
	ErrStoreUnavailable         = errors.New("座席ストアが利用できません")
	ErrLeaseInvariant           = errors.New("リース項目と状態が整合していません")
)

// 入力検証エラー
var (
	ErrInvalidSector         = errors.New("セクターは必須です")
	ErrInvalidRow            = errors.New("列番号は1以上である必要があります")
	ErrInvalidNumber         = errors.New("座席番号は1以上である必要があります")
	ErrSessionRequired       = errors.New("セッションIDは必須です")
	ErrBuyerNameRequired     = errors.New("購入者名は必須です")
	ErrInvalidPrice          = errors.New("価格は0以上である必要があります")
	ErrDuplicateSeat         = errors.New("同じ座席が重複しています")
	ErrInvalidInventoryState = errors.New("在庫の状態は空席または占有のみ指定できます")
)

// IsValidationError は入力検証エラーかを返す
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidSector, ErrInvalidRow, ErrInvalidNumber, ErrSessionRequired,
		ErrBuyerNameRequired, ErrInvalidPrice, ErrDuplicateSeat, ErrInvalidInventoryState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict は競合エラー（占有・他セッション・同時更新）かを返す
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatOccupied) ||
		errors.Is(err, ErrSeatHeldByAnother) ||
		errors.Is(err, ErrSeatAwaitingConfirmation) ||
		errors.Is(err, ErrConcurrentModification)
}
