package transaction

import "context"

// Tx は1ユースケース分のトランザクション境界を表す
// 行ロック（FOR UPDATE）はコミットまたはロールバックまで保持される
type Tx interface {
	Commit() error
	// Rollback はコミット済みの場合は何もしない
	Rollback() error
}

// Manager はトランザクションを開始する
// ドメイン層・アプリケーション層がストア実装に依存しないための抽象化
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
