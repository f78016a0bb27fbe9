package services

import (
	"context"
	"fmt"

	"github.com/upb/character-chat/repositories"
)

// WithTransaction runs fn in a transaction, committing when it returns nil
// and rolling back on error or panic.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	_, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context, tx repositories.Transaction) (struct{}, error) {
		return struct{}{}, fn(ctx, tx)
	})
	return err
}

// WithTransactionResult is WithTransaction for functions that produce a value.
// fn receives the transaction's context so repositories join it.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var zero T

	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txCtx := tx.Context()
	if txCtx == nil {
		txCtx = ctx
	}

	result, err := fn(txCtx, tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return zero, fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
