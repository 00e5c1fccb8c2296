// Package postgres contains the concrete implementation of the remote store using GORM and PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"hotspot/config"
	"hotspot/internal/domain/repository"

	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db       *gorm.DB
	maxGoing int
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds a specific GORM transaction object and uses it to create
// repository instances that are bound to that single transaction.
type gormRepositoryFactory struct {
	tx       *gorm.DB
	maxGoing int
}

// NewCheckInRepository creates a check-in repository bound to the transaction.
func (f *gormRepositoryFactory) NewCheckInRepository() repository.CheckInRepository {
	return &checkInRepository{db: f.tx}
}

// NewGoingIntentionRepository creates a going intention repository bound to the transaction.
func (f *gormRepositoryFactory) NewGoingIntentionRepository() repository.GoingIntentionRepository {
	return &goingIntentionRepository{db: f.tx, maxGoing: f.maxGoing}
}

// NewTransactionManager is the constructor for gormTransactionManager.
func NewTransactionManager(db *gorm.DB, cfg *config.Config) repository.TransactionManager {
	return &gormTransactionManager{db: db, maxGoing: cfg.Mirror.MaxGoingIntentions}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	return runInTx(ctx, tm.db, func(tx *gorm.DB) error {
		return fn(&gormRepositoryFactory{tx: tx, maxGoing: tm.maxGoing})
	})
}

// runInTx commits when fn succeeds and rolls back on error or panic.
func runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			// Re-panic to allow Fx or other middleware to handle the panic.
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			// Return the original, more meaningful business error.
			return fmt.Errorf("transaction rollback failed: %v (original error: %w)", rbErr, err)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
