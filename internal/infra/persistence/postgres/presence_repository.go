package postgres

import (
	"context"

	"hotspot/config"
	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// checkInRepository implements the repository.CheckInRepository interface.
type checkInRepository struct {
	db *gorm.DB
}

// NewCheckInRepository is the constructor for checkInRepository.
func NewCheckInRepository(db *gorm.DB) repository.CheckInRepository {
	return &checkInRepository{db: db}
}

// CreateCheckIn persists a new check-in.
func (repo *checkInRepository) CreateCheckIn(ctx context.Context, checkIn *entity.CheckIn) error {
	if checkIn.ID == uuid.Nil {
		checkIn.ID = uuid.New()
	}
	checkInM := fromCheckInDomain(checkIn)

	if err := repo.db.WithContext(ctx).Create(checkInM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicate
		}

		return errors.Wrap(err, "failed to create check-in")
	}

	checkIn.CreatedAt = checkInM.CreatedAt
	checkIn.UpdatedAt = checkInM.UpdatedAt

	return nil
}

// DeleteCheckInsByUser removes every check-in of the user.
func (repo *checkInRepository) DeleteCheckInsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := repo.db.WithContext(ctx).
		Model(&model.CheckInModel{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find check-ins by user")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := repo.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.CheckInModel{}).Error; err != nil {
		return nil, errors.Wrap(err, "failed to delete check-ins by user")
	}

	return ids, nil
}

// FindCheckInsByPlace lists the check-ins at a place, oldest first.
func (repo *checkInRepository) FindCheckInsByPlace(ctx context.Context, placeID uuid.UUID) ([]*entity.CheckIn, error) {
	var checkInModels []*model.CheckInModel
	if err := repo.db.WithContext(ctx).
		Where("place_id = ?", placeID).
		Order("created_at ASC").
		Find(&checkInModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find check-ins by place")
	}

	checkIns := make([]*entity.CheckIn, 0, len(checkInModels))
	for _, checkInM := range checkInModels {
		checkIns = append(checkIns, toCheckInDomain(checkInM))
	}

	return checkIns, nil
}

// goingIntentionRepository implements the repository.GoingIntentionRepository interface.
type goingIntentionRepository struct {
	db       *gorm.DB
	maxGoing int
}

// NewGoingIntentionRepository is the constructor for goingIntentionRepository.
func NewGoingIntentionRepository(db *gorm.DB, cfg *config.Config) repository.GoingIntentionRepository {
	return &goingIntentionRepository{db: db, maxGoing: cfg.Mirror.MaxGoingIntentions}
}

// CreateGoingIntention persists a new intention unless the user already holds the maximum.
func (repo *goingIntentionRepository) CreateGoingIntention(ctx context.Context, intention *entity.GoingIntention) error {
	if intention.ID == uuid.Nil {
		intention.ID = uuid.New()
	}
	intentionM := fromGoingIntentionDomain(intention)

	// Transaction nests as a savepoint when repo.db is already a transaction.
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUserScope(tx, model.GoingIntentionModel{}.TableName(), intention.UserID); err != nil {
			return errors.Wrap(err, "failed to lock going intentions")
		}

		var held []*model.GoingIntentionModel
		if err := tx.Where("user_id = ?", intention.UserID).Find(&held).Error; err != nil {
			return errors.Wrap(err, "failed to find going intentions")
		}
		for _, row := range held {
			if row.PlaceID == intention.PlaceID {
				return repository.ErrDuplicate
			}
		}
		if repo.maxGoing > 0 && len(held) >= repo.maxGoing {
			return repository.ErrGoingLimitReached
		}

		if err := tx.Create(intentionM).Error; err != nil {
			if isUniqueConstraintViolation(err) {
				return repository.ErrDuplicate
			}

			return errors.Wrap(err, "failed to create going intention")
		}

		return nil
	})
	if err != nil {
		return err
	}

	intention.CreatedAt = intentionM.CreatedAt
	intention.UpdatedAt = intentionM.UpdatedAt

	return nil
}

// DeleteGoingIntention removes the intention of the user for the place.
func (repo *goingIntentionRepository) DeleteGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (uuid.UUID, error) {
	var intentionM model.GoingIntentionModel
	if err := repo.db.WithContext(ctx).
		Where("user_id = ? AND place_id = ?", userID, placeID).
		First(&intentionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, repository.ErrNotFound
		}

		return uuid.Nil, errors.Wrap(err, "failed to find going intention")
	}

	result := repo.db.WithContext(ctx).Where("id = ?", intentionM.ID).Delete(&model.GoingIntentionModel{})
	if result.Error != nil {
		return uuid.Nil, errors.Wrap(result.Error, "failed to delete going intention")
	}
	if result.RowsAffected == 0 {
		return uuid.Nil, repository.ErrNotFound
	}

	return intentionM.ID, nil
}

// CountGoingIntentionsByUser counts the intentions held by the user.
func (repo *goingIntentionRepository) CountGoingIntentionsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.GoingIntentionModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count going intentions")
	}

	return int(count), nil
}

func toCheckInDomain(data *model.CheckInModel) *entity.CheckIn {
	if data == nil {
		return nil
	}

	return &entity.CheckIn{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		CreatedAt: data.CreatedAt.UTC(),
		UpdatedAt: data.UpdatedAt.UTC(),
	}
}

func fromCheckInDomain(data *entity.CheckIn) *model.CheckInModel {
	if data == nil {
		return nil
	}

	return &model.CheckInModel{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

func toGoingIntentionDomain(data *model.GoingIntentionModel) *entity.GoingIntention {
	if data == nil {
		return nil
	}

	return &entity.GoingIntention{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		CreatedAt: data.CreatedAt.UTC(),
		UpdatedAt: data.UpdatedAt.UTC(),
	}
}

func fromGoingIntentionDomain(data *entity.GoingIntention) *model.GoingIntentionModel {
	if data == nil {
		return nil
	}

	return &model.GoingIntentionModel{
		ID:        data.ID,
		UserID:    data.UserID,
		PlaceID:   data.PlaceID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

// lockUserScope serializes the writers of one user's rows in scope until the transaction ends.
// Row locks cannot guard a count that may still grow, so Postgres takes an advisory lock instead.
// SQLite already serializes writers.
func lockUserScope(tx *gorm.DB, scope string, userID uuid.UUID) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}

	return advisoryLock(tx, scope, userID).Error
}

func advisoryLock(tx *gorm.DB, scope string, userID uuid.UUID) *gorm.DB {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", scope+":"+userID.String())
}
