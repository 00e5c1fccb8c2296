package postgres

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// promotionRepository implements the repository.PromotionRepository interface.
type promotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository is the constructor for promotionRepository.
func NewPromotionRepository(db *gorm.DB) repository.PromotionRepository {
	return &promotionRepository{db: db}
}

// FindPromotionByID retrieves a promotion by its unique ID.
func (repo *promotionRepository) FindPromotionByID(ctx context.Context, id uuid.UUID) (*entity.Promotion, error) {
	var promotionM model.PromotionModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&promotionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, errors.Wrap(err, "failed to find promotion by ID")
	}

	return toPromotionDomain(&promotionM), nil
}

// FindClaimsByUser lists the claims of a user, newest first.
func (repo *promotionRepository) FindClaimsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error) {
	var claimModels []*model.PromotionClaimModel

	if err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("claimed_at DESC").
		Find(&claimModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find claims by user")
	}

	claims := make([]*entity.PromotionClaim, 0, len(claimModels))
	for _, claimM := range claimModels {
		claims = append(claims, toClaimDomain(claimM))
	}

	return claims, nil
}

// CountClaims aggregates the claim outcomes of a promotion.
func (repo *promotionRepository) CountClaims(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, error) {
	if _, err := repo.FindPromotionByID(ctx, promotionID); err != nil {
		return nil, err
	}

	var row struct {
		ClaimCount    int
		WinnerCount   int
		RedeemedCount int
	}
	if err := repo.db.WithContext(ctx).
		Model(&model.PromotionClaimModel{}).
		Select(
			"COUNT(*) AS claim_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS winner_count, "+
				"COALESCE(SUM(CASE WHEN redeemed_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS redeemed_count",
			string(entity.ClaimWon),
		).
		Where("promotion_id = ?", promotionID).
		Scan(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count claims")
	}

	return &entity.PromotionStats{
		PromotionID:   promotionID,
		ClaimCount:    row.ClaimCount,
		WinnerCount:   row.WinnerCount,
		RedeemedCount: row.RedeemedCount,
		RefreshedAt:   now(),
	}, nil
}

// claimProcedure implements the repository.ClaimProcedure interface.
type claimProcedure struct {
	db *gorm.DB
}

// NewClaimProcedure is the constructor for claimProcedure.
// Callers are serialized by a row lock on the promotion.
func NewClaimProcedure(db *gorm.DB) repository.ClaimProcedure {
	return &claimProcedure{db: db}
}

// ClaimPromotion arbitrates one claim. A repeated call returns the stored claim.
func (p *claimProcedure) ClaimPromotion(ctx context.Context, promotionID, userID uuid.UUID) (*entity.PromotionClaim, error) {
	var claimM model.PromotionClaimModel

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promotionM model.PromotionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", promotionID).
			First(&promotionM).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}

			return errors.Wrap(err, "failed to lock promotion")
		}

		err := tx.Where("promotion_id = ? AND user_id = ?", promotionID, userID).First(&claimM).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "failed to find existing claim")
		}

		claimedAt := now()
		if !toPromotionDomain(&promotionM).IsActiveAt(claimedAt) {
			return repository.ErrPromotionNotActive
		}

		var taken int64
		if err := tx.Model(&model.PromotionClaimModel{}).
			Where("promotion_id = ?", promotionID).
			Count(&taken).Error; err != nil {
			return errors.Wrap(err, "failed to count claims")
		}

		order := int(taken) + 1
		status := entity.ClaimLost
		if order <= promotionM.LimitCount {
			status = entity.ClaimWon
		}
		claimM = model.PromotionClaimModel{
			ID:          uuid.New(),
			PromotionID: promotionID,
			UserID:      userID,
			ClaimedAt:   claimedAt,
			Status:      string(status),
			ClaimOrder:  &order,
			UpdatedAt:   claimedAt,
		}
		if err := tx.Create(&claimM).Error; err != nil {
			return errors.Wrap(err, "failed to create claim")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return toClaimDomain(&claimM), nil
}

// placeRepository implements the repository.PlaceRepository interface.
type placeRepository struct {
	db *gorm.DB
}

// NewPlaceRepository is the constructor for placeRepository.
func NewPlaceRepository(db *gorm.DB) repository.PlaceRepository {
	return &placeRepository{db: db}
}

// FindPlaceByID retrieves a place by its unique ID.
func (repo *placeRepository) FindPlaceByID(ctx context.Context, id uuid.UUID) (*entity.Place, error) {
	var placeM model.PlaceModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&placeM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, errors.Wrap(err, "failed to find place by ID")
	}

	return &entity.Place{ID: placeM.ID, OwnerID: placeM.OwnerID, Name: placeM.Name}, nil
}

func toPromotionDomain(data *model.PromotionModel) *entity.Promotion {
	if data == nil {
		return nil
	}

	return &entity.Promotion{
		ID:         data.ID,
		PlaceID:    data.PlaceID,
		Type:       entity.PromotionType(data.Type),
		Title:      data.Title,
		LimitCount: data.LimitCount,
		StartDate:  data.StartDate.UTC(),
		EndDate:    data.EndDate.UTC(),
		UpdatedAt:  data.UpdatedAt.UTC(),
	}
}

func toClaimDomain(data *model.PromotionClaimModel) *entity.PromotionClaim {
	if data == nil {
		return nil
	}

	claim := &entity.PromotionClaim{
		ID:          data.ID,
		PromotionID: data.PromotionID,
		UserID:      data.UserID,
		ClaimedAt:   data.ClaimedAt.UTC(),
		Status:      entity.ClaimStatus(data.Status),
		ClaimOrder:  data.ClaimOrder,
		UpdatedAt:   data.UpdatedAt.UTC(),
	}
	if data.RedeemedAt != nil {
		redeemedAt := data.RedeemedAt.UTC()
		claim.RedeemedAt = &redeemedAt
	}

	return claim
}
