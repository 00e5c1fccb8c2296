package memory

import (
	"context"
	"sort"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

type promotionRepository struct {
	binding
}

// NewPromotionRepository returns the promotions and promotion_claims relations of s.
func NewPromotionRepository(s *Store) repository.PromotionRepository {
	return &promotionRepository{binding{s: s}}
}

func (r *promotionRepository) FindPromotionByID(ctx context.Context, id uuid.UUID) (*entity.Promotion, error) {
	var found entity.Promotion
	err := r.run(ctx, func(sc *scope) error {
		row, ok := r.s.promotions[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &found, nil
}

func (r *promotionRepository) FindClaimsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error) {
	var out []*entity.PromotionClaim
	err := r.run(ctx, func(sc *scope) error {
		for _, row := range r.s.claims {
			if row.UserID == userID {
				out = append(out, &row)
			}
		}

		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.After(out[j].ClaimedAt) })

	return out, err
}

func (r *promotionRepository) CountClaims(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, error) {
	stats := &entity.PromotionStats{PromotionID: promotionID}
	err := r.run(ctx, func(sc *scope) error {
		if _, ok := r.s.promotions[promotionID]; !ok {
			return repository.ErrNotFound
		}
		for _, row := range r.s.claims {
			if row.PromotionID != promotionID {
				continue
			}
			stats.ClaimCount++
			if row.Status == entity.ClaimWon {
				stats.WinnerCount++
			}
			if row.RedeemedAt != nil {
				stats.RedeemedCount++
			}
		}
		stats.RefreshedAt = r.s.clock().UTC()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

type claimProcedure struct {
	binding
}

// NewClaimProcedure returns the atomic claim arbitration of s. The store lock serializes callers.
func NewClaimProcedure(s *Store) repository.ClaimProcedure {
	return &claimProcedure{binding{s: s}}
}

func (p *claimProcedure) ClaimPromotion(ctx context.Context, promotionID, userID uuid.UUID) (*entity.PromotionClaim, error) {
	var result entity.PromotionClaim
	err := p.run(ctx, func(sc *scope) error {
		s := p.s
		promotion, ok := s.promotions[promotionID]
		if !ok {
			return repository.ErrNotFound
		}

		taken := 0
		for _, row := range s.claims {
			if row.PromotionID != promotionID {
				continue
			}
			if row.UserID == userID {
				result = row

				return nil
			}
			taken++
		}

		now := s.tick()
		if !promotion.IsActiveAt(now) {
			return repository.ErrPromotionNotActive
		}

		order := taken + 1
		status := entity.ClaimLost
		if order <= promotion.LimitCount {
			status = entity.ClaimWon
		}
		result = entity.PromotionClaim{
			ID:          uuid.New(),
			PromotionID: promotionID,
			UserID:      userID,
			ClaimedAt:   now,
			Status:      status,
			ClaimOrder:  &order,
			UpdatedAt:   now,
		}

		row := result
		s.claims[row.ID] = row
		sc.record(func() { delete(s.claims, row.ID) }, changeEvent(service.OpInsert, &row))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

type placeRepository struct {
	binding
}

// NewPlaceRepository returns the places relation of s.
func NewPlaceRepository(s *Store) repository.PlaceRepository {
	return &placeRepository{binding{s: s}}
}

func (r *placeRepository) FindPlaceByID(ctx context.Context, id uuid.UUID) (*entity.Place, error) {
	var found entity.Place
	err := r.run(ctx, func(sc *scope) error {
		row, ok := r.s.places[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &found, nil
}
