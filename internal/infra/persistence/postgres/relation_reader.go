package postgres

import (
	"context"

	"hotspot/config"
	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// relationReader implements the repository.RelationReader interface.
type relationReader struct {
	db     *gorm.DB
	config *config.MirrorConfig
}

// NewRelationReader is the constructor for relationReader.
func NewRelationReader(db *gorm.DB, cfg *config.Config) repository.RelationReader {
	return &relationReader{db: db, config: &cfg.Mirror}
}

// FetchRelation loads every row the mirror should hold for kind.
// Live posts older than the refetch lookback can never be visible again and are skipped.
func (r *relationReader) FetchRelation(ctx context.Context, kind entity.Kind) ([]entity.Record, error) {
	db := r.db.WithContext(ctx)

	switch kind {
	case entity.KindCheckIn:
		return fetch(db, toCheckInDomain)
	case entity.KindGoingIntention:
		return fetch(db, toGoingIntentionDomain)
	case entity.KindLivePost:
		if r.config.RefetchLookback > 0 {
			db = db.Where("created_at > ?", now().Add(-r.config.RefetchLookback))
		}

		return fetch(db, toLivePostDomain)
	case entity.KindPromotion:
		return fetch(db, toPromotionDomain)
	case entity.KindPromotionClaim:
		return fetch(db, toClaimDomain)
	case entity.KindMatch:
		return fetch(db, toMatchDomain)
	case entity.KindMessage:
		return fetch(db, toMessageDomain)
	default:
		return nil, errors.Errorf("unknown relation: %s", kind)
	}
}

func fetch[M any, E entity.Record](db *gorm.DB, convert func(*M) E) ([]entity.Record, error) {
	var rows []*M
	if err := db.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch relation")
	}

	records := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, convert(row))
	}

	return records, nil
}
