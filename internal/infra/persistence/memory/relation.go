package memory

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type relationReader struct {
	s *Store
}

// NewRelationReader returns the full re-fetch of s.
func NewRelationReader(s *Store) repository.RelationReader {
	return &relationReader{s: s}
}

func (r *relationReader) FetchRelation(ctx context.Context, kind entity.Kind) ([]entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []entity.Record
	switch kind {
	case entity.KindCheckIn:
		records = collect(s.checkIns)
	case entity.KindGoingIntention:
		records = collect(s.going)
	case entity.KindLivePost:
		cutoff := s.clock().Add(-s.lookback)
		for _, row := range s.posts {
			if s.lookback <= 0 || row.CreatedAt.After(cutoff) {
				records = append(records, &row)
			}
		}
	case entity.KindPromotion:
		records = collect(s.promotions)
	case entity.KindPromotionClaim:
		records = collect(s.claims)
	case entity.KindMatch:
		records = collect(s.matches)
	case entity.KindMessage:
		records = collect(s.messages)
	default:
		return nil, errors.Errorf("unknown relation %q", kind)
	}

	return records, nil
}

// collect copies every row so the mirror never shares memory with the store.
func collect[T any, P interface {
	*T
	entity.Record
}](rows map[uuid.UUID]T) []entity.Record {
	records := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, P(&row))
	}

	return records
}

type transactionManager struct {
	s *Store
}

// NewTransactionManager runs transactions against s. The whole transaction holds the store lock.
func NewTransactionManager(s *Store) repository.TransactionManager {
	return &transactionManager{s: s}
}

func (m *transactionManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return m.s.atomically(ctx, func(sc *scope) error {
		return fn(&repositoryFactory{binding{s: m.s, sc: sc}})
	})
}

type repositoryFactory struct {
	binding
}

func (f *repositoryFactory) NewCheckInRepository() repository.CheckInRepository {
	return &checkInRepository{f.binding}
}

func (f *repositoryFactory) NewGoingIntentionRepository() repository.GoingIntentionRepository {
	return &goingIntentionRepository{f.binding}
}

// Seed inserts reference rows that are created upstream (places, promotions, matches) and publishes them.
func (s *Store) Seed(ctx context.Context, records ...any) error {
	return s.atomically(ctx, func(sc *scope) error {
		for _, record := range records {
			switch row := record.(type) {
			case *entity.Place:
				s.places[row.ID] = *row
			case *entity.Promotion:
				copied := *row
				if copied.UpdatedAt.IsZero() {
					copied.UpdatedAt = s.tick()
				}
				previous, existed := s.promotions[copied.ID]
				s.promotions[copied.ID] = copied
				op := service.OpInsert
				if existed {
					op = service.OpUpdate
				}
				sc.record(func() {
					if existed {
						s.promotions[copied.ID] = previous
					} else {
						delete(s.promotions, copied.ID)
					}
				}, changeEvent(op, &copied))
			case *entity.Match:
				copied := *row
				if copied.CreatedAt.IsZero() {
					copied.CreatedAt = s.tick()
				}
				if _, ok := s.matches[copied.ID]; ok {
					return repository.ErrDuplicate
				}
				s.matches[copied.ID] = copied
				sc.record(func() { delete(s.matches, copied.ID) }, changeEvent(service.OpInsert, &copied))
			default:
				return errors.Errorf("cannot seed %T", record)
			}
		}

		return nil
	})
}
