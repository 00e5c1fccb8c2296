package memory

import (
	"context"
	"sort"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

// binding routes repository calls either through their own atomic unit or through an open transaction.
type binding struct {
	s  *Store
	sc *scope
}

func (b binding) run(ctx context.Context, fn func(sc *scope) error) error {
	if b.sc != nil {
		return fn(b.sc)
	}

	return b.s.atomically(ctx, fn)
}

type checkInRepository struct {
	binding
}

// NewCheckInRepository returns the check_ins relation of s.
func NewCheckInRepository(s *Store) repository.CheckInRepository {
	return &checkInRepository{binding{s: s}}
}

func (r *checkInRepository) CreateCheckIn(ctx context.Context, checkIn *entity.CheckIn) error {
	return r.run(ctx, func(sc *scope) error {
		s := r.s
		if checkIn.ID == uuid.Nil {
			checkIn.ID = uuid.New()
		}
		if _, ok := s.checkIns[checkIn.ID]; ok {
			return repository.ErrDuplicate
		}
		now := s.tick()
		if checkIn.CreatedAt.IsZero() {
			checkIn.CreatedAt = now
		}
		checkIn.UpdatedAt = now

		row := *checkIn
		s.checkIns[row.ID] = row
		sc.record(func() { delete(s.checkIns, row.ID) }, changeEvent(service.OpInsert, &row))

		return nil
	})
}

func (r *checkInRepository) DeleteCheckInsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	err := r.run(ctx, func(sc *scope) error {
		s := r.s
		for id, row := range s.checkIns {
			if row.UserID != userID {
				continue
			}
			delete(s.checkIns, id)
			removed = append(removed, id)
			sc.record(func() { s.checkIns[row.ID] = row }, deleteEvent(entity.KindCheckIn, id))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

func (r *checkInRepository) FindCheckInsByPlace(ctx context.Context, placeID uuid.UUID) ([]*entity.CheckIn, error) {
	var out []*entity.CheckIn
	err := r.run(ctx, func(sc *scope) error {
		for _, row := range r.s.checkIns {
			if row.PlaceID == placeID {
				out = append(out, &row)
			}
		}

		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, err
}

type goingIntentionRepository struct {
	binding
}

// NewGoingIntentionRepository returns the going_intentions relation of s.
func NewGoingIntentionRepository(s *Store) repository.GoingIntentionRepository {
	return &goingIntentionRepository{binding{s: s}}
}

func (r *goingIntentionRepository) CreateGoingIntention(ctx context.Context, intention *entity.GoingIntention) error {
	return r.run(ctx, func(sc *scope) error {
		s := r.s
		held := 0
		for _, row := range s.going {
			if row.UserID != intention.UserID {
				continue
			}
			if row.PlaceID == intention.PlaceID {
				return repository.ErrDuplicate
			}
			held++
		}
		if s.maxGoing > 0 && held >= s.maxGoing {
			return repository.ErrGoingLimitReached
		}

		if intention.ID == uuid.Nil {
			intention.ID = uuid.New()
		}
		now := s.tick()
		if intention.CreatedAt.IsZero() {
			intention.CreatedAt = now
		}
		intention.UpdatedAt = now

		row := *intention
		s.going[row.ID] = row
		sc.record(func() { delete(s.going, row.ID) }, changeEvent(service.OpInsert, &row))

		return nil
	})
}

func (r *goingIntentionRepository) DeleteGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (uuid.UUID, error) {
	var removed uuid.UUID
	err := r.run(ctx, func(sc *scope) error {
		s := r.s
		for id, row := range s.going {
			if row.UserID != userID || row.PlaceID != placeID {
				continue
			}
			delete(s.going, id)
			removed = id
			sc.record(func() { s.going[row.ID] = row }, deleteEvent(entity.KindGoingIntention, id))

			return nil
		}

		return repository.ErrNotFound
	})
	if err != nil {
		return uuid.Nil, err
	}

	return removed, nil
}

func (r *goingIntentionRepository) CountGoingIntentionsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	err := r.run(ctx, func(sc *scope) error {
		for _, row := range r.s.going {
			if row.UserID == userID {
				count++
			}
		}

		return nil
	})

	return count, err
}
