// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a mirrored relation. The value is the remote table name.
type Kind string

const (
	KindCheckIn        Kind = "check_ins"
	KindGoingIntention Kind = "going_intentions"
	KindLivePost       Kind = "live_posts"
	KindPromotion      Kind = "promotions"
	KindPromotionClaim Kind = "promotion_claims"
	KindMatch          Kind = "matches"
	KindMessage        Kind = "messages"
)

// AllKinds returns every relation the mirror tracks, in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindCheckIn,
		KindGoingIntention,
		KindLivePost,
		KindPromotion,
		KindPromotionClaim,
		KindMatch,
		KindMessage,
	}
}

// ParseKind maps a relation name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for _, kind := range AllKinds() {
		if string(kind) == name {
			return kind, true
		}
	}

	return "", false
}

// IndexKey names a secondary index maintained by the mirror.
type IndexKey string

const (
	ByPlace     IndexKey = "place"
	ByUser      IndexKey = "user"
	ByPromotion IndexKey = "promotion"
	ByMatch     IndexKey = "match"
)

// IndexValue is one secondary index entry of a record.
type IndexValue struct {
	Key   IndexKey
	Value uuid.UUID
}

// Record is implemented by every mirrored entity.
// Records handed to the mirror are treated as immutable.
type Record interface {
	// Kind reports the relation the record belongs to.
	Kind() Kind
	// RecordID is the primary key of the row.
	RecordID() uuid.UUID
	// Version is the remote row version; zero when the row carries none.
	Version() time.Time
	// Indexes lists the secondary index entries of the row.
	Indexes() []IndexValue
}
