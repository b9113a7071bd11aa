package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"skillswap-auth/internal/config"
)

const (
	defaultAccountBuckets = 1024
	defaultEventBuckets   = 256
)

// BucketingManager maps identifiers onto stable partition buckets with murmur3
type BucketingManager struct {
	accountBuckets int
	eventBuckets   int
	hasherPool     sync.Pool
}

type BucketAssignment struct {
	AccountBucket int    `json:"account_bucket"`
	EventBucket   int    `json:"event_bucket"`
	DateBucket    string `json:"date_bucket"`
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	return NewBucketingManagerWithSizes(cfg.Bucketing.AccountBuckets, cfg.Bucketing.EventBuckets)
}

func NewBucketingManagerWithSizes(accountBuckets, eventBuckets int) *BucketingManager {
	if accountBuckets <= 0 {
		accountBuckets = defaultAccountBuckets
	}
	if eventBuckets <= 0 {
		eventBuckets = defaultEventBuckets
	}
	bm := &BucketingManager{
		accountBuckets: accountBuckets,
		eventBuckets:   eventBuckets,
	}
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return bm
}

// GetAccountBucket returns the partition for an account key (id or email)
func (bm *BucketingManager) GetAccountBucket(key string) int {
	return bm.getBucket(key, bm.accountBuckets)
}

// GetEventBucket returns the partition for security events of one subject
func (bm *BucketingManager) GetEventBucket(subject string) int {
	return bm.getBucket(subject, bm.eventBuckets)
}

// GetDateBucket returns the UTC day an event belongs to
func (bm *BucketingManager) GetDateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *BucketingManager) GetBucketAssignment(subject string, at time.Time) BucketAssignment {
	return BucketAssignment{
		AccountBucket: bm.GetAccountBucket(subject),
		EventBucket:   bm.GetEventBucket(subject),
		DateBucket:    bm.GetDateBucket(at),
	}
}

func (bm *BucketingManager) AccountBuckets() int {
	return bm.accountBuckets
}

func (bm *BucketingManager) EventBuckets() int {
	return bm.eventBuckets
}

func (bm *BucketingManager) getBucket(key string, numBuckets int) int {
	return int(bm.getHash(key) % uint64(numBuckets))
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
