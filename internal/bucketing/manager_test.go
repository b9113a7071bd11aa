package bucketing

import (
	"fmt"
	"testing"
	"time"

	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/assert"
)

func TestBucketsAreStable(t *testing.T) {
	bm := NewBucketingManagerWithSizes(64, 16)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("user%d@example.com", i)
		b := bm.GetAccountBucket(key)
		assert.Equal(t, b, bm.GetAccountBucket(key))
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 64)

		e := bm.GetEventBucket(key)
		assert.GreaterOrEqual(t, e, 0)
		assert.Less(t, e, 16)
	}
}

func TestBucketMatchesMurmur(t *testing.T) {
	bm := NewBucketingManagerWithSizes(1024, 256)
	key := "alice@example.com"
	assert.Equal(t, int(murmur3.Sum64([]byte(key))%1024), bm.GetAccountBucket(key))
	assert.Equal(t, int(murmur3.Sum64([]byte(key))%256), bm.GetEventBucket(key))
}

func TestBucketsSpread(t *testing.T) {
	bm := NewBucketingManagerWithSizes(8, 8)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[bm.GetAccountBucket(fmt.Sprintf("k%d", i))] = true
	}
	assert.Len(t, seen, 8)
}

func TestDefaultsAndAssignment(t *testing.T) {
	bm := NewBucketingManagerWithSizes(0, -1)
	assert.Equal(t, defaultAccountBuckets, bm.AccountBuckets())
	assert.Equal(t, defaultEventBuckets, bm.EventBuckets())

	at := time.Date(2025, 6, 30, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	a := bm.GetBucketAssignment("u1", at)
	assert.Equal(t, "2025-07-01", a.DateBucket)
	assert.Equal(t, bm.GetAccountBucket("u1"), a.AccountBucket)
}
