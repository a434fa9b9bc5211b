package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisCodeStorageTestSuite struct {
	suite.Suite
	useScript bool
	mr        *miniredis.Miniredis
	client    *redis.Client
	store     *RedisCodeStorage
	ctx       context.Context
}

func (s *RedisCodeStorageTestSuite) SetupTest() {
	var err error
	s.mr, err = miniredis.Run()
	s.Require().NoError(err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})
	s.store = NewRedisCodeStorage(s.client, s.useScript)
	s.ctx = context.Background()
}

func (s *RedisCodeStorageTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisCodeStorageGetDel(t *testing.T) {
	suite.Run(t, &RedisCodeStorageTestSuite{})
}

func TestRedisCodeStorageScript(t *testing.T) {
	suite.Run(t, &RedisCodeStorageTestSuite{useScript: true})
}

func (s *RedisCodeStorageTestSuite) TestPutAndTake() {
	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/staff/scan"}
	s.Require().NoError(s.store.PutCode(s.ctx, "abc", payload, 2*time.Minute))

	key := "auth:code:abc"
	s.True(s.mr.Exists(key))
	s.InDelta(2*time.Minute, s.mr.TTL(key), float64(time.Second))

	got, err := s.store.TakeCode(s.ctx, "abc")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("u1", got.UserID)
	s.Equal("/staff/scan", got.RedirectTarget)
	s.False(s.mr.Exists(key))
}

func (s *RedisCodeStorageTestSuite) TestSecondTakeIsEmpty() {
	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/"}
	s.Require().NoError(s.store.PutCode(s.ctx, "once", payload, time.Minute))

	first, err := s.store.TakeCode(s.ctx, "once")
	s.Require().NoError(err)
	s.Require().NotNil(first)

	second, err := s.store.TakeCode(s.ctx, "once")
	s.Require().NoError(err)
	s.Nil(second)
}

func (s *RedisCodeStorageTestSuite) TestUnknownCode() {
	got, err := s.store.TakeCode(s.ctx, "never-issued")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *RedisCodeStorageTestSuite) TestExpiredCode() {
	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/"}
	s.Require().NoError(s.store.PutCode(s.ctx, "old", payload, 2*time.Minute))

	s.mr.FastForward(3 * time.Minute)

	for i := 0; i < 2; i++ {
		got, err := s.store.TakeCode(s.ctx, "old")
		s.Require().NoError(err)
		s.Nil(got)
	}
}

func (s *RedisCodeStorageTestSuite) TestConcurrentTakeSingleWinner() {
	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/"}
	s.Require().NoError(s.store.PutCode(s.ctx, "race", payload, time.Minute))

	const attempts = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		failed  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := s.store.TakeCode(s.ctx, "race")
			if err != nil {
				failed.Add(1)
				return
			}
			if got != nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(0), failed.Load())
	s.Equal(int32(1), winners.Load())
}

func (s *RedisCodeStorageTestSuite) TestStoreDown() {
	s.mr.Close()

	_, err := s.store.TakeCode(s.ctx, "abc")
	s.Error(err)
	s.Error(s.store.Ping(s.ctx))
}

func (s *RedisCodeStorageTestSuite) TestRejectsNonPositiveTTL() {
	payload := &models.HandoffPayload{UserID: "u1"}
	s.Error(s.store.PutCode(s.ctx, "abc", payload, 0))
}
