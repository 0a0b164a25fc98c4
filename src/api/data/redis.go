package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const noncePrefix = "nonce:"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func SetNonce(ctx context.Context, rdb *redis.Client, countryID, nonce string) error {
	return rdb.Set(ctx, noncePrefix+countryID, nonce, 5*time.Minute).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, countryID string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+countryID).Result()
}

// PublishRoom mirrors a realtime broadcast onto the Redis channel for a room
// so additional instances can fan it out to their own connections.
func PublishRoom(ctx context.Context, rdb *redis.Client, roomID string, payload []byte) error {
	return rdb.Publish(ctx, "room:"+roomID, payload).Err()
}
