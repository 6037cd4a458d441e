package cache

import (
	"context"
	"errors"
	"futureflow/conf"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedis 初始化redisClient
func InitRedis(redisCfg conf.RedisConfig) error {
	redisClient = redis.NewClient(&redis.Options{
		DB:              redisCfg.Db,
		Addr:            redisCfg.Addr,
		Password:        redisCfg.Password,
		PoolSize:        redisCfg.PoolSize,
		MinIdleConns:    redisCfg.MinIdleConns,
		ConnMaxIdleTime: time.Duration(redisCfg.IdleTimeout) * time.Second,
	})
	return redisClient.Ping(context.TODO()).Err()
}

func GetRedisClient() *redis.Client {
	if nil == redisClient {
		panic("Please initialize the Redis client first!")
	}
	return redisClient
}

// 关闭redis client
func CloseRedis() {
	if nil != redisClient {
		_ = redisClient.Close()
	}
}

// ErrLeaseHeld 租约被其他进程持有
var ErrLeaseHeld = errors.New("lease held by another owner")

// Lease 主连合约的单写者租约，同一时刻只有一个进程驱动某个合约+方向
type Lease interface {
	Acquire(ctx context.Context, key string) error
	Renew(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// 只有持有者才能续约/释放
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type RedisLease struct {
	client redis.Cmdable
	owner  string
	ttl    time.Duration
	prefix string
}

func NewRedisLease(client redis.Cmdable, owner string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLease{client: client, owner: owner, ttl: ttl, prefix: "futureflow:lease:"}
}

func (l *RedisLease) Acquire(ctx context.Context, key string) error {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.owner, l.ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// 自己持有时视为续约
	return l.Renew(ctx, key)
}

func (l *RedisLease) Renew(ctx context.Context, key string) error {
	n, err := renewScript.Run(ctx, l.client, []string{l.prefix + key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

func (l *RedisLease) Release(ctx context.Context, key string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, l.owner).Result()
	return err
}

var _ Lease = (*RedisLease)(nil)
