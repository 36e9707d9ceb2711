package redis

import (
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// NewAsynqRedisOptions converts go-redis options to Asynq connection options
func NewAsynqRedisOptions(opt *redis.Options) *asynq.RedisClientOpt {
	return &asynq.RedisClientOpt{
		Network:      opt.Network,
		Addr:         opt.Addr,
		Username:     opt.Username,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.DialTimeout,
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
		PoolSize:     opt.PoolSize,
		TLSConfig:    opt.TLSConfig,
	}
}

// NewClient opens a go-redis client and the matching Asynq options for the
// same server.
func (c *Config) NewClient() (*redis.Client, *asynq.RedisClientOpt, error) {
	opt, err := c.Options()
	if err != nil {
		return nil, nil, err
	}

	return redis.NewClient(opt), NewAsynqRedisOptions(opt), nil
}
