package scheduler

import (
	"crypto/tls"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"solar_portal_backend/platform/config"
)

const defaultQueue = "default"

var errNoRedis = errors.New("scheduler: REDIS_URL not configured")

// queueSettings is what the client and the worker both derive from config.
type queueSettings struct {
	redis asynq.RedisClientOpt
	queue string
}

func loadQueueSettings(cfg config.SchedulerConfig) (queueSettings, error) {
	if cfg.GetRedisURL() == "" {
		return queueSettings{}, errNoRedis
	}
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return queueSettings{}, err
	}
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = defaultQueue
	}
	return queueSettings{redis: opt, queue: queue}, nil
}

// redisClientOpt turns a redis:// or rediss:// URL into asynq options.
// insecure skips certificate checks and also enables TLS on a plain URL,
// for managed Redis behind a proxy with a private certificate.
func redisClientOpt(redisURL string, insecure bool) (asynq.RedisClientOpt, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	tlsConfig := parsed.TLSConfig
	switch {
	case tlsConfig != nil && insecure:
		tlsConfig = tlsConfig.Clone()
		tlsConfig.InsecureSkipVerify = true
	case tlsConfig == nil && insecure:
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      parsed.Addr,
		Username:  parsed.Username,
		Password:  parsed.Password,
		DB:        parsed.DB,
		TLSConfig: tlsConfig,
	}, nil
}
