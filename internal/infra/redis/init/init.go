package infra_redis_init

import (
	"fmt"

	"github.com/go-redis/redis"
	"github.com/humanbelnik/senryu/internal/config"
	log "github.com/sirupsen/logrus"
)

func MustEstablishConn(cfg config.RedisCache) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping().Err(); err != nil {
		log.WithError(err).Fatal("redis ping failed")
	}

	return client
}
