package app

import (
	"context"

	"github.com/humanbelnik/senryu/internal/config"
	http_init "github.com/humanbelnik/senryu/internal/delivery/http/init"
	http_access_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/access"
	http_auth_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/auth"
	http_logging_middleware "github.com/humanbelnik/senryu/internal/delivery/http/middleware/logging"
	http_room "github.com/humanbelnik/senryu/internal/delivery/http/room"
	http_round "github.com/humanbelnik/senryu/internal/delivery/http/round"
	http_user "github.com/humanbelnik/senryu/internal/delivery/http/user"
	ws_room "github.com/humanbelnik/senryu/internal/delivery/ws/room"
	infra_pg_init "github.com/humanbelnik/senryu/internal/infra/postgres/init"
	infra_postgres_room "github.com/humanbelnik/senryu/internal/infra/postgres/room"
	infra_postgres_round "github.com/humanbelnik/senryu/internal/infra/postgres/round"
	infra_postgres_user "github.com/humanbelnik/senryu/internal/infra/postgres/user"
	infra_redis_init "github.com/humanbelnik/senryu/internal/infra/redis/init"
	infra_redis_presence "github.com/humanbelnik/senryu/internal/infra/redis/presence"
	infra_redis_roomfeed "github.com/humanbelnik/senryu/internal/infra/redis/roomfeed"
	infra_session_cache "github.com/humanbelnik/senryu/internal/infra/redis/session"
	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
)

const redisPrefix = "senryu"

// Go runs the API until ctx is done.
func Go(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger()

	redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
	defer func() { _ = redisConn.Close() }()
	pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
	defer func() { _ = pgConn.Close() }()

	roomRepository := infra_postgres_room.New(pgConn)
	userRepository := infra_postgres_user.New(pgConn)
	roundRepository := infra_postgres_round.New(pgConn)

	sessionCache := infra_session_cache.New(redisConn, redisPrefix+":session")
	roomFeed := infra_redis_roomfeed.New(redisConn, redisPrefix, infra_redis_roomfeed.WithLogger(logger))
	presence := infra_redis_presence.New(redisConn, redisPrefix+":presence")

	userUC := usecase_user.New(userRepository, sessionCache, &cfg.Session.TokenTTL,
		usecase_user.WithPublisher(roomFeed),
		usecase_user.WithLogger(logger),
	)
	roomUC := usecase_room.New(roomRepository, userRepository, roomFeed, usecase_room.WithLogger(logger))
	roundUC := usecase_round.New(nil, roomRepository, userRepository, roundRepository, roomFeed, usecase_round.WithLogger(logger))

	hub := ws_room.NewHub(roomFeed, presence, ws_room.WithLogger(logger))
	go hub.Run(ctx)

	authMiddleware := http_auth_middleware.New(userUC, http_auth_middleware.WithLogger(logger))

	controllerPool := http_init.NewControllerPool(logger,
		http_logging_middleware.Requests(logger),
		http_access_middleware.ReadOnly(cfg.HTTP.ReadOnly),
	)
	controllerPool.Add(http_user.New(userUC, authMiddleware, http_user.WithLogger(logger)))
	controllerPool.Add(http_room.New(roomUC, authMiddleware,
		http_room.WithLogger(logger),
		http_room.WithPresence(presence),
	))
	controllerPool.Add(http_round.New(roundUC, authMiddleware, http_round.WithLogger(logger)))
	controllerPool.Add(ws_room.NewController(hub, roundUC, authMiddleware))

	controllerPool.Register()
	return controllerPool.RunAll(ctx, cfg.HTTP.Port)
}

// Migrate applies the database schema and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	cfg.Logger()

	pg := cfg.Postgres
	pg.Migrate = false
	pgConn := infra_pg_init.MustEstablishConn(pg)
	defer func() { _ = pgConn.Close() }()

	return infra_pg_init.Migrate(ctx, pgConn)
}
