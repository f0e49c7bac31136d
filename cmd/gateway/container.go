// cmd/gateway/container.go
//
// Root composition root. Owns infrastructure (DB, Redis) and composes
// the gateway's bounded-context container, following the teacher's
// cmd/container.go split between infrastructure and module wiring.
package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/unigatehq/gateway/pkg/config"
	"github.com/unigatehq/gateway/pkg/gateway/gwcontainer"
	"github.com/unigatehq/gateway/pkg/logx"
)

// Container holds shared infrastructure and the gateway module container.
type Container struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client

	Gateway *gwcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("gateway: initializing application container")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initModules()

	logx.Info("gateway: application container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	logx.Info("gateway: initializing infrastructure")

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Config.Database.Host,
		c.Config.Database.Port,
		c.Config.Database.User,
		c.Config.Database.Password,
		c.Config.Database.Name,
		c.Config.Database.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logx.Fatalf("gateway: failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("gateway: database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("gateway: failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("gateway: redis connected")
}

func (c *Container) initModules() {
	logx.Info("gateway: initializing modules")
	c.Gateway = gwcontainer.New(gwcontainer.Deps{
		DB:    c.DB,
		Redis: c.Redis,
		Cfg:   c.Config,
	})
}

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("gateway: starting background services")
	c.Gateway.StartBackgroundServices(ctx)
}

func (c *Container) Cleanup() {
	logx.Info("gateway: cleaning up resources")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("gateway: error closing database: %v", err)
		} else {
			logx.Info("gateway: database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("gateway: error closing redis: %v", err)
		} else {
			logx.Info("gateway: redis connection closed")
		}
	}

	logx.Info("gateway: cleanup complete")
}
