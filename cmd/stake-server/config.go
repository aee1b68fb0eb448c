package main

import (
	"context"
	"time"

	"github.com/apologystake/stake-server/pkg/config"
	"github.com/apologystake/stake-server/pkg/config/env"
	pg "github.com/apologystake/stake-server/pkg/database/postgres"
	"github.com/apologystake/stake-server/pkg/solana"
)

const (
	SolanaRpcEndpointConfigEnvName = "SOLANA_RPC_ENDPOINT"
	defaultSolanaRpcEndpoint       = string(solana.EnvironmentDev)

	IndexerIntervalConfigEnvName = "APOLOGY_INDEXER_INTERVAL"
	defaultIndexerInterval       = 5 * time.Second

	DbHostConfigEnvName     = "DB_HOST"
	DbPortConfigEnvName     = "DB_PORT"
	DbUserConfigEnvName     = "DB_USER"
	DbPasswordConfigEnvName = "DB_PASSWORD"
	DbNameConfigEnvName     = "DB_NAME"
	defaultDbPort           = 5432
	defaultDbName           = "apologystake"

	DbMaxOpenConnectionsConfigEnvName = "DB_MAX_OPEN_CONNECTIONS"
	defaultDbMaxOpenConnections       = 20

	DbMaxIdleConnectionsConfigEnvName = "DB_MAX_IDLE_CONNECTIONS"
	defaultDbMaxIdleConnections       = 10
)

type conf struct {
	solanaRpcEndpoint config.String
	indexerInterval   config.Duration

	dbHost               config.String
	dbPort               config.Uint64
	dbUser               config.String
	dbPassword           config.String
	dbName               config.String
	dbMaxOpenConnections config.Uint64
	dbMaxIdleConnections config.Uint64
}

func withEnvConfigs() *conf {
	return &conf{
		solanaRpcEndpoint: env.NewStringConfig(SolanaRpcEndpointConfigEnvName, defaultSolanaRpcEndpoint),
		indexerInterval:   env.NewDurationConfig(IndexerIntervalConfigEnvName, defaultIndexerInterval),

		dbHost:               env.NewStringConfig(DbHostConfigEnvName, ""),
		dbPort:               env.NewUint64Config(DbPortConfigEnvName, defaultDbPort),
		dbUser:               env.NewStringConfig(DbUserConfigEnvName, ""),
		dbPassword:           env.NewStringConfig(DbPasswordConfigEnvName, ""),
		dbName:               env.NewStringConfig(DbNameConfigEnvName, defaultDbName),
		dbMaxOpenConnections: env.NewUint64Config(DbMaxOpenConnectionsConfigEnvName, defaultDbMaxOpenConnections),
		dbMaxIdleConnections: env.NewUint64Config(DbMaxIdleConnectionsConfigEnvName, defaultDbMaxIdleConnections),
	}
}

func (c *conf) dbConfig(ctx context.Context) *pg.Config {
	return &pg.Config{
		Host:               c.dbHost.Get(ctx),
		Port:               int(c.dbPort.Get(ctx)),
		User:               c.dbUser.Get(ctx),
		Password:           c.dbPassword.Get(ctx),
		DbName:             c.dbName.Get(ctx),
		MaxOpenConnections: int(c.dbMaxOpenConnections.Get(ctx)),
		MaxIdleConnections: int(c.dbMaxIdleConnections.Get(ctx)),
	}
}
