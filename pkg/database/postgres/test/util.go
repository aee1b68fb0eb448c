package test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/apologystake/stake-server/pkg/retry"
	"github.com/apologystake/stake-server/pkg/retry/backoff"
)

const (
	image    = "postgres"
	tag      = "14-alpine"
	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"

	// Containers are killed by docker after this even if the test crashes
	containerExpiry = 2 * time.Minute

	startupPollInterval = 500 * time.Millisecond
	startupPollAttempts = 60
)

// StartPostgresDB runs a throwaway postgres container and returns a client
// connected to it. closeFunc purges the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        tag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "failed to start postgres container")
	}

	closeFunc = func() {
		_ = pool.Purge(resource)
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerExpiry.Seconds()))

	url := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user, password, resource.GetHostPort("5432/tcp"), dbname,
	)

	startup := retry.NewRetrier(
		retry.Limit(startupPollAttempts),
		retry.Backoff(backoff.Constant(startupPollInterval), startupPollInterval),
	)
	_, err = startup.Retry(context.Background(), func() error {
		db, err = sql.Open("pgx", url)
		if err != nil {
			return err
		}
		return db.Ping()
	})
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return db, closeFunc, nil
}
