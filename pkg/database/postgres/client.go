package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	// Registers the "nrpgx" driver, pgx instrumented with New Relic segments
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	connMaxIdleTime = time.Hour
	connMaxLifetime = time.Hour
	pingTimeout     = 10 * time.Second
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

func (c *Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewWithUsernameAndPassword opens a connection pool authenticated with the
// configured password.
func NewWithUsernameAndPassword(ctx context.Context, config *Config) (*sql.DB, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.User, config.Password),
		Host:     config.address(),
		Path:     "/" + config.DbName,
		RawQuery: "sslmode=disable",
	}
	return open(ctx, config, dsn.String())
}

// NewWithAwsIam opens a connection pool authenticated with a short lived RDS
// IAM token in place of the password. Provisioned Aurora clusters only.
//
// Reference: https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(ctx context.Context, config *Config, awsConfig aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(awsConfig)

	token, err := rdsutils.BuildAuthToken(config.address(), rdsClient.Region, config.User, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "error building rds auth token")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.User, token, config.DbName,
	)
	return open(ctx, config, dsn)
}

func open(ctx context.Context, config *Config, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error connecting to database")
	}
	return db, nil
}
