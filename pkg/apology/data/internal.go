package data

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	apology_memory_client "github.com/apologystake/stake-server/pkg/apology/data/apology/memory"
	apology_postgres_client "github.com/apologystake/stake-server/pkg/apology/data/apology/postgres"
	pg "github.com/apologystake/stake-server/pkg/database/postgres"
	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// Most apologies are looked up repeatedly by address right after being
// created or completed, so only a bounded working set is kept.
const maxCachedApologies = 100000

type apologyCacheEntry struct {
	mu        sync.RWMutex
	record    *apology.Record
	fetchedAt time.Time
}

func (e *apologyCacheEntry) set(record *apology.Record) {
	e.record = record.Clone()
	e.fetchedAt = time.Now()
}

func (e *apologyCacheEntry) fresh(ttl time.Duration) bool {
	return time.Since(e.fetchedAt) < ttl
}

type DatabaseData interface {
	// Apology
	// --------------------------------------------------------------------------------
	SaveApology(ctx context.Context, record *apology.Record) error
	GetApologyByAddress(ctx context.Context, address string) (*apology.Record, error)
	GetAllApologiesByOffender(ctx context.Context, offender string, opts ...query.Option) ([]*apology.Record, error)
	GetAllApologiesByVictim(ctx context.Context, victim string, opts ...query.Option) ([]*apology.Record, error)
	GetApologyCountByStatus(ctx context.Context, status apologystake.ApologyStatus) (uint64, error)
}

// DatabaseProvider serves apology records from a store, with a read-through
// cache for lookups by address. Saves made through the provider update the
// cache; saves made elsewhere are visible once the cached entry expires.
type DatabaseProvider struct {
	apologies apology.Store

	// Nil disables caching
	apologyCache    *lru.Cache[string, *apologyCacheEntry]
	apologyCacheTTL time.Duration
}

func NewDatabaseProvider(dbConfig *pg.Config, configProvider ConfigProvider) (*DatabaseProvider, error) {
	conf := configProvider()

	db, err := openDB(context.Background(), dbConfig, conf.useAwsIam.Get(context.Background()))
	if err != nil {
		return nil, err
	}

	return newCachedProvider(apology_postgres_client.New(db), conf.apologyCacheTTL.Get(context.Background()))
}

func openDB(ctx context.Context, dbConfig *pg.Config, useAwsIam bool) (*sql.DB, error) {
	if !useAwsIam {
		return pg.NewWithUsernameAndPassword(ctx, dbConfig)
	}

	awsConfig, err := external.LoadDefaultAWSConfig()
	if err != nil {
		return nil, errors.Wrap(err, "error loading aws config")
	}
	return pg.NewWithAwsIam(ctx, dbConfig, awsConfig)
}

func newCachedProvider(store apology.Store, ttl time.Duration) (*DatabaseProvider, error) {
	apologyCache, err := lru.New[string, *apologyCacheEntry](maxCachedApologies)
	if err != nil {
		return nil, errors.Wrap(err, "error creating apology cache")
	}

	return &DatabaseProvider{
		apologies:       store,
		apologyCache:    apologyCache,
		apologyCacheTTL: ttl,
	}, nil
}

func NewTestDatabaseProvider() *DatabaseProvider {
	return &DatabaseProvider{
		apologies: apology_memory_client.New(),
	}
}

func newTestDatabaseProviderWithCache(configProvider ConfigProvider) *DatabaseProvider {
	dp, err := newCachedProvider(apology_memory_client.New(), configProvider().apologyCacheTTL.Get(context.Background()))
	if err != nil {
		panic(err)
	}
	return dp
}

// Apology
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveApology(ctx context.Context, record *apology.Record) error {
	if err := dp.apologies.Save(ctx, record); err != nil {
		return err
	}

	if dp.apologyCache == nil {
		return nil
	}

	if entry, ok := dp.apologyCache.Get(record.Address); ok {
		entry.mu.Lock()
		entry.set(record)
		entry.mu.Unlock()
	}
	return nil
}
func (dp *DatabaseProvider) GetApologyByAddress(ctx context.Context, address string) (*apology.Record, error) {
	if dp.apologyCache == nil {
		return dp.apologies.GetByAddress(ctx, address)
	}

	entry, ok := dp.apologyCache.Get(address)
	if !ok {
		record, err := dp.apologies.GetByAddress(ctx, address)
		if err != nil {
			return nil, err
		}

		entry = &apologyCacheEntry{}
		entry.set(record)
		dp.apologyCache.Add(address, entry)
		return record, nil
	}

	entry.mu.RLock()
	if entry.fresh(dp.apologyCacheTTL) {
		defer entry.mu.RUnlock()
		return entry.record.Clone(), nil
	}
	entry.mu.RUnlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Another reader may have refreshed the entry while we waited
	if entry.fresh(dp.apologyCacheTTL) {
		return entry.record.Clone(), nil
	}

	record, err := dp.apologies.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	entry.set(record)
	return record, nil
}
func (dp *DatabaseProvider) GetAllApologiesByOffender(ctx context.Context, offender string, opts ...query.Option) ([]*apology.Record, error) {
	return dp.apologies.GetAllByOffender(ctx, offender, opts...)
}
func (dp *DatabaseProvider) GetAllApologiesByVictim(ctx context.Context, victim string, opts ...query.Option) ([]*apology.Record, error) {
	return dp.apologies.GetAllByVictim(ctx, victim, opts...)
}
func (dp *DatabaseProvider) GetApologyCountByStatus(ctx context.Context, status apologystake.ApologyStatus) (uint64, error) {
	return dp.apologies.CountByStatus(ctx, status)
}
