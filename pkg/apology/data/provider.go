package data

import (
	pg "github.com/apologystake/stake-server/pkg/database/postgres"
)

// Provider is the single entry point services use to reach apology state,
// whether durable or estimated.
type Provider interface {
	DatabaseData
	EstimatedData

	GetDatabaseDataProvider() DatabaseData
	GetEstimatedDataProvider() EstimatedData
}

type provider struct {
	*DatabaseProvider
	*EstimatedProvider
}

func NewDataProvider(dbConfig *pg.Config, configProvider ConfigProvider) (Provider, error) {
	db, err := NewDatabaseProvider(dbConfig, configProvider)
	if err != nil {
		return nil, err
	}

	return &provider{
		DatabaseProvider:  db,
		EstimatedProvider: NewEstimatedProvider(),
	}, nil
}

// NewTestDataProvider returns a Provider backed entirely by memory
func NewTestDataProvider() Provider {
	return &provider{
		DatabaseProvider:  NewTestDatabaseProvider(),
		EstimatedProvider: NewEstimatedProvider(),
	}
}

func (p *provider) GetDatabaseDataProvider() DatabaseData {
	return p.DatabaseProvider
}

func (p *provider) GetEstimatedDataProvider() EstimatedData {
	return p.EstimatedProvider
}
