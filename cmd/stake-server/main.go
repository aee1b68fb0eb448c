package main

import (
	"context"
	"sync"

	"github.com/gorilla/mux"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/app"
	"github.com/apologystake/stake-server/pkg/apology/async"
	async_indexer "github.com/apologystake/stake-server/pkg/apology/async/indexer"
	"github.com/apologystake/stake-server/pkg/apology/client"
	apology_data "github.com/apologystake/stake-server/pkg/apology/data"
	"github.com/apologystake/stake-server/pkg/apology/server/web"
	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/solana"
)

type stakeApp struct {
	log             *logrus.Entry
	conf            *conf
	metricsProvider *newrelic.Application

	data    apology_data.Provider
	indexer async.Service
	web     *web.Server

	cancelIndexer context.CancelFunc
	indexerDone   chan struct{}

	shutdown   sync.Once
	shutdownCh chan struct{}
}

func main() {
	recoverPanics := app.RecoverPanics(logrus.StandardLogger().WithField("type", "http"))
	if err := app.Run(newStakeApp(), app.WithMiddleware(recoverPanics)); err != nil {
		logrus.WithError(err).Fatal("error running service")
	}
}

func newStakeApp() *stakeApp {
	return &stakeApp{
		log:         logrus.StandardLogger().WithField("type", "stake-server"),
		conf:        withEnvConfigs(),
		indexerDone: make(chan struct{}),
		shutdownCh:  make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *stakeApp) Init(_ app.Config, metricsProvider *newrelic.Application) error {
	ctx := context.Background()

	data, err := apology_data.NewDataProvider(a.conf.dbConfig(ctx), apology_data.WithEnvConfigs())
	if err != nil {
		return errors.Wrap(err, "failed to initialize data provider")
	}

	rpc := solana.New(a.conf.solanaRpcEndpoint.Get(ctx))
	apologyClient := client.New(client.NewRPCChain(rpc, solana.CommitmentConfirmed), client.WithEnvConfigs())

	a.metricsProvider = metricsProvider
	a.data = data
	a.indexer = async_indexer.New(data, apologyClient, async_indexer.WithEnvConfigs())
	a.web, err = web.NewApologyServer(data, web.WithEnvConfigs())
	if err != nil {
		return errors.Wrap(err, "failed to initialize web server")
	}

	indexerCtx, cancel := context.WithCancel(metrics.NewContext(ctx, metricsProvider))
	a.cancelIndexer = cancel

	go func() {
		defer close(a.indexerDone)

		err := a.indexer.Start(indexerCtx, a.conf.indexerInterval.Get(ctx))
		if err != nil {
			a.log.WithError(err).Warn("apology indexer stopped")
			a.shutdown.Do(func() { close(a.shutdownCh) })
		}
	}()

	return nil
}

// RegisterWithHTTP implements app.App.RegisterWithHTTP
func (a *stakeApp) RegisterWithHTTP(router *mux.Router) {
	a.web.Register(router, a.metricsProvider)
}

// ShutdownChan implements app.App.ShutdownChan
func (a *stakeApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *stakeApp) Stop() {
	if a.cancelIndexer != nil {
		a.cancelIndexer()
		<-a.indexerDone
	}
}
