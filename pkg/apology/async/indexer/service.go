package async_indexer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/apology/async"
	"github.com/apologystake/stake-server/pkg/apology/client"
	apology_data "github.com/apologystake/stake-server/pkg/apology/data"
	sync_util "github.com/apologystake/stake-server/pkg/sync"
)

// Source lists the apology accounts currently on chain
type Source interface {
	GetAllApologies(ctx context.Context) ([]*client.Apology, error)
}

type service struct {
	log    *logrus.Entry
	conf   *conf
	data   apology_data.Provider
	source Source

	updates *sync_util.StripedChannel[*update]

	metricStatusLock  sync.RWMutex
	sweepWorkerStatus bool
	lastSweepSlot     uint64
	lastSweepSize     int
	updatesProcessed  int
	updatesFailed     int
}

// New returns a service that copies on chain apology accounts into the
// apology store
func New(data apology_data.Provider, source Source, configProvider ConfigProvider) async.Service {
	return newService(data, source, configProvider)
}

func newService(data apology_data.Provider, source Source, configProvider ConfigProvider) *service {
	conf := configProvider()
	ctx := context.Background()

	return &service{
		log:     logrus.StandardLogger().WithField("service", "apology_indexer"),
		conf:    conf,
		data:    data,
		source:  source,
		updates: sync_util.NewStripedChannel[*update](uint(conf.workerCount.Get(ctx)), uint(conf.queueSize.Get(ctx))),
	}
}

// Start runs the sweep worker at the provided interval until ctx is done
func (p *service) Start(ctx context.Context, interval time.Duration) error {
	var wg sync.WaitGroup
	for i, updates := range p.updates.Receivers() {
		wg.Add(1)
		go func(id int, updates <-chan *update) {
			defer wg.Done()
			p.updateWorker(ctx, id, updates)
		}(i, updates)
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)

		err := p.sweepWorker(ctx, interval)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("sweep worker terminated unexpectedly")
		}
	}()

	go func() {
		err := p.metricsGaugeWorker(ctx)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("metrics gauge loop terminated unexpectedly")
		}
	}()

	<-ctx.Done()

	// Gracefully shutdown once nothing can send more updates
	<-sweepDone
	p.updates.Close()
	wg.Wait()

	return nil
}
