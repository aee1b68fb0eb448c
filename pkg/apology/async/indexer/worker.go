package async_indexer

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/apology/client"
	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/retry"
)

const (
	discoveredApologiesMetricName = "ApologyIndexer_DiscoveredApologies"
)

type update struct {
	apology *client.Apology
	done    func()
}

func (p *service) sweepWorker(serviceCtx context.Context, interval time.Duration) error {
	log := p.log.WithField("method", "sweepWorker")
	log.Debug("worker started")

	p.metricStatusLock.Lock()
	p.sweepWorkerStatus = true
	p.metricStatusLock.Unlock()
	defer func() {
		p.metricStatusLock.Lock()
		p.sweepWorkerStatus = false
		p.metricStatusLock.Unlock()

		log.Debug("worker stopped")
	}()

	delay := 0 * time.Second // Initially no delay, so we can run right after a deploy
	return retry.Loop(
		func() error {
			select {
			case <-serviceCtx.Done():
				return serviceCtx.Err()
			case <-time.After(delay):
			}

			start := time.Now()
			defer func() {
				delay = interval - time.Since(start)
			}()

			nr, _ := metrics.FromContext(serviceCtx)
			m := nr.StartTransaction("async__apology_indexer_service__sweep_worker")
			defer m.End()
			tracedCtx := newrelic.NewContext(serviceCtx, m)

			err := p.sweep(tracedCtx)
			if err != nil {
				m.NoticeError(err)
				log.WithError(err).Warn("failure sweeping apologies")
			}
			return err
		},
		retry.NonRetriableErrors(context.Canceled, context.DeadlineExceeded),
	)
}

// sweep fetches every apology account and waits until each one has been
// handled by an update worker
func (p *service) sweep(ctx context.Context) error {
	apologies, err := p.source.GetAllApologies(ctx)
	if err != nil {
		return errors.Wrap(err, "error getting apologies")
	}

	var wg sync.WaitGroup
	var slot uint64
	for _, item := range apologies {
		wg.Add(1)
		err := p.updates.Send(ctx, item.Address.PublicKey().ToBytes(), &update{
			apology: item,
			done:    wg.Done,
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}

		if item.Slot > slot {
			slot = item.Slot
		}
	}
	wg.Wait()

	p.metricStatusLock.Lock()
	p.lastSweepSize = len(apologies)
	if slot > 0 {
		p.lastSweepSlot = slot
	}
	p.metricStatusLock.Unlock()

	return nil
}

func (p *service) updateWorker(serviceCtx context.Context, id int, updates <-chan *update) {
	log := p.log.WithFields(logrus.Fields{
		"method":    "updateWorker",
		"worker_id": id,
	})

	log.Debug("worker started")
	defer log.Debug("worker stopped")

	for u := range updates {
		err := p.handle(serviceCtx, u.apology)

		p.metricStatusLock.Lock()
		p.updatesProcessed++
		if err != nil {
			p.updatesFailed++
		}
		p.metricStatusLock.Unlock()

		if err != nil {
			log.WithError(err).
				WithField("apology", u.apology.Address.PublicKey().ToBase58()).
				Warn("failure indexing apology")
		}

		u.done()
	}
}

func (p *service) handle(ctx context.Context, item *client.Apology) error {
	address := item.Address.PublicKey().ToBytes()

	record, err := apology.NewRecordFromProgramAccount(
		item.Address.PublicKey().ToBase58(),
		item.Vault.PublicKey().ToBase58(),
		item.State,
		item.Slot,
	)
	if err != nil {
		return err
	}

	err = p.data.SaveApology(ctx, record)
	switch err {
	case nil:
	case apology.ErrStaleState:
		// Nothing changed since the last sweep
	default:
		return err
	}

	known, err := p.data.TestForKnownApology(ctx, address)
	if err != nil {
		return err
	}
	if !known {
		metrics.RecordCount(ctx, discoveredApologiesMetricName, 1)
		return p.data.AddKnownApology(ctx, address)
	}
	return nil
}
