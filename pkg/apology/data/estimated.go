package data

import (
	"context"
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/apologystake/stake-server/pkg/metrics"
)

const (
	estimatedProviderMetricsName = "data.estimated_provider"

	expectedApologyCount      = 1_000_000
	knownApologyFalsePositive = 0.01
)

var (
	ErrInvalidApologyAddress = errors.New("invalid apology address")
)

type EstimatedData interface {
	// TestForKnownApology reports whether the apology address may have been
	// seen before. False positives are possible, false negatives are not.
	TestForKnownApology(ctx context.Context, address []byte) (bool, error)
	AddKnownApology(ctx context.Context, address []byte) error
}

// EstimatedProvider tracks approximate, in-process state that is rebuilt
// from scratch on every restart.
type EstimatedProvider struct {
	mu             sync.RWMutex
	knownApologies *bloom.BloomFilter
}

func NewEstimatedProvider() *EstimatedProvider {
	return &EstimatedProvider{
		knownApologies: bloom.NewWithEstimates(expectedApologyCount, knownApologyFalsePositive),
	}
}

func (p *EstimatedProvider) TestForKnownApology(ctx context.Context, address []byte) (bool, error) {
	tracer := metrics.TraceMethodCall(ctx, estimatedProviderMetricsName, "TestForKnownApology")
	defer tracer.End()

	if len(address) == 0 {
		return false, ErrInvalidApologyAddress
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.knownApologies.Test(address), nil
}

func (p *EstimatedProvider) AddKnownApology(ctx context.Context, address []byte) error {
	tracer := metrics.TraceMethodCall(ctx, estimatedProviderMetricsName, "AddKnownApology")
	defer tracer.End()

	if len(address) == 0 {
		return ErrInvalidApologyAddress
	}

	p.mu.Lock()
	p.knownApologies.Add(address)
	p.mu.Unlock()
	return nil
}
