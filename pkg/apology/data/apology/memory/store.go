package memory

import (
	"context"
	"sync"
	"time"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// store keeps records in id order, with an index by address
type store struct {
	mu        sync.RWMutex
	records   []*apology.Record
	byAddress map[string]*apology.Record
	nextId    uint64
}

// New returns a new in memory apology.Store
func New() apology.Store {
	s := &store{}
	s.reset()
	return s
}

// Save implements apology.Store.Save
func (s *store) Save(_ context.Context, data *apology.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	existing, ok := s.byAddress[data.Address]
	if !ok {
		s.nextId++
		data.Id = s.nextId
		data.LastUpdatedAt = now

		stored := data.Clone()
		s.records = append(s.records, stored)
		s.byAddress[stored.Address] = stored
		return nil
	}

	// Only the on-chain lifecycle of an apology changes after creation
	if data.Slot <= existing.Slot {
		return apology.ErrStaleState
	}
	existing.Status = data.Status
	existing.Resolution = data.Resolution
	existing.Slot = data.Slot
	existing.LastUpdatedAt = now

	existing.CopyTo(data)
	return nil
}

// GetByAddress implements apology.Store.GetByAddress
func (s *store) GetByAddress(_ context.Context, address string) (*apology.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byAddress[address]
	if !ok {
		return nil, apology.ErrApologyNotFound
	}
	return record.Clone(), nil
}

// GetAllByOffender implements apology.Store.GetAllByOffender
func (s *store) GetAllByOffender(_ context.Context, offender string, opts ...query.Option) ([]*apology.Record, error) {
	return s.list(func(r *apology.Record) bool { return r.Offender == offender }, opts)
}

// GetAllByVictim implements apology.Store.GetAllByVictim
func (s *store) GetAllByVictim(_ context.Context, victim string, opts ...query.Option) ([]*apology.Record, error) {
	return s.list(func(r *apology.Record) bool { return r.Victim == victim }, opts)
}

// CountByStatus implements apology.Store.CountByStatus
func (s *store) CountByStatus(_ context.Context, status apologystake.ApologyStatus) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, record := range s.records {
		if record.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *store) list(party func(*apology.Record) bool, opts []query.Option) ([]*apology.Record, error) {
	req, err := apology.ParseQueryOptions(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// records are appended in id order, so a descending walk starts at the end
	// and the cursor bounds the scan from either side
	var res []*apology.Record
	for i := range s.records {
		record := s.records[i]
		if req.Direction == query.Descending {
			record = s.records[len(s.records)-1-i]
		}

		if uint64(len(res)) >= req.Limit {
			break
		}
		if !afterCursor(record.Id, req) || !party(record) {
			continue
		}
		if req.FilterBy.Valid && uint64(record.Status) != req.FilterBy.Value {
			continue
		}
		res = append(res, record.Clone())
	}

	if len(res) == 0 {
		return nil, apology.ErrApologyNotFound
	}
	return res, nil
}

func afterCursor(id uint64, req *query.Options) bool {
	if len(req.Cursor) == 0 {
		return true
	}
	if req.Direction == query.Descending {
		return id < req.Cursor.ToUint64()
	}
	return id > req.Cursor.ToUint64()
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.byAddress = make(map[string]*apology.Record)
	s.nextId = 0
}

