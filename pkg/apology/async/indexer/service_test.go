package async_indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/apology/client"
	"github.com/apologystake/stake-server/pkg/apology/common"
	apology_data "github.com/apologystake/stake-server/pkg/apology/data"
	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/apology/program"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
	"github.com/apologystake/stake-server/pkg/testutil"
)

type testEnv struct {
	ctx     context.Context
	ledger  *ledger.Ledger
	clock   *ledger.ManualClock
	client  *client.Client
	data    apology_data.Provider
	service *service
}

func setup(t *testing.T) *testEnv {
	clock := ledger.NewManualClock(time.Unix(1_700_000_000, 0))
	l := ledger.New(clock, ledger.WithTestOverrides(&ledger.TestOverrides{}))
	require.NoError(t, program.Register(l))

	apologyClient := client.New(client.NewLedgerChain(l), client.WithEnvConfigs())
	data := apology_data.NewTestDataProvider()

	return &testEnv{
		ctx:    context.Background(),
		ledger: l,
		clock:  clock,
		client: apologyClient,
		data:   data,
		service: newService(data, apologyClient, withManualTestOverrides(&testOverrides{
			workerCount: 4,
			queueSize:   16,
		})),
	}
}

func (e *testEnv) initialize(t *testing.T, offender, victim *common.Account) *common.ApologyAccounts {
	accounts, _, err := e.client.Initialize(e.ctx, offender, &client.InitializeArgs{
		Victim:        victim,
		ProbationDays: 1,
		StakeAmount:   1_000,
		Message:       "sorry for the thing",
		VictimHandle:  "@victim",
	})
	require.NoError(t, err)
	return accounts
}

func (e *testEnv) fundedAccount(t *testing.T) *common.Account {
	account := testutil.NewRandomAccount(t)
	require.NoError(t, e.ledger.Airdrop(e.ctx, account.ToPublicKey(), 1_000_000_000))
	return account
}

func TestHandle(t *testing.T) {
	env := setup(t)

	offender := env.fundedAccount(t)
	victim := env.fundedAccount(t)
	accounts := env.initialize(t, offender, victim)

	apologies, err := env.client.GetAllApologies(env.ctx)
	require.NoError(t, err)
	require.Len(t, apologies, 1)

	address := accounts.State.PublicKey().ToBytes()

	known, err := env.data.TestForKnownApology(env.ctx, address)
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, env.service.handle(env.ctx, apologies[0]))

	record, err := env.data.GetApologyByAddress(env.ctx, accounts.State.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, accounts.Vault.PublicKey().ToBase58(), record.VaultAddress)
	assert.Equal(t, offender.PublicKey().ToBase58(), record.Offender)
	assert.Equal(t, victim.PublicKey().ToBase58(), record.Victim)
	assert.EqualValues(t, 1_000, record.StakeAmount)
	assert.Equal(t, "sorry for the thing", record.Message)
	assert.Equal(t, "@victim", record.VictimHandle)
	assert.Equal(t, apologystake.ApologyStatusActive, record.Status)
	assert.Equal(t, record.CreatedAt.Add(24*time.Hour), record.ProbationEnd)

	known, err = env.data.TestForKnownApology(env.ctx, address)
	require.NoError(t, err)
	assert.True(t, known)

	// Observing the same slot again is a no-op
	require.NoError(t, env.service.handle(env.ctx, apologies[0]))

	env.clock.Advance(24 * time.Hour)
	_, err = env.client.Claim(env.ctx, victim, accounts.State)
	require.NoError(t, err)

	apologies, err = env.client.GetAllApologies(env.ctx)
	require.NoError(t, err)
	require.Len(t, apologies, 1)
	require.NoError(t, env.service.handle(env.ctx, apologies[0]))

	record, err = env.data.GetApologyByAddress(env.ctx, accounts.State.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, apologystake.ApologyStatusCompleted, record.Status)
	assert.Equal(t, apologystake.ResolutionClaimed, record.Resolution)
	assert.Equal(t, apologies[0].Slot, record.Slot)
}

func TestStart(t *testing.T) {
	env := setup(t)

	offender := env.fundedAccount(t)
	victim := env.fundedAccount(t)
	first := env.initialize(t, offender, victim)
	second := env.initialize(t, offender, victim)

	ctx, cancel := context.WithCancel(env.ctx)
	stopped := make(chan error, 1)
	go func() {
		stopped <- env.service.Start(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		records, err := env.data.GetAllApologiesByOffender(env.ctx, offender.PublicKey().ToBase58())
		return err == nil && len(records) == 2
	}, time.Second, 5*time.Millisecond)

	env.clock.Advance(24 * time.Hour)
	_, err := env.client.Release(env.ctx, victim, first.State)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		records, err := env.data.GetAllApologiesByVictim(
			env.ctx,
			victim.PublicKey().ToBase58(),
			apology.WithStatus(apologystake.ApologyStatusCompleted),
		)
		return err == nil && len(records) == 1
	}, time.Second, 5*time.Millisecond)

	record, err := env.data.GetApologyByAddress(env.ctx, first.State.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, apologystake.ResolutionReleased, record.Resolution)

	record, err = env.data.GetApologyByAddress(env.ctx, second.State.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, apologystake.ApologyStatusActive, record.Status)

	count, err := env.data.GetApologyCountByStatus(env.ctx, apologystake.ApologyStatusActive)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("service didn't stop")
	}
}
