package transaction

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBatchIsolatesFailures(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	lookupErr := errors.New("rent lookup failed")

	factory := ItemFactoryFunc(func(_ context.Context, index int) (*Item, error) {
		if index == 1 {
			return nil, lookupErr
		}
		return newTestItem(t, 99, payer), nil
	})

	results, err := BuildBatch(context.Background(), 3, factory, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		if i == 1 {
			assert.Nil(t, res.Item)
			var buildErr *BuildError
			require.ErrorAs(t, res.Err, &buildErr)
			assert.Equal(t, 1, buildErr.Index)
			assert.ErrorIs(t, res.Err, lookupErr)
			continue
		}
		require.NoError(t, res.Err)
		assert.Equal(t, i, res.Item.Index)
	}
}

func TestBuildBatchRespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	payer := solana.NewWallet().PublicKey()

	factory := ItemFactoryFunc(func(_ context.Context, index int) (*Item, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return newTestItem(t, index, payer), nil
	})

	done := make(chan []BuildResult)
	go func() {
		res, _ := BuildBatch(context.Background(), 6, factory, 2)
		done <- res
	}()
	close(release)
	results := <-done

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBuildBatchRejectsBadInput(t *testing.T) {
	_, err := BuildBatch(context.Background(), 0, ItemFactoryFunc(func(context.Context, int) (*Item, error) {
		return nil, nil
	}), 1)
	assert.Error(t, err)

	_, err = BuildBatch(context.Background(), 1, nil, 1)
	assert.Error(t, err)
}

func TestBuildBatchEmptyItemIsBuildError(t *testing.T) {
	results, err := BuildBatch(context.Background(), 1, ItemFactoryFunc(func(context.Context, int) (*Item, error) {
		return &Item{}, nil
	}), 1)
	require.NoError(t, err)
	var buildErr *BuildError
	assert.ErrorAs(t, results[0].Err, &buildErr)
}
