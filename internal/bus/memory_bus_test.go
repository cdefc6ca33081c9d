// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"testing"

	"github.com/ManuGH/vidrec/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "snap")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), "snap", i))
	}
	require.Equal(t, 0, <-sub.C())
	require.Equal(t, 1, <-sub.C())
	require.Equal(t, 2, <-sub.C())
}

func TestMemoryBusEvictsOldestWhenFull(t *testing.T) {
	b := NewMemoryBusWithBuffer(2)
	sub, err := b.Subscribe(context.Background(), "snap")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	before := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("snap", "overflow"))

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Publish(context.Background(), "snap", i))
	}

	require.Equal(t, 2, <-sub.C())
	require.Equal(t, 3, <-sub.C())
	require.Equal(t, before+2, getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("snap", "overflow")))
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "snap")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, b.Publish(context.Background(), "snap", "late"))
	_, ok := <-sub.C()
	require.False(t, ok)
}

func TestMemoryBusPublishRejectsDoneContext(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Publish(ctx, "snap", 1), context.Canceled)

	//nolint:staticcheck // nil context is part of the contract
	err := b.Publish(nil, "snap", 1)
	require.ErrorContains(t, err, "context is nil")
}
