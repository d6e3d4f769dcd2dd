// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk/helpdesk/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForPing(t *testing.T) {
	fast := func(n uint64) retry.Backoff {
		return retry.WithMaxRetries(n, retry.NewConstant(time.Millisecond))
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPinger{failures: 2}
		require.NoError(t, waitForPing(context.Background(), p, fast(5)))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		p := &flakyPinger{failures: 100}
		err := waitForPing(context.Background(), p, fast(2))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "attempts", 3)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &flakyPinger{failures: 100}
		err := waitForPing(ctx, p, retry.WithMaxRetries(5, retry.NewConstant(time.Hour)))
		require.Error(t, err)
	})
}

func TestOpenPool_RequiresURL(t *testing.T) {
	_, err := OpenPool(context.Background(), "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
