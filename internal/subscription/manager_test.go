package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/feed"
	"main/internal/feed/feedtest"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

func newManager(t *testing.T, cfg Config) (*Manager, *feedtest.Feed) {
	t.Helper()
	api := feedtest.New()
	m := New(api, cfg, obs.NewMetrics())
	api.Bind(feed.Callbacks{OnSubResult: m.HandleSubResult})
	return m, api
}

// ready returns a manager that already reconciled against a live session.
func ready(t *testing.T, cfg Config) (*Manager, *feedtest.Feed) {
	t.Helper()
	m, api := newManager(t, cfg)
	require.NoError(t, m.Reconcile(context.Background()))
	return m, api
}

func key(kind enum.DataKind, exchange enum.Exchange, sec string) model.SubKey {
	return model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}
}

func TestRequestValidation(t *testing.T) {
	m, api := ready(t, Config{})

	// tick streams exist on SZSE only
	err := m.RequestSubscribe(context.Background(), enum.KindTransaction, []string{"600000"}, enum.ExchangeSSE)
	assert.ErrorIs(t, err, exception.ErrSubscriptionInvalid)

	// XTS exists on SSE only
	err = m.RequestSubscribe(context.Background(), enum.KindXTSSnapshot, []string{"000001"}, enum.ExchangeSZSE)
	assert.ErrorIs(t, err, exception.ErrSubscriptionInvalid)

	err = m.RequestSubscribe(context.Background(), enum.KindSnapshot, nil, enum.ExchangeSZSE)
	assert.ErrorIs(t, err, exception.ErrNoSecurities)

	assert.Empty(t, api.SubCalls(), "invalid requests must never reach the transport")
}

func TestSubscribeConfirmAndIdempotence(t *testing.T) {
	m, api := ready(t, Config{})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE))
	status, ok := m.Status(key(enum.KindSnapshot, enum.ExchangeSZSE, "000001"))
	require.True(t, ok)
	assert.Equal(t, enum.SubSubscribed, status)
	require.Len(t, api.SubCalls(), 1)

	// a repeat for a confirmed security is absorbed
	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE))
	assert.Len(t, api.SubCalls(), 1)
}

func TestBatchPacing(t *testing.T) {
	m, api := ready(t, Config{BatchSize: 1, BatchTimeout: 50 * time.Millisecond})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001", "000002"}, enum.ExchangeSZSE))

	calls := api.SubCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"000001"}, calls[0].Securities)
	assert.Equal(t, []string{"000002"}, calls[1].Securities)
	assert.GreaterOrEqual(t, calls[1].At.Sub(calls[0].At), 40*time.Millisecond,
		"batches must be paced by the batch timeout")
}

func TestDeferredUntilReconcile(t *testing.T) {
	m, api := newManager(t, Config{})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"600000"}, enum.ExchangeSSE))
	assert.Empty(t, api.SubCalls(), "no session, nothing may hit the transport")

	status, ok := m.Status(key(enum.KindSnapshot, enum.ExchangeSSE, "600000"))
	require.True(t, ok)
	assert.Equal(t, enum.SubPending, status)

	require.NoError(t, m.Reconcile(context.Background()))
	require.Len(t, api.SubCalls(), 1)
	status, _ = m.Status(key(enum.KindSnapshot, enum.ExchangeSSE, "600000"))
	assert.Equal(t, enum.SubSubscribed, status)
}

func TestReconcileReplaysAfterSessionLoss(t *testing.T) {
	m, api := ready(t, Config{})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindOrderDetail, []string{"000001"}, enum.ExchangeSZSE))
	require.Len(t, api.SubCalls(), 1)

	m.SessionLost()
	// requests during the outage are recorded only
	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindIndex, []string{"000300"}, enum.ExchangeSZSE))
	require.Len(t, api.SubCalls(), 1)

	require.NoError(t, m.Reconcile(context.Background()))
	calls := api.SubCalls()
	require.Len(t, calls, 3)

	for _, k := range []model.SubKey{
		key(enum.KindOrderDetail, enum.ExchangeSZSE, "000001"),
		key(enum.KindIndex, enum.ExchangeSZSE, "000300"),
	} {
		status, ok := m.Status(k)
		require.Truef(t, ok, "missing record %s", k)
		assert.Equalf(t, enum.SubSubscribed, status, "record %s", k)
	}
}

func TestRejectedRetryBudget(t *testing.T) {
	m, api := ready(t, Config{MaxRetries: 2})
	bad := key(enum.KindSnapshot, enum.ExchangeSZSE, "999999")
	api.RejectKey(bad)

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"999999"}, enum.ExchangeSZSE))
	status, _ := m.Status(bad)
	assert.Equal(t, enum.SubFailed, status)
	require.Len(t, api.SubCalls(), 1)

	// two retries across reconnects, then the record is parked
	for i := 0; i < 3; i++ {
		m.SessionLost()
		require.NoError(t, m.Reconcile(context.Background()))
	}
	assert.Len(t, api.SubCalls(), 3, "retry budget is 2 resends")

	records := m.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Retries)
	assert.Equal(t, enum.SubFailed, records[0].Status)
	assert.ErrorIs(t, records[0].Err, exception.ErrSubscriptionRejected)
}

func TestUnsubscribeRemovesFromDesiredSet(t *testing.T) {
	m, api := ready(t, Config{})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE))
	require.NoError(t, m.RequestUnsubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE))
	require.Len(t, api.UnsubCalls(), 1)

	status, ok := m.Status(key(enum.KindSnapshot, enum.ExchangeSZSE, "000001"))
	require.True(t, ok)
	assert.Equal(t, enum.SubUnsubscribed, status)

	// a late ack for an unsubscribed security must not resurrect it
	api.AckSub(key(enum.KindSnapshot, enum.ExchangeSZSE, "000001"), true)
	status, _ = m.Status(key(enum.KindSnapshot, enum.ExchangeSZSE, "000001"))
	assert.Equal(t, enum.SubUnsubscribed, status)

	m.SessionLost()
	require.NoError(t, m.Reconcile(context.Background()))
	assert.Len(t, api.SubCalls(), 1, "unsubscribed securities are not replayed")
}

func TestTransportErrorMarksFailed(t *testing.T) {
	m, api := ready(t, Config{})
	api.SetSubscribeErr(errors.New("write: broken pipe"))

	err := m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE)
	require.Error(t, err)

	status, ok := m.Status(key(enum.KindSnapshot, enum.ExchangeSZSE, "000001"))
	require.True(t, ok)
	assert.Equal(t, enum.SubFailed, status)

	records := m.Records()
	require.Len(t, records, 1)
	assert.ErrorContains(t, records[0].Err, "broken pipe")
}

func TestWildcardKey(t *testing.T) {
	m, api := ready(t, Config{})

	require.NoError(t, m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{model.WildcardSecurity}, enum.ExchangeCOMM))
	status, ok := m.Status(key(enum.KindSnapshot, enum.ExchangeCOMM, model.WildcardSecurity))
	require.True(t, ok)
	assert.Equal(t, enum.SubSubscribed, status)
	require.Len(t, api.SubCalls(), 1)
	assert.Equal(t, []string{model.WildcardSecurity}, api.SubCalls()[0].Securities)
}

func TestClosedManagerRejectsRequests(t *testing.T) {
	m, _ := ready(t, Config{})
	m.Shutdown()

	err := m.RequestSubscribe(context.Background(), enum.KindSnapshot, []string{"000001"}, enum.ExchangeSZSE)
	assert.ErrorIs(t, err, exception.ErrSubscriptionClosed)
	assert.ErrorIs(t, m.Reconcile(context.Background()), exception.ErrSubscriptionClosed)
}
