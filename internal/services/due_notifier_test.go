package services

import (
	"context"
	"errors"
	"testing"

	"funetec/internal/amqp"
	"funetec/internal/core"
	"funetec/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueNotifier_Scan(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	ctx := context.Background()
	d := createContract(t, svc, newContract())

	notifier := &recordingNotifier{}
	due := NewDueNotifier(repo, notifier, DefaultDuenessRegistry(7), log.Discard())

	t.Run("seven days ahead", func(t *testing.T) {
		res, err := due.Scan(ctx, core.NewDate(2025, 1, 3))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Published)
		assert.Zero(t, res.Failed)

		events := notifier.published()
		require.Len(t, events, 1)
		evt := events[0]
		assert.Equal(t, amqp.EventDueSoon, evt.Kind)
		assert.Equal(t, d.Installments[0].ID, evt.InstallmentID)
		assert.Equal(t, 7, evt.DaysUntilDue)
		assert.Equal(t, "Parcela vence em 7 dias", evt.Title)
		assert.Equal(t, "Contrato 0001/2025 - R$ 500,00", evt.Message)
		assert.Equal(t, "Fundação de Apoio", evt.Counterparty)
		assert.Equal(t, "2025-01-10", evt.DueDate)
	})

	t.Run("same day scans reuse event ids", func(t *testing.T) {
		before := notifier.published()
		_, err := due.Scan(ctx, core.NewDate(2025, 1, 3))
		require.NoError(t, err)
		after := notifier.published()
		require.Len(t, after, len(before)+1)
		assert.Equal(t, before[len(before)-1].ID, after[len(after)-1].ID)
	})

	t.Run("due today", func(t *testing.T) {
		n := &recordingNotifier{}
		res, err := NewDueNotifier(repo, n, DefaultDuenessRegistry(7), log.Discard()).Scan(ctx, core.NewDate(2025, 1, 10))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Published)
		assert.Equal(t, amqp.EventDueToday, n.published()[0].Kind)
		assert.Equal(t, "Parcela vence hoje", n.published()[0].Title)
	})

	t.Run("partially paid installments are skipped", func(t *testing.T) {
		_, err := svc.ApplyPayment(ctx, testActor, d.Installments[0].ID, core.Cents(100), core.NewDate(2025, 1, 5), "")
		require.NoError(t, err)
		n := &recordingNotifier{}
		res, err := NewDueNotifier(repo, n, DefaultDuenessRegistry(7), log.Discard()).Scan(ctx, core.NewDate(2025, 1, 10))
		require.NoError(t, err)
		assert.Zero(t, res.Published)
	})
}

func TestDueNotifier_PublishFailuresAreCounted(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	createContract(t, svc, newContract())
	createContract(t, svc, newContract())

	notifier := &recordingNotifier{err: errors.New("circuit breaker is open")}
	res, err := NewDueNotifier(repo, notifier, DefaultDuenessRegistry(7), log.Discard()).Scan(context.Background(), core.NewDate(2025, 1, 10))
	require.NoError(t, err)
	assert.Zero(t, res.Published)
	assert.Equal(t, 2, res.Failed)
}

func TestDueNotifier_RequiresNotifier(t *testing.T) {
	repo := newTestRepo(t)
	_, err := NewDueNotifier(repo, nil, DefaultDuenessRegistry(7), log.Discard()).Scan(context.Background(), core.NewDate(2025, 1, 10))
	assert.Error(t, err)
}
