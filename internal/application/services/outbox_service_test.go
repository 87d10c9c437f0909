package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapursambal/storefront/internal/domain/events"
)

func pendingRow(mock sqlmock.Sqlmock, id, eventType, payload string, retries int) *sqlmock.Rows {
	return mock.NewRows([]string{"id", "event_type", "payload", "retry_count"}).AddRow(id, eventType, payload, retries)
}

func TestOutboxService_ProcessesEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := NewEventBus()
	var got events.Payload
	bus.Subscribe(events.SubscriberCreated, func(_ context.Context, p events.Payload) error {
		got = p
		return nil
	})

	mock.ExpectQuery("SELECT id, event_type, payload, retry_count").
		WillReturnRows(pendingRow(mock, "ev1", "subscriber.created", `{"subscriber_id":"s1"}`, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WithArgs("ev1", "pending").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("ev1"))
	mock.ExpectExec("SET status = \\?, processed_date = \\?").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewOutboxService(db, bus)
	require.NoError(t, svc.ProcessOutbox(context.Background()))
	assert.Equal(t, "s1", got.SubscriberID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxService_RetriesFailedHandler(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := NewEventBus()
	bus.Subscribe(events.ContactReceived, func(context.Context, events.Payload) error {
		return fmt.Errorf("smtp down")
	})

	mock.ExpectQuery("SELECT id, event_type, payload, retry_count").
		WillReturnRows(pendingRow(mock, "ev1", "contact.received", `{"contact_id":"m1"}`, 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(mock.NewRows([]string{"id"}).AddRow("ev1"))
	mock.ExpectExec("SET retry_count = \\?").WithArgs(2, sqlmock.AnyArg(), sqlmock.AnyArg(), "ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewOutboxService(db, bus).ProcessOutbox(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxService_FailsAfterMaxRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bus := NewEventBus()
	bus.Subscribe(events.OrderPaid, func(context.Context, events.Payload) error {
		return fmt.Errorf("smtp down")
	})

	mock.ExpectQuery("SELECT id, event_type, payload, retry_count").
		WillReturnRows(pendingRow(mock, "ev1", "order.paid", `{"order_id":"o1"}`, MaxRetryAttempts-1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(mock.NewRows([]string{"id"}).AddRow("ev1"))
	mock.ExpectExec("SET status = \\?, error_message = \\?").WithArgs("failed", sqlmock.AnyArg(), sqlmock.AnyArg(), "ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewOutboxService(db, bus).ProcessOutbox(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxService_SkipsEventClaimedElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, event_type, payload, retry_count").
		WillReturnRows(pendingRow(mock, "ev1", "order.paid", `{"order_id":"o1"}`, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(mock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	require.NoError(t, NewOutboxService(db, NewEventBus()).ProcessOutbox(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
