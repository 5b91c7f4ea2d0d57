//go:build integration

package events_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/auction"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
	pkgevents "github.com/floroz/gavel-live/pkg/events"
	"github.com/floroz/gavel-live/pkg/testhelpers"
)

type noopAnnouncer struct{}

func (noopAnnouncer) Announce(context.Context, auction.BidSummary) {}

// TestRelayIntegrationWithRabbitMQ places a real bid and expects its event on the exchange
func TestRelayIntegrationWithRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 1. RabbitMQ
	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = rabbitmqContainer.Terminate(context.Background())
	})

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// 2. Postgres with one accepted bid in the outbox
	testDB := testhelpers.NewTestDatabase(t)
	txManager := pkgdb.NewPostgresTransactionManager(testDB.Pool, time.Second)
	store := database.NewStore(testDB.Pool, txManager)
	svc := auction.NewAuctionService(store, noopAnnouncer{}, logger)

	lot, err := svc.CreateLot(ctx, auction.CreateLotCommand{
		Title:         "Relay lot",
		StartingPrice: 100,
		EndAt:         time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	bidder, err := svc.RegisterBidder(ctx, "Ivan")
	require.NoError(t, err)
	bid, err := svc.PlaceBid(ctx, auction.PlaceBidCommand{LotID: lot.ID, BidderID: bidder.ID, Amount: 250})
	require.NoError(t, err)

	// 3. Consumer bound before the relay starts
	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	publisher, err := pkgevents.NewRabbitMQPublisher(conn, "auction.events")
	require.NoError(t, err)
	defer publisher.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, auction.EventTypeBidPlaced.String(), "auction.events", false, nil))
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	// 4. Relay
	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(),
		publisher,
		txManager,
		10,
		50*time.Millisecond,
		"auction.events",
		logger,
	)
	relayCtx, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() {
		_ = relay.Run(relayCtx)
	}()

	select {
	case msg := <-msgs:
		assert.Equal(t, "bid.placed", msg.RoutingKey)
		assert.Equal(t, "application/x-protobuf", msg.ContentType)
		summary, err := auction.DecodeBidPlaced(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, bid.ID, summary.BidID)
		assert.Equal(t, int64(250), summary.Amount)
		assert.Equal(t, "Ivan", summary.BidderName)
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for message from RabbitMQ")
	}

	require.Eventually(t, func() bool {
		var pending int
		err := testDB.Pool.QueryRow(ctx, "SELECT count(*) FROM outbox_events WHERE status = 'pending'").Scan(&pending)
		return err == nil && pending == 0
	}, 2*time.Second, 100*time.Millisecond, "event should be marked published")

	var status string
	require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT status::text FROM outbox_events LIMIT 1").Scan(&status))
	assert.Equal(t, string(pkgevents.OutboxStatusPublished), status)
}
