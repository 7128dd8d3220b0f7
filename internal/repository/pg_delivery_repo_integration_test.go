//go:build integration

package repository_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ricirt/updatesvc/internal/db"
	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/repository"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("updatesvc"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Printf("could not start postgres container: %v", err)
		return 1
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("could not terminate postgres container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("could not get connection string: %v", err)
		return 1
	}

	if err := db.Migrate(connStr); err != nil {
		log.Printf("could not run migrations: %v", err)
		return 1
	}

	testPool, err = db.Connect(ctx, connStr, db.PoolConfig{MaxConns: 4})
	if err != nil {
		log.Printf("could not connect: %v", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

func TestPgDeliveryRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPgDeliveryRepository(testPool)
	base := time.Now().UTC().Truncate(time.Millisecond)

	dropped := &domain.Delivery{
		ID: uuid.NewString(), MessageID: "m-1", Topic: domain.TopicFlightUpdate,
		FlightID: ptr("F1"), Status: domain.DeliveryDropped, Reason: ptr("rpc_error"),
		Error: ptr("rpc error: unavailable"), CreatedAt: base,
	}
	done := &domain.Delivery{
		ID: uuid.NewString(), MessageID: "m-2", Topic: domain.TopicTicketUpdate,
		TicketID: ptr("T1"), Recipient: ptr("ann@x.com"), Status: domain.DeliveryDone,
		LatencyMS: 42, CreatedAt: base.Add(time.Second),
	}
	for _, d := range []*domain.Delivery{dropped, done} {
		if err := repo.Record(ctx, d); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := repo.List(ctx, domain.DeliveryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) < 2 || all[0].ID != done.ID {
		t.Fatalf("expected newest row first, got %v", ids(all))
	}
	if all[0].LatencyMS != 42 || *all[0].Recipient != "ann@x.com" || all[0].FlightID != nil {
		t.Fatalf("unexpected row: %+v", all[0])
	}

	onlyDropped, err := repo.List(ctx, domain.DeliveryFilter{Status: ptr(domain.DeliveryDropped), Limit: 10})
	if err != nil {
		t.Fatalf("list dropped: %v", err)
	}
	for _, d := range onlyDropped {
		if d.Status != domain.DeliveryDropped {
			t.Fatalf("filter leaked status %s", d.Status)
		}
	}

	byTicket, err := repo.List(ctx, domain.DeliveryFilter{TicketID: ptr("T1"), Limit: 10})
	if err != nil {
		t.Fatalf("list by ticket: %v", err)
	}
	if len(byTicket) != 1 || byTicket[0].ID != done.ID {
		t.Fatalf("expected only T1 row, got %v", ids(byTicket))
	}
}
