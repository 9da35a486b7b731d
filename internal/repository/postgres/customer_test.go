package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/listsync/internal/domain"
)

func newMock(t *testing.T) (*CustomerRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCustomerRepo(db), mock
}

func testCustomer() *domain.Customer {
	return &domain.Customer{
		ID:        "c1",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Segments:  []domain.Segment{{ID: "s1", GroupID: "g1", Name: "VIP"}},
		Subscriptions: map[string]*domain.ProviderSubscription{
			"main": {Exportable: true, LocalStatus: "subscribed"},
		},
	}
}

func TestSave_DefaultEnqueuesExport(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO customer_subscriptions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM customer_segments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO customer_segments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO customer_email_index").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO export_queue").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), testCustomer(), domain.SaveOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSave_SyncOptionsSuppressSideEffects(t *testing.T) {
	repo, mock := newMock(t)

	// Only the customer and subscription rows: no segment rewrite, no email
	// index refresh, no queue insert.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO customer_subscriptions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), testCustomer(), domain.SyncSaveOptions()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSave_ValidatorRejectsBadEmail(t *testing.T) {
	repo, _ := newMock(t)

	c := testCustomer()
	c.Email = "not-an-email"
	if err := repo.Save(context.Background(), c, domain.SaveOptions{}); err == nil {
		t.Error("expected validation error")
	}

	// Disabling the validator lets the save proceed to the database.
	repo2, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO customer_subscriptions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	opts := domain.SaveOptions{
		DisableQueue:           true,
		DisableSegmentBuilders: true,
		DisableValidator:       true,
		DisableDuplicatesIndex: true,
	}
	if err := repo2.Save(context.Background(), c, opts); err != nil {
		t.Fatalf("Save with disabled validator: %v", err)
	}
}

func TestByEmail_LoadsSubscriptionsAndSegments(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE LOWER").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "first_name", "last_name", "fields", "created_at", "updated_at",
		}).AddRow("c1", "ada@example.com", "Ada", "Lovelace", []byte(`{"company":"Analytical Engines"}`), now, now))

	mock.ExpectQuery("FROM customer_subscriptions").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"shortcut", "exportable", "local_status", "remote_status"}).
			AddRow("main", true, "subscribed", "subscribed"))

	mock.ExpectQuery("FROM customer_segments").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "name"}).
			AddRow("s1", "g1", "VIP"))

	c, err := repo.ByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("ByEmail: %v", err)
	}
	if c.Fields["company"] != "Analytical Engines" {
		t.Errorf("fields = %v", c.Fields)
	}
	sub := c.Provider("main")
	if sub == nil || !sub.Exportable || sub.RemoteStatus != domain.StatusSubscribed {
		t.Errorf("subscription = %+v", sub)
	}
	if !c.HasSegment("s1") {
		t.Error("segment s1 missing")
	}
}

func TestByEmail_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM customers WHERE LOWER").
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "first_name", "last_name", "fields", "created_at", "updated_at",
		}))

	c, err := repo.ByEmail(context.Background(), "missing@example.com")
	if err != nil || c != nil {
		t.Errorf("got (%v, %v), want (nil, nil) for unknown address", c, err)
	}
}
