package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/utils"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock, *utils.CardCipher) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := utils.NewCardCipher(strings.Repeat("ab", 32), "digest-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRepository(db, cipher, log), mock, cipher
}

var cardRowColumns = []string{"id", "number_enc", "last4", "holder_name", "expiry_month", "expiry_year", "status", "balance", "user_id", "created_at"}

func TestCreateCardCommits(t *testing.T) {
	repo, mock, cipher := newMockRepository(t)
	card := newTestCard(uuid.New(), "4000123412341234", 0, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(insertIssuedNumberQuery).
		WithArgs(cipher.Digest(card.Number), card.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertCardQuery).
		WithArgs(card.ID, sqlmock.AnyArg(), cipher.Digest(card.Number), "1234", card.HolderName,
			card.ExpiryMonth, card.ExpiryYear, card.Status, card.Balance, card.UserID, card.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		return tx.CreateCard(context.Background(), card)
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateCardUniqueViolation(t *testing.T) {
	for _, constraint := range []string{issuedNumberConstraint, cardNumberConstraint} {
		t.Run(constraint, func(t *testing.T) {
			repo, mock, _ := newMockRepository(t)
			card := newTestCard(uuid.New(), "4000123412341234", 0, time.Now())

			mock.ExpectBegin()
			if constraint == issuedNumberConstraint {
				mock.ExpectExec(insertIssuedNumberQuery).
					WillReturnError(&pq.Error{Code: "23505", Constraint: constraint})
			} else {
				mock.ExpectExec(insertIssuedNumberQuery).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(insertCardQuery).
					WillReturnError(&pq.Error{Code: "23505", Constraint: constraint})
			}
			mock.ExpectRollback()

			err := repo.WithinTx(context.Background(), func(tx Tx) error {
				return tx.CreateCard(context.Background(), card)
			})
			if !errors.Is(err, ErrDuplicateCardNumber) {
				t.Fatalf("want ErrDuplicateCardNumber, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCreateCardOtherUniqueViolationIsNotACollision(t *testing.T) {
	repo, mock, _ := newMockRepository(t)
	card := newTestCard(uuid.New(), "4000123412341234", 0, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(insertIssuedNumberQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertCardQuery).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "cards_pkey"})
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		return tx.CreateCard(context.Background(), card)
	})
	if err == nil || errors.Is(err, ErrDuplicateCardNumber) {
		t.Fatalf("want plain failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLockCardsScansAndDecrypts(t *testing.T) {
	repo, mock, cipher := newMockRepository(t)
	owner := uuid.New()
	a, b := uuid.New(), uuid.New()
	sealedA, _ := cipher.Seal("4000000000001111")
	sealedB, _ := cipher.Seal("4000000000002222")
	now := time.Now()

	rows := sqlmock.NewRows(cardRowColumns).
		AddRow(a.String(), sealedA, "1111", "A", 10, 29, "ACTIVE", 500, owner.String(), now).
		AddRow(b.String(), sealedB, "2222", "B", 10, 29, "BLOCKED", 200, owner.String(), now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCardsQuery).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	mock.ExpectCommit()

	var locked map[uuid.UUID]*models.Card
	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		locked, err = tx.LockCards(context.Background(), b, a)
		return err
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(locked) != 2 {
		t.Fatalf("locked %d cards, want 2", len(locked))
	}
	if locked[a].Number != "4000000000001111" || locked[a].Balance != 500 {
		t.Fatalf("card a: %+v", locked[a])
	}
	if locked[b].Status != models.CardStatusBlocked || locked[b].UserID != owner {
		t.Fatalf("card b: %+v", locked[b])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateMissingCardRollsBack(t *testing.T) {
	repo, mock, _ := newMockRepository(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(updateCardStatusQuery).
		WithArgs(models.CardStatusBlocked, id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		return tx.UpdateCardStatus(context.Background(), id, models.CardStatusBlocked)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTransferWritesRollBackTogether(t *testing.T) {
	repo, mock, _ := newMockRepository(t)
	from, to := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(updateCardBalanceQuery).WithArgs(int64(400), from).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateCardBalanceQuery).WithArgs(int64(300), to).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTransactionQuery).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		ctx := context.Background()
		if err := tx.UpdateCardBalance(ctx, from, 400); err != nil {
			return err
		}
		if err := tx.UpdateCardBalance(ctx, to, 300); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), FromCardID: from, ToCardID: to, Amount: 100})
	})
	if err == nil {
		t.Fatal("want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListBlockRequestsFiltersByStatus(t *testing.T) {
	repo, mock, _ := newMockRepository(t)
	reqID, cardID, userID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(countBlockRequestsQuery).
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(listBlockRequestsQuery).
		WithArgs("PENDING", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "card_id", "user_id", "reason", "status", "requested_at", "processed_at"}).
			AddRow(reqID.String(), cardID.String(), userID.String(), "lost", "PENDING", now, nil))
	mock.ExpectCommit()

	var page models.Page[models.BlockRequest]
	err := repo.View(context.Background(), func(tx Tx) error {
		var err error
		page, err = tx.ListBlockRequests(context.Background(), models.RequestStatusPending, models.PageRequest{Page: 0, Size: 10})
		return err
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("page: %+v", page)
	}
	got := page.Items[0]
	if got.ID != reqID || got.Reason != "lost" || got.ProcessedAt != nil {
		t.Fatalf("request: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
