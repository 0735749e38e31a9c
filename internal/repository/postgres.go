package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/utils"
)

const (
	cardColumns = `id, number_enc, last4, holder_name, expiry_month, expiry_year, status, balance, user_id, created_at`

	insertIssuedNumberQuery = `
		INSERT INTO bank.issued_card_numbers (number_digest, issued_at)
		VALUES ($1, $2)`
	insertCardQuery = `
		INSERT INTO bank.cards (id, number_enc, number_digest, last4, holder_name, expiry_month, expiry_year, status, balance, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	getCardQuery = `
		SELECT ` + cardColumns + `
		FROM bank.cards
		WHERE id = $1`
	lockCardsQuery = `
		SELECT ` + cardColumns + `
		FROM bank.cards
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`
	updateCardStatusQuery = `
		UPDATE bank.cards
		SET status = $1
		WHERE id = $2`
	updateCardBalanceQuery = `
		UPDATE bank.cards
		SET balance = $1
		WHERE id = $2`
	deleteCardQuery = `
		DELETE FROM bank.cards
		WHERE id = $1`
	countCardsQuery = `
		SELECT COUNT(*) FROM bank.cards`
	listCardsQuery = `
		SELECT ` + cardColumns + `
		FROM bank.cards
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`
	countCardsByOwnerQuery = `
		SELECT COUNT(*) FROM bank.cards WHERE user_id = $1`
	listCardsByOwnerQuery = `
		SELECT ` + cardColumns + `
		FROM bank.cards
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	blockRequestColumns = `id, card_id, user_id, reason, status, requested_at, processed_at`

	insertBlockRequestQuery = `
		INSERT INTO bank.card_block_requests (id, card_id, user_id, reason, status, requested_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	lockBlockRequestQuery = `
		SELECT ` + blockRequestColumns + `
		FROM bank.card_block_requests
		WHERE id = $1
		FOR UPDATE`
	updateBlockRequestQuery = `
		UPDATE bank.card_block_requests
		SET status = $1, processed_at = $2
		WHERE id = $3`
	pendingBlockRequestQuery = `
		SELECT EXISTS (
			SELECT 1 FROM bank.card_block_requests WHERE card_id = $1 AND status = 'PENDING'
		)`
	countBlockRequestsQuery = `
		SELECT COUNT(*) FROM bank.card_block_requests
		WHERE ($1 = '' OR status = $1)`
	listBlockRequestsQuery = `
		SELECT ` + blockRequestColumns + `
		FROM bank.card_block_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY requested_at DESC, id
		LIMIT $2 OFFSET $3`

	transactionColumns = `id, status, amount, from_card, from_card_last4, to_card, to_card_last4, transaction_date, balance_after`

	insertTransactionQuery = `
		INSERT INTO bank.transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	countTransactionsByCardQuery = `
		SELECT COUNT(*) FROM bank.transactions
		WHERE from_card = $1 OR to_card = $1`
	listTransactionsByCardQuery = `
		SELECT ` + transactionColumns + `
		FROM bank.transactions
		WHERE from_card = $1 OR to_card = $1
		ORDER BY transaction_date DESC, id
		LIMIT $2 OFFSET $3`
)

// Repository provides PostgreSQL-backed units of work
type Repository struct {
	db     *sql.DB
	cipher *utils.CardCipher
	log    *logrus.Logger
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, cipher *utils.CardCipher, log *logrus.Logger) *Repository {
	return &Repository{db: db, cipher: cipher, log: log}
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithinTx runs fn inside a read-committed transaction. Lost updates on
// balances are prevented by LockCards row locks, not by the isolation level.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// View runs fn inside a read-only transaction
func (r *Repository) View(ctx context.Context, fn func(tx Tx) error) error {
	return r.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, fn)
}

func (r *Repository) run(ctx context.Context, opts *sql.TxOptions, fn func(tx Tx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.WithError(rbErr).Error("Failed to roll back transaction")
			}
		}
	}()

	if err = fn(&pgTx{tx: sqlTx, cipher: r.cipher}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx     *sql.Tx
	cipher *utils.CardCipher
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *pgTx) scanCard(row scanner) (*models.Card, error) {
	var (
		card   models.Card
		sealed string
	)
	if err := row.Scan(
		&card.ID,
		&sealed,
		&card.Last4,
		&card.HolderName,
		&card.ExpiryMonth,
		&card.ExpiryYear,
		&card.Status,
		&card.Balance,
		&card.UserID,
		&card.CreatedAt,
	); err != nil {
		return nil, err
	}
	number, err := t.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open card %s: %w", card.ID, err)
	}
	card.Number = number
	return &card, nil
}

func (t *pgTx) CreateCard(ctx context.Context, card *models.Card) error {
	sealed, err := t.cipher.Seal(card.Number)
	if err != nil {
		return fmt.Errorf("failed to seal card number: %w", err)
	}
	digest := t.cipher.Digest(card.Number)

	if _, err := t.tx.ExecContext(ctx, insertIssuedNumberQuery, digest, card.CreatedAt); err != nil {
		if isNumberCollision(err) {
			return ErrDuplicateCardNumber
		}
		return fmt.Errorf("failed to reserve card number: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, insertCardQuery,
		card.ID,
		sealed,
		digest,
		card.Last4,
		card.HolderName,
		card.ExpiryMonth,
		card.ExpiryYear,
		card.Status,
		card.Balance,
		card.UserID,
		card.CreatedAt,
	)
	if err != nil {
		if isNumberCollision(err) {
			return ErrDuplicateCardNumber
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func isNumberCollision(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return false
	}
	return pqErr.Constraint == issuedNumberConstraint || pqErr.Constraint == cardNumberConstraint
}

func (t *pgTx) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	card, err := t.scanCard(t.tx.QueryRowContext(ctx, getCardQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (t *pgTx) LockCards(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Card, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	rows, err := t.tx.QueryContext(ctx, lockCardsQuery, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to lock cards: %w", err)
	}
	defer rows.Close()

	cards := make(map[uuid.UUID]*models.Card, len(ids))
	for rows.Next() {
		card, err := t.scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards[card.ID] = card
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return cards, nil
}

func (t *pgTx) execOne(ctx context.Context, query string, args ...any) error {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateCardStatus(ctx context.Context, id uuid.UUID, status models.CardStatus) error {
	if err := t.execOne(ctx, updateCardStatusQuery, status, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update card status: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCardBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	if err := t.execOne(ctx, updateCardBalanceQuery, balance, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update card balance: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteCard(ctx context.Context, id uuid.UUID) error {
	if err := t.execOne(ctx, deleteCardQuery, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (t *pgTx) count(ctx context.Context, query string, args ...any) (int, error) {
	var total int
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return total, nil
}

func (t *pgTx) listCards(ctx context.Context, page models.PageRequest, countQuery, listQuery string, args ...any) (models.Page[models.Card], error) {
	result := models.Page[models.Card]{Items: []models.Card{}, Page: page.Page, Size: page.Size}

	total, err := t.count(ctx, countQuery, args...)
	if err != nil {
		return result, err
	}
	result.Total = total

	rows, err := t.tx.QueryContext(ctx, listQuery, append(args, page.Size, page.Offset())...)
	if err != nil {
		return result, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		card, err := t.scanCard(rows)
		if err != nil {
			return result, fmt.Errorf("failed to scan card: %w", err)
		}
		result.Items = append(result.Items, *card)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

func (t *pgTx) ListCards(ctx context.Context, page models.PageRequest) (models.Page[models.Card], error) {
	return t.listCards(ctx, page, countCardsQuery, listCardsQuery)
}

func (t *pgTx) ListCardsByOwner(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return t.listCards(ctx, page, countCardsByOwnerQuery, listCardsByOwnerQuery, userID)
}

func (t *pgTx) CreateBlockRequest(ctx context.Context, req *models.BlockRequest) error {
	_, err := t.tx.ExecContext(ctx, insertBlockRequestQuery,
		req.ID,
		req.CardID,
		req.UserID,
		req.Reason,
		req.Status,
		req.RequestedAt,
		req.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create block request: %w", err)
	}
	return nil
}

func scanBlockRequest(row scanner) (*models.BlockRequest, error) {
	var (
		req         models.BlockRequest
		processedAt sql.NullTime
	)
	if err := row.Scan(
		&req.ID,
		&req.CardID,
		&req.UserID,
		&req.Reason,
		&req.Status,
		&req.RequestedAt,
		&processedAt,
	); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		req.ProcessedAt = &processedAt.Time
	}
	return &req, nil
}

func (t *pgTx) LockBlockRequest(ctx context.Context, id uuid.UUID) (*models.BlockRequest, error) {
	req, err := scanBlockRequest(t.tx.QueryRowContext(ctx, lockBlockRequestQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block request: %w", err)
	}
	return req, nil
}

func (t *pgTx) UpdateBlockRequest(ctx context.Context, req *models.BlockRequest) error {
	if err := t.execOne(ctx, updateBlockRequestQuery, req.Status, req.ProcessedAt, req.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update block request: %w", err)
	}
	return nil
}

func (t *pgTx) HasPendingBlockRequest(ctx context.Context, cardID uuid.UUID) (bool, error) {
	var exists bool
	if err := t.tx.QueryRowContext(ctx, pendingBlockRequestQuery, cardID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending block requests: %w", err)
	}
	return exists, nil
}

func (t *pgTx) ListBlockRequests(ctx context.Context, status models.RequestStatus, page models.PageRequest) (models.Page[models.BlockRequest], error) {
	result := models.Page[models.BlockRequest]{Items: []models.BlockRequest{}, Page: page.Page, Size: page.Size}

	total, err := t.count(ctx, countBlockRequestsQuery, string(status))
	if err != nil {
		return result, err
	}
	result.Total = total

	rows, err := t.tx.QueryContext(ctx, listBlockRequestsQuery, string(status), page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to query block requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		req, err := scanBlockRequest(rows)
		if err != nil {
			return result, fmt.Errorf("failed to scan block request: %w", err)
		}
		result.Items = append(result.Items, *req)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	_, err := t.tx.ExecContext(ctx, insertTransactionQuery,
		tr.ID,
		tr.Status,
		tr.Amount,
		tr.FromCardID,
		tr.FromCardLast4,
		tr.ToCardID,
		tr.ToCardLast4,
		tr.CreatedAt,
		tr.BalanceAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (t *pgTx) ListTransactionsByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transaction], error) {
	result := models.Page[models.Transaction]{Items: []models.Transaction{}, Page: page.Page, Size: page.Size}

	total, err := t.count(ctx, countTransactionsByCardQuery, cardID)
	if err != nil {
		return result, err
	}
	result.Total = total

	rows, err := t.tx.QueryContext(ctx, listTransactionsByCardQuery, cardID, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tr models.Transaction
		if err := rows.Scan(
			&tr.ID,
			&tr.Status,
			&tr.Amount,
			&tr.FromCardID,
			&tr.FromCardLast4,
			&tr.ToCardID,
			&tr.ToCardLast4,
			&tr.CreatedAt,
			&tr.BalanceAfter,
		); err != nil {
			return result, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result.Items = append(result.Items, tr)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}
