package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = "id, username, password_hash, balance, is_banned, ban_reason, access_rights, created_at"

const jarColumns = "id, user_id, jar_balance, jar_name, jar_target, jar_accumulation_amount, jar_image"

// Tx implements storage.Tx on top of one *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Balance,
		&user.IsBanned,
		&user.BanReason,
		&user.AccessRights,
		&user.CreatedAt,
	)
	return user, err
}

func scanJar(row scanner) (models.Jar, error) {
	var jar models.Jar
	err := row.Scan(
		&jar.ID,
		&jar.UserID,
		&jar.Balance,
		&jar.Name,
		&jar.Target,
		&jar.AccumulationAmount,
		&jar.Image,
	)
	return jar, err
}

func (t *Tx) CreateUser(ctx context.Context, username string, passHash []byte) (int64, error) {
	const op = "storage.postgres.CreateUser"

	var id int64
	err := t.tx.QueryRowContext(ctx,
		"INSERT INTO bank (username, password_hash) VALUES ($1, $2) RETURNING id",
		username, string(passHash),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (t *Tx) UserByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "storage.postgres.UserByUsername"

	row := t.tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM bank WHERE username = $1", username)
	return userResult(op, row)
}

func (t *Tx) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.UserByID"

	row := t.tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM bank WHERE id = $1", id)
	return userResult(op, row)
}

func (t *Tx) LockUser(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.LockUser"

	row := t.tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM bank WHERE id = $1 FOR UPDATE", id)
	return userResult(op, row)
}

func userResult(op string, row *sql.Row) (models.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (t *Tx) LockUsers(ctx context.Context, ids ...int64) (map[int64]models.User, error) {
	const op = "storage.postgres.LockUsers"

	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+userColumns+" FROM bank WHERE id = ANY($1) ORDER BY id FOR UPDATE",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make(map[int64]models.User, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (t *Tx) AddBalance(ctx context.Context, userID, delta int64) error {
	const op = "storage.postgres.AddBalance"

	res, err := t.tx.ExecContext(ctx, "UPDATE bank SET balance = balance + $1 WHERE id = $2", delta, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrUserNotFound)
}

func (t *Tx) SaveTransaction(ctx context.Context, senderID, receiverID, amount int64) error {
	const op = "storage.postgres.SaveTransaction"

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO transactions (sender_id, receiver_id, amount) VALUES ($1, $2, $3)",
		senderID, receiverID, amount,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (t *Tx) History(ctx context.Context, userID int64, limit int) ([]models.HistoryEntry, error) {
	const op = "storage.postgres.History"

	rows, err := t.tx.QueryContext(ctx, `
		SELECT t.amount, t.sender_id, s.username, r.username, t.transactions_time
		FROM transactions t
		JOIN bank s ON t.sender_id = s.id
		JOIN bank r ON t.receiver_id = r.id
		WHERE t.sender_id = $1 OR t.receiver_id = $1
		ORDER BY t.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry    models.HistoryEntry
			senderID int64
			sender   string
			receiver string
		)
		if err := rows.Scan(&entry.Amount, &senderID, &sender, &receiver, &entry.At); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if senderID == userID {
			entry.Type = models.HistoryOutgoing
			entry.Amount = -entry.Amount
			entry.Counterparty = receiver
		} else {
			entry.Type = models.HistoryIncoming
			entry.Counterparty = sender
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (t *Tx) CountUsers(ctx context.Context) (int64, error) {
	const op = "storage.postgres.CountUsers"

	var count int64
	if err := t.tx.QueryRowContext(ctx, "SELECT count(*) FROM bank").Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (t *Tx) SetBan(ctx context.Context, userID int64, banned bool, reason string) error {
	const op = "storage.postgres.SetBan"

	var (
		res sql.Result
		err error
	)
	if banned {
		res, err = t.tx.ExecContext(ctx,
			"UPDATE bank SET is_banned = TRUE, ban_reason = $1 WHERE id = $2",
			reason, userID,
		)
	} else {
		res, err = t.tx.ExecContext(ctx,
			"UPDATE bank SET is_banned = FALSE, ban_reason = 'user is not banned', unban_reason = $1 WHERE id = $2",
			reason, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrUserNotFound)
}

func (t *Tx) CreateJar(ctx context.Context, jar models.Jar) (int64, error) {
	const op = "storage.postgres.CreateJar"

	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO jars (user_id, jar_balance, jar_name, jar_target, jar_accumulation_amount, jar_image)
		VALUES ($1, 0, $2, $3, $4, $5)
		RETURNING id`,
		jar.UserID, jar.Name, jar.Target, jar.AccumulationAmount, jar.Image,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (t *Tx) Jars(ctx context.Context, userID int64) ([]models.Jar, error) {
	const op = "storage.postgres.Jars"

	rows, err := t.tx.QueryContext(ctx, "SELECT "+jarColumns+" FROM jars WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	jars := make([]models.Jar, 0)
	for rows.Next() {
		jar, err := scanJar(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		jars = append(jars, jar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return jars, nil
}

func (t *Tx) LockJar(ctx context.Context, userID, jarID int64) (models.Jar, error) {
	const op = "storage.postgres.LockJar"

	jar, err := scanJar(t.tx.QueryRowContext(ctx,
		"SELECT "+jarColumns+" FROM jars WHERE user_id = $1 AND id = $2 FOR UPDATE",
		userID, jarID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Jar{}, fmt.Errorf("%s: %w", op, storage.ErrJarNotFound)
	}
	if err != nil {
		return models.Jar{}, fmt.Errorf("%s: %w", op, err)
	}

	return jar, nil
}

func (t *Tx) AddJarBalance(ctx context.Context, jarID, delta int64) error {
	const op = "storage.postgres.AddJarBalance"

	res, err := t.tx.ExecContext(ctx, "UPDATE jars SET jar_balance = jar_balance + $1 WHERE id = $2", delta, jarID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrJarNotFound)
}

func (t *Tx) DeleteJar(ctx context.Context, userID, jarID int64) error {
	const op = "storage.postgres.DeleteJar"

	res, err := t.tx.ExecContext(ctx, "DELETE FROM jars WHERE user_id = $1 AND id = $2", userID, jarID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrJarNotFound)
}

func expectAffected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}

var _ storage.Tx = (*Tx)(nil)
