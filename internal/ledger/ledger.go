package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
)

const historyLimit = 50

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// Store runs a function as one unit of work: everything fn does through tx
// commits together or not at all.
type Store interface {
	Atomic(ctx context.Context, fn func(tx storage.Tx) error) error
}

type Hasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) error
}

// Service applies balance mutations. Every operation runs in a single unit
// of work and checks all preconditions before its first write.
type Service struct {
	log    *slog.Logger
	store  Store
	hasher Hasher
}

func New(log *slog.Logger, store Store, hasher Hasher) *Service {
	return &Service{
		log:    log,
		store:  store,
		hasher: hasher,
	}
}

type JarInput struct {
	Name               string
	Target             string
	AccumulationAmount int64
	Image              string
}

type BanChange struct {
	Banned bool
	Reason string
}

func (s *Service) Register(ctx context.Context, username, password string) (int64, error) {
	const op = "ledger.Register"

	log := s.log.With(slog.String("op", op), slog.String("username", username))

	if username == "" || password == "" {
		return 0, apperr.New(apperr.InvalidInput, "username and password are required")
	}
	if len(password) > maxPasswordBytes {
		return 0, apperr.New(apperr.InvalidInput, "password must be at most 72 bytes")
	}

	passHash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("Failed to hash password", slog.String("error", err.Error()))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	err = s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		id, err = tx.CreateUser(ctx, username, passHash)
		return err
	})
	if errors.Is(err, storage.ErrUserExists) {
		log.Info("Username already taken")
		return 0, apperr.Wrap(apperr.DuplicateIdentity, "username already exists", err)
	}
	if err != nil {
		return 0, s.fail(log, op, err)
	}

	log.Info("User registered", slog.Int64("user_id", id))

	return id, nil
}

// Authenticate checks the credentials and returns the account. An unknown
// username and a wrong password produce the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	const op = "ledger.Authenticate"

	log := s.log.With(slog.String("op", op), slog.String("username", username))

	invalid := apperr.New(apperr.InvalidCredential, "wrong username or password")

	var user models.User
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		user, err = tx.UserByUsername(ctx, username)
		return err
	})
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, invalid
	}
	if err != nil {
		return models.User{}, s.fail(log, op, err)
	}

	if err := s.hasher.Compare([]byte(user.PasswordHash), password); err != nil {
		log.Info("Invalid credentials", slog.String("error", err.Error()))
		return models.User{}, invalid
	}

	return user, nil
}

// Transfer moves amount from the sender to the account named
// receiverUsername and records it in the audit trail.
func (s *Service) Transfer(ctx context.Context, senderID int64, receiverUsername string, amount int64) error {
	const op = "ledger.Transfer"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("sender_id", senderID),
		slog.String("receiver", receiverUsername),
		slog.Int64("amount", amount),
	)

	if amount <= 0 {
		return apperr.New(apperr.InvalidOperation, "amount must be positive")
	}

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		target, err := tx.UserByUsername(ctx, receiverUsername)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "receiver not found", err)
		}
		if err != nil {
			return err
		}

		if target.ID == senderID {
			return apperr.New(apperr.InvalidOperation, "cannot transfer money to yourself")
		}

		locked, err := tx.LockUsers(ctx, senderID, target.ID)
		if err != nil {
			return err
		}
		sender, ok := locked[senderID]
		if !ok {
			return apperr.New(apperr.NotFound, "sender not found")
		}
		receiver, ok := locked[target.ID]
		if !ok {
			return apperr.New(apperr.NotFound, "receiver not found")
		}

		if receiver.IsBanned {
			return apperr.New(apperr.AccountBanned, "receiver is banned, the transfer cannot be completed")
		}
		if sender.IsBanned {
			return apperr.New(apperr.AccountBanned, "you are blocked and cannot perform transactions")
		}
		if sender.Balance < amount {
			return apperr.New(apperr.InsufficientFunds, "insufficient funds")
		}

		if err := tx.AddBalance(ctx, sender.ID, -amount); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, receiver.ID, amount); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, sender.ID, receiver.ID, amount)
	})
	if err != nil {
		return s.fail(log, op, err)
	}

	log.Info("Transfer completed")

	return nil
}

func (s *Service) History(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	const op = "ledger.History"

	var entries []models.HistoryEntry
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		entries, err = tx.History(ctx, userID, historyLimit)
		return err
	})
	if err != nil {
		return nil, s.fail(s.log.With(slog.String("op", op)), op, err)
	}

	return entries, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (models.User, error) {
	const op = "ledger.Profile"

	var user models.User
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		user, err = tx.UserByID(ctx, userID)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return err
	})
	if err != nil {
		return models.User{}, s.fail(s.log.With(slog.String("op", op)), op, err)
	}

	return user, nil
}

// Overview returns the number of registered accounts.
func (s *Service) Overview(ctx context.Context) (int64, error) {
	const op = "ledger.Overview"

	var count int64
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		count, err = tx.CountUsers(ctx)
		return err
	})
	if err != nil {
		return 0, s.fail(s.log.With(slog.String("op", op)), op, err)
	}

	return count, nil
}

// fail passes domain outcomes through and turns anything else into a
// store failure, logging the cause.
func (s *Service) fail(log *slog.Logger, op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		log.Info("Operation rejected", slog.String("kind", string(appErr.Kind)), slog.String("reason", appErr.Message))
		return err
	}

	log.Error("Store failure", slog.String("error", err.Error()))

	return apperr.Wrap(apperr.TransientStoreFailure, "storage is temporarily unavailable", fmt.Errorf("%s: %w", op, err))
}
