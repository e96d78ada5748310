package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
)

func (s *Service) Jars(ctx context.Context, userID int64) ([]models.Jar, error) {
	const op = "ledger.Jars"

	var jars []models.Jar
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		jars, err = tx.Jars(ctx, userID)
		return err
	})
	if err != nil {
		return nil, s.fail(s.log.With(slog.String("op", op)), op, err)
	}

	return jars, nil
}

func (s *Service) CreateJar(ctx context.Context, userID int64, in JarInput) (int64, error) {
	const op = "ledger.CreateJar"

	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	if in.Name == "" || in.Target == "" {
		return 0, apperr.New(apperr.InvalidInput, "name and target are required to create a jar")
	}
	if in.AccumulationAmount < 0 {
		return 0, apperr.New(apperr.InvalidInput, "accumulation amount must not be negative")
	}
	if in.Image == "" {
		in.Image = models.DefaultJarImage
	}

	var id int64
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		owner, err := tx.UserByID(ctx, userID)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "account not found", err)
		}
		if err != nil {
			return err
		}
		if owner.IsBanned {
			return apperr.New(apperr.AccountBanned, "you are blocked and cannot create a jar")
		}

		id, err = tx.CreateJar(ctx, models.Jar{
			UserID:             userID,
			Name:               in.Name,
			Target:             in.Target,
			AccumulationAmount: in.AccumulationAmount,
			Image:              in.Image,
		})
		return err
	})
	if err != nil {
		return 0, s.fail(log, op, err)
	}

	log.Info("Jar created", slog.Int64("jar_id", id))

	return id, nil
}

// MoveJarFunds deposits into or withdraws from a jar. The owner's balance
// and the jar's balance change by the same amount in opposite directions.
func (s *Service) MoveJarFunds(ctx context.Context, userID, jarID, amount int64, direction string) error {
	const op = "ledger.MoveJarFunds"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.Int64("jar_id", jarID),
		slog.String("direction", direction),
		slog.Int64("amount", amount),
	)

	if direction != models.JarDeposit && direction != models.JarWithdraw {
		return apperr.New(apperr.InvalidOperation, "unsupported jar operation")
	}
	if amount <= 0 {
		return apperr.New(apperr.InvalidOperation, "amount must be positive")
	}

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		owner, err := tx.LockUser(ctx, userID)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "account not found", err)
		}
		if err != nil {
			return err
		}
		if owner.IsBanned {
			return apperr.New(apperr.AccountBanned, "you are blocked and cannot operate jars")
		}

		jar, err := tx.LockJar(ctx, userID, jarID)
		if errors.Is(err, storage.ErrJarNotFound) {
			return apperr.Wrap(apperr.NotFound, "jar not found", err)
		}
		if err != nil {
			return err
		}

		accountDelta, jarDelta := -amount, amount
		if direction == models.JarWithdraw {
			if jar.Balance < amount {
				return apperr.New(apperr.InsufficientFunds, "insufficient funds in the jar")
			}
			accountDelta, jarDelta = amount, -amount
		} else if owner.Balance < amount {
			return apperr.New(apperr.InsufficientFunds, "insufficient funds on your balance")
		}

		if err := tx.AddJarBalance(ctx, jar.ID, jarDelta); err != nil {
			return err
		}
		return tx.AddBalance(ctx, owner.ID, accountDelta)
	})
	if err != nil {
		return s.fail(log, op, err)
	}

	log.Info("Jar balance moved")

	return nil
}

// DeleteJar removes the jar and returns its residual balance to the owner.
func (s *Service) DeleteJar(ctx context.Context, userID, jarID int64) (int64, error) {
	const op = "ledger.DeleteJar"

	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.Int64("jar_id", jarID))

	var residual int64
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		// Owner row first, same order as MoveJarFunds.
		if _, err := tx.LockUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return apperr.Wrap(apperr.NotFound, "account not found", err)
			}
			return err
		}

		jar, err := tx.LockJar(ctx, userID, jarID)
		if errors.Is(err, storage.ErrJarNotFound) {
			return apperr.Wrap(apperr.NotFound, "jar not found", err)
		}
		if err != nil {
			return err
		}

		if jar.Balance > 0 {
			if err := tx.AddBalance(ctx, userID, jar.Balance); err != nil {
				return err
			}
		}
		if err := tx.DeleteJar(ctx, userID, jarID); err != nil {
			return err
		}

		residual = jar.Balance
		return nil
	})
	if err != nil {
		return 0, s.fail(log, op, err)
	}

	log.Info("Jar deleted", slog.Int64("returned", residual))

	return residual, nil
}
