package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
)

const defaultBanReason = "no reason"

func checkRole(caller models.User, found bool) error {
	if !found {
		return apperr.New(apperr.Unauthenticated, "account no longer exists")
	}
	if !caller.IsAdmin() {
		return apperr.New(apperr.PermissionDenied, "you do not have sufficient rights to perform this action")
	}
	return nil
}

func (s *Service) CheckAdmin(ctx context.Context, userID int64) error {
	const op = "ledger.CheckAdmin"

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		caller, err := tx.UserByID(ctx, userID)
		if errors.Is(err, storage.ErrUserNotFound) {
			return checkRole(models.User{}, false)
		}
		if err != nil {
			return err
		}
		return checkRole(caller, true)
	})
	if err != nil {
		return s.fail(s.log.With(slog.String("op", op), slog.Int64("user_id", userID)), op, err)
	}

	return nil
}

// SetBan bans or unbans targetUsername. The caller and target rows are
// locked together in id order, and the caller's role is checked on the
// locked row.
func (s *Service) SetBan(ctx context.Context, adminID int64, targetUsername string, change BanChange) error {
	const op = "ledger.SetBan"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("admin_id", adminID),
		slog.String("target", targetUsername),
		slog.Bool("banned", change.Banned),
	)

	reason := change.Reason
	if reason == "" {
		reason = defaultBanReason
	}

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		// Role check before the target lookup so non-admins learn nothing about usernames.
		caller, err := tx.UserByID(ctx, adminID)
		if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			return err
		}
		if roleErr := checkRole(caller, err == nil); roleErr != nil {
			return roleErr
		}

		target, err := tx.UserByUsername(ctx, targetUsername)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "user with this username not found", err)
		}
		if err != nil {
			return err
		}

		locked, err := tx.LockUsers(ctx, adminID, target.ID)
		if err != nil {
			return err
		}
		caller, ok := locked[adminID]
		if err := checkRole(caller, ok); err != nil {
			return err
		}
		if _, ok := locked[target.ID]; !ok {
			return apperr.New(apperr.NotFound, "user with this username not found")
		}

		err = tx.SetBan(ctx, target.ID, change.Banned, reason)
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.Wrap(apperr.NotFound, "user with this username not found", err)
		}
		return err
	})
	if err != nil {
		return s.fail(log, op, err)
	}

	log.Info("Ban state changed")

	return nil
}
