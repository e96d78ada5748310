package storage

import (
	"context"
	"errors"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrJarNotFound  = errors.New("jar not found")
)

// Tx is one unit of work bound to a single leased connection. Methods named
// Lock* take row locks held until the unit of work ends.
type Tx interface {
	CreateUser(ctx context.Context, username string, passHash []byte) (int64, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	LockUser(ctx context.Context, id int64) (models.User, error)
	// LockUsers locks the given rows in ascending id order. Missing ids are
	// absent from the result.
	LockUsers(ctx context.Context, ids ...int64) (map[int64]models.User, error)
	AddBalance(ctx context.Context, userID, delta int64) error
	SaveTransaction(ctx context.Context, senderID, receiverID, amount int64) error
	History(ctx context.Context, userID int64, limit int) ([]models.HistoryEntry, error)
	CountUsers(ctx context.Context) (int64, error)
	SetBan(ctx context.Context, userID int64, banned bool, reason string) error

	CreateJar(ctx context.Context, jar models.Jar) (int64, error)
	Jars(ctx context.Context, userID int64) ([]models.Jar, error)
	LockJar(ctx context.Context, userID, jarID int64) (models.Jar, error)
	AddJarBalance(ctx context.Context, jarID, delta int64) error
	DeleteJar(ctx context.Context, userID, jarID int64) error
}
