package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJar(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 100, false, models.RoleUser)
	ctx := context.Background()

	id, err := svc.CreateJar(ctx, owner, JarInput{Name: "holiday", Target: "Lisbon", AccumulationAmount: 50})
	require.NoError(t, err)

	jar, ok := store.jar(id)
	require.True(t, ok)
	assert.Equal(t, owner, jar.UserID)
	assert.Equal(t, int64(0), jar.Balance)
	assert.Equal(t, models.DefaultJarImage, jar.Image)

	jars, err := svc.Jars(ctx, owner)
	require.NoError(t, err)
	require.Len(t, jars, 1)
	assert.Equal(t, "holiday", jars[0].Name)
}

func TestCreateJarRejections(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 100, false, models.RoleUser)
	banned := store.seedUser("mallory", 100, true, models.RoleUser)
	ctx := context.Background()

	_, err := svc.CreateJar(ctx, owner, JarInput{Target: "t"})
	requireKind(t, err, apperr.InvalidInput)

	_, err = svc.CreateJar(ctx, owner, JarInput{Name: "n", Target: "t", AccumulationAmount: -1})
	requireKind(t, err, apperr.InvalidInput)

	_, err = svc.CreateJar(ctx, banned, JarInput{Name: "n", Target: "t"})
	requireKind(t, err, apperr.AccountBanned)
}

func TestMoveJarFunds(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 100, false, models.RoleUser)
	jarID := store.seedJar(owner, 0)
	ctx := context.Background()

	require.NoError(t, svc.MoveJarFunds(ctx, owner, jarID, 70, models.JarDeposit))
	jar, _ := store.jar(jarID)
	assert.Equal(t, int64(30), store.user(owner).Balance)
	assert.Equal(t, int64(70), jar.Balance)

	require.NoError(t, svc.MoveJarFunds(ctx, owner, jarID, 20, models.JarWithdraw))
	jar, _ = store.jar(jarID)
	assert.Equal(t, int64(50), store.user(owner).Balance)
	assert.Equal(t, int64(50), jar.Balance)

	assert.Empty(t, store.transfers(), "jar moves are not part of the transfer audit")
}

func TestMoveJarFundsRejections(t *testing.T) {
	tests := []struct {
		name      string
		banned    bool
		account   int64
		jar       int64
		amount    int64
		direction string
		otherJar  bool
		kind      apperr.Kind
	}{
		{name: "deposit over balance", account: 10, amount: 11, direction: models.JarDeposit, kind: apperr.InsufficientFunds},
		{name: "withdraw over jar", account: 100, jar: 5, amount: 6, direction: models.JarWithdraw, kind: apperr.InsufficientFunds},
		{name: "unknown direction", account: 100, amount: 1, direction: "steal", kind: apperr.InvalidOperation},
		{name: "zero amount", account: 100, amount: 0, direction: models.JarDeposit, kind: apperr.InvalidOperation},
		{name: "banned owner", banned: true, account: 100, amount: 1, direction: models.JarDeposit, kind: apperr.AccountBanned},
		{name: "jar of another user", account: 100, amount: 1, direction: models.JarDeposit, otherJar: true, kind: apperr.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			owner := store.seedUser("alice", tt.account, tt.banned, models.RoleUser)
			jarOwner := owner
			if tt.otherJar {
				jarOwner = store.seedUser("bob", 0, false, models.RoleUser)
			}
			jarID := store.seedJar(jarOwner, tt.jar)

			err := svc.MoveJarFunds(context.Background(), owner, jarID, tt.amount, tt.direction)

			requireKind(t, err, tt.kind)
			jar, _ := store.jar(jarID)
			assert.Equal(t, tt.account, store.user(owner).Balance)
			assert.Equal(t, tt.jar, jar.Balance)
		})
	}
}

func TestMoveJarFundsRollsBackPartialMove(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 100, false, models.RoleUser)
	jarID := store.seedJar(owner, 0)
	store.failOn["AddBalance"] = errors.New("connection reset")

	err := svc.MoveJarFunds(context.Background(), owner, jarID, 40, models.JarDeposit)

	requireKind(t, err, apperr.TransientStoreFailure)
	jar, _ := store.jar(jarID)
	assert.Equal(t, int64(100), store.user(owner).Balance)
	assert.Equal(t, int64(0), jar.Balance)
}

func TestDeleteJarReturnsResidual(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 10, false, models.RoleUser)
	jarID := store.seedJar(owner, 90)

	returned, err := svc.DeleteJar(context.Background(), owner, jarID)
	require.NoError(t, err)

	assert.Equal(t, int64(90), returned)
	assert.Equal(t, int64(100), store.user(owner).Balance)
	_, ok := store.jar(jarID)
	assert.False(t, ok)
}

func TestDeleteJarIsAtomic(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 10, false, models.RoleUser)
	jarID := store.seedJar(owner, 90)
	store.failOn["DeleteJar"] = errors.New("lock timeout")

	_, err := svc.DeleteJar(context.Background(), owner, jarID)

	requireKind(t, err, apperr.TransientStoreFailure)
	assert.Equal(t, int64(10), store.user(owner).Balance)
	jar, ok := store.jar(jarID)
	require.True(t, ok)
	assert.Equal(t, int64(90), jar.Balance)
}

func TestDeleteJarNotFound(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.seedUser("alice", 10, false, models.RoleUser)
	other := store.seedUser("bob", 10, false, models.RoleUser)
	jarID := store.seedJar(other, 5)

	_, err := svc.DeleteJar(context.Background(), owner, jarID)
	requireKind(t, err, apperr.NotFound)

	_, err = svc.DeleteJar(context.Background(), owner, 12345)
	requireKind(t, err, apperr.NotFound)
}
