package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
)

var errCheckViolation = errors.New("check constraint violation")

type memState struct {
	users     map[int64]models.User
	jars      map[int64]models.Jar
	transfers []models.Transaction
	nextUser  int64
	nextJar   int64
}

func (s memState) clone() memState {
	c := memState{
		users:     make(map[int64]models.User, len(s.users)),
		jars:      make(map[int64]models.Jar, len(s.jars)),
		transfers: append([]models.Transaction(nil), s.transfers...),
		nextUser:  s.nextUser,
		nextJar:   s.nextJar,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.jars {
		c.jars[k] = v
	}
	return c
}

// memStore runs units of work one at a time on a copy of the state and
// keeps the copy only when fn succeeds.
type memStore struct {
	mu     sync.Mutex
	state  memState
	failOn map[string]error
	// atomicErr, when set, fails Atomic before fn runs.
	atomicErr error
	// locks records every row-lock call in the order it was made.
	locks []string
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			users: make(map[int64]models.User),
			jars:  make(map[int64]models.Jar),
		},
		failOn: make(map[string]error),
	}
}

func (m *memStore) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.atomicErr != nil {
		return m.atomicErr
	}

	tx := &memTx{state: m.state.clone(), failOn: m.failOn, locks: &m.locks}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) seedUser(username string, balance int64, banned bool, role string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextUser++
	id := m.state.nextUser
	m.state.users[id] = models.User{
		ID:           id,
		Username:     username,
		PasswordHash: "x",
		Balance:      balance,
		IsBanned:     banned,
		AccessRights: role,
		CreatedAt:    time.Now(),
	}
	return id
}

func (m *memStore) seedJar(userID, balance int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextJar++
	id := m.state.nextJar
	m.state.jars[id] = models.Jar{ID: id, UserID: userID, Balance: balance, Name: "jar", Target: "target"}
	return id
}

func (m *memStore) user(id int64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[id]
}

func (m *memStore) jar(id int64) (models.Jar, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jar, ok := m.state.jars[id]
	return jar, ok
}

func (m *memStore) transfers() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transaction(nil), m.state.transfers...)
}

func (m *memStore) lockCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locks...)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.users)
}

type memTx struct {
	state  memState
	failOn map[string]error
	locks  *[]string
}

func (t *memTx) fail(method string) error {
	if err, ok := t.failOn[method]; ok {
		return fmt.Errorf("memstore.%s: %w", method, err)
	}
	return nil
}

func (t *memTx) CreateUser(ctx context.Context, username string, passHash []byte) (int64, error) {
	if err := t.fail("CreateUser"); err != nil {
		return 0, err
	}
	for _, u := range t.state.users {
		if u.Username == username {
			return 0, fmt.Errorf("memstore.CreateUser: %w", storage.ErrUserExists)
		}
	}
	t.state.nextUser++
	id := t.state.nextUser
	t.state.users[id] = models.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(passHash),
		AccessRights: models.RoleUser,
		BanReason:    "user is not banned",
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (t *memTx) UserByUsername(ctx context.Context, username string) (models.User, error) {
	for _, u := range t.state.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("memstore.UserByUsername: %w", storage.ErrUserNotFound)
}

func (t *memTx) UserByID(ctx context.Context, id int64) (models.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("memstore.UserByID: %w", storage.ErrUserNotFound)
	}
	return u, nil
}

func (t *memTx) LockUser(ctx context.Context, id int64) (models.User, error) {
	*t.locks = append(*t.locks, fmt.Sprintf("LockUser %d", id))
	return t.UserByID(ctx, id)
}

func (t *memTx) LockUsers(ctx context.Context, ids ...int64) (map[int64]models.User, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i] < sorted[k] })
	*t.locks = append(*t.locks, fmt.Sprintf("LockUsers %v", sorted))
	out := make(map[int64]models.User, len(ids))
	for _, id := range ids {
		if u, ok := t.state.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (t *memTx) AddBalance(ctx context.Context, userID, delta int64) error {
	if err := t.fail("AddBalance"); err != nil {
		return err
	}
	u, ok := t.state.users[userID]
	if !ok {
		return fmt.Errorf("memstore.AddBalance: %w", storage.ErrUserNotFound)
	}
	u.Balance += delta
	if u.Balance < 0 {
		return fmt.Errorf("memstore.AddBalance: %w", errCheckViolation)
	}
	t.state.users[userID] = u
	return nil
}

func (t *memTx) SaveTransaction(ctx context.Context, senderID, receiverID, amount int64) error {
	if err := t.fail("SaveTransaction"); err != nil {
		return err
	}
	t.state.transfers = append(t.state.transfers, models.Transaction{
		ID:         int64(len(t.state.transfers) + 1),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (t *memTx) History(ctx context.Context, userID int64, limit int) ([]models.HistoryEntry, error) {
	entries := make([]models.HistoryEntry, 0)
	for i := len(t.state.transfers) - 1; i >= 0 && len(entries) < limit; i-- {
		tr := t.state.transfers[i]
		switch userID {
		case tr.SenderID:
			entries = append(entries, models.HistoryEntry{
				Type:         models.HistoryOutgoing,
				Amount:       -tr.Amount,
				Counterparty: t.state.users[tr.ReceiverID].Username,
				At:           tr.CreatedAt,
			})
		case tr.ReceiverID:
			entries = append(entries, models.HistoryEntry{
				Type:         models.HistoryIncoming,
				Amount:       tr.Amount,
				Counterparty: t.state.users[tr.SenderID].Username,
				At:           tr.CreatedAt,
			})
		}
	}
	return entries, nil
}

func (t *memTx) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(t.state.users)), nil
}

func (t *memTx) SetBan(ctx context.Context, userID int64, banned bool, reason string) error {
	u, ok := t.state.users[userID]
	if !ok {
		return fmt.Errorf("memstore.SetBan: %w", storage.ErrUserNotFound)
	}
	u.IsBanned = banned
	if banned {
		u.BanReason = reason
	} else {
		u.BanReason = "user is not banned"
	}
	t.state.users[userID] = u
	return nil
}

func (t *memTx) CreateJar(ctx context.Context, jar models.Jar) (int64, error) {
	t.state.nextJar++
	jar.ID = t.state.nextJar
	jar.Balance = 0
	t.state.jars[jar.ID] = jar
	return jar.ID, nil
}

func (t *memTx) Jars(ctx context.Context, userID int64) ([]models.Jar, error) {
	jars := make([]models.Jar, 0)
	for _, j := range t.state.jars {
		if j.UserID == userID {
			jars = append(jars, j)
		}
	}
	sort.Slice(jars, func(i, k int) bool { return jars[i].ID < jars[k].ID })
	return jars, nil
}

func (t *memTx) LockJar(ctx context.Context, userID, jarID int64) (models.Jar, error) {
	j, ok := t.state.jars[jarID]
	if !ok || j.UserID != userID {
		return models.Jar{}, fmt.Errorf("memstore.LockJar: %w", storage.ErrJarNotFound)
	}
	return j, nil
}

func (t *memTx) AddJarBalance(ctx context.Context, jarID, delta int64) error {
	if err := t.fail("AddJarBalance"); err != nil {
		return err
	}
	j, ok := t.state.jars[jarID]
	if !ok {
		return fmt.Errorf("memstore.AddJarBalance: %w", storage.ErrJarNotFound)
	}
	j.Balance += delta
	if j.Balance < 0 {
		return fmt.Errorf("memstore.AddJarBalance: %w", errCheckViolation)
	}
	t.state.jars[jarID] = j
	return nil
}

func (t *memTx) DeleteJar(ctx context.Context, userID, jarID int64) error {
	if err := t.fail("DeleteJar"); err != nil {
		return err
	}
	j, ok := t.state.jars[jarID]
	if !ok || j.UserID != userID {
		return fmt.Errorf("memstore.DeleteJar: %w", storage.ErrJarNotFound)
	}
	delete(t.state.jars, jarID)
	return nil
}

var _ storage.Tx = (*memTx)(nil)
