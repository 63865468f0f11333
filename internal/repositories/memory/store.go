package memory

import (
	"context"
	"sync"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// insertBase marks a document staged by an insert in the current transaction.
const insertBase int64 = -1

type txKey struct{}

// Store keeps all collections in process memory. Writes are staged in a
// transaction and validated against document versions at commit, the way a
// replica-set transaction aborts on a write conflict.
type Store struct {
	mu       sync.RWMutex
	rides    map[primitive.ObjectID]*models.Ride
	chats    map[primitive.ObjectID]*models.Chat
	messages map[primitive.ObjectID][]*models.Message
	users    map[string]*models.User

	feed *feed
}

func New() *Store {
	return &Store{
		rides:    make(map[primitive.ObjectID]*models.Ride),
		chats:    make(map[primitive.ObjectID]*models.Chat),
		messages: make(map[primitive.ObjectID][]*models.Message),
		users:    make(map[string]*models.User),
		feed:     newFeed(),
	}
}

func (s *Store) Close() error {
	s.feed.closeAll()
	return nil
}

type userOp struct {
	id     string
	insert bool
	apply  func(cur *models.User) *models.User
}

type txn struct {
	rides    map[primitive.ObjectID]*models.Ride
	rideBase map[primitive.ObjectID]int64
	chats    map[primitive.ObjectID]*models.Chat
	chatBase map[primitive.ObjectID]int64
	messages []*models.Message
	users    map[string]*models.User
	userOps  []userOp
}

func newTxn() *txn {
	return &txn{
		rides:    make(map[primitive.ObjectID]*models.Ride),
		rideBase: make(map[primitive.ObjectID]int64),
		chats:    make(map[primitive.ObjectID]*models.Chat),
		chatBase: make(map[primitive.ObjectID]int64),
		users:    make(map[string]*models.User),
	}
}

func txFromContext(ctx context.Context) *txn {
	tx, _ := ctx.Value(txKey{}).(*txn)
	return tx
}

func (tx *txn) stageRide(ride *models.Ride, base int64) {
	if _, ok := tx.rideBase[ride.ID]; !ok {
		tx.rideBase[ride.ID] = base
	}
	tx.rides[ride.ID] = ride
}

func (tx *txn) stageChat(chat *models.Chat, base int64) {
	if _, ok := tx.chatBase[chat.ID]; !ok {
		tx.chatBase[chat.ID] = base
	}
	tx.chats[chat.ID] = chat
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx := newTxn()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

// run executes fn inside the caller's transaction, or inside a fresh one that
// is committed right away.
func (s *Store) run(ctx context.Context, fn func(tx *txn) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(tx)
	}
	tx := newTxn()
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range tx.rideBase {
		cur, ok := s.rides[id]
		if base == insertBase {
			if ok {
				return interfaces.ErrDuplicate
			}
			continue
		}
		if !ok || cur.Version != base {
			return interfaces.ErrWriteConflict
		}
	}
	for id, base := range tx.chatBase {
		cur, ok := s.chats[id]
		if base == insertBase {
			if ok || s.hasUniqueClash(tx.chats[id]) {
				return interfaces.ErrDuplicate
			}
			continue
		}
		if !ok || cur.Version != base {
			return interfaces.ErrWriteConflict
		}
	}
	exists := make(map[string]bool)
	for _, op := range tx.userOps {
		present, seen := exists[op.id]
		if !seen {
			_, present = s.users[op.id]
		}
		if op.insert && present {
			return interfaces.ErrDuplicate
		}
		if !op.insert && !present {
			return interfaces.ErrNotFound
		}
		exists[op.id] = true
	}

	now := time.Now()
	var events []models.ChangeEvent
	for id, ride := range tx.rides {
		op := models.OperationUpdate
		if tx.rideBase[id] == insertBase {
			op = models.OperationInsert
		}
		s.rides[id] = ride
		events = append(events, models.ChangeEvent{
			Collection: models.CollectionRides, Operation: op,
			DocumentID: id.Hex(), Document: ride.Clone(), Timestamp: now,
		})
	}
	for id, chat := range tx.chats {
		op := models.OperationUpdate
		if tx.chatBase[id] == insertBase {
			op = models.OperationInsert
		}
		s.chats[id] = chat
		events = append(events, models.ChangeEvent{
			Collection: models.CollectionChats, Operation: op,
			DocumentID: id.Hex(), Document: chat.Clone(), Timestamp: now,
		})
	}
	for _, msg := range tx.messages {
		s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
		m := *msg
		events = append(events, models.ChangeEvent{
			Collection: models.CollectionMessages, Operation: models.OperationInsert,
			DocumentID: msg.ID.Hex(), Document: &m, Timestamp: now,
		})
	}
	for _, op := range tx.userOps {
		u := op.apply(s.users[op.id].Clone())
		s.users[op.id] = u
		kind := models.OperationUpdate
		if op.insert {
			kind = models.OperationInsert
		}
		events = append(events, models.ChangeEvent{
			Collection: models.CollectionUsers, Operation: kind,
			DocumentID: op.id, Document: u.Clone(), Timestamp: now,
		})
	}

	s.feed.publish(events)
	return nil
}

// Visible reads: staged documents of the current transaction shadow the
// committed ones.

func (s *Store) ride(tx *txn, id primitive.ObjectID) (*models.Ride, bool) {
	if tx != nil {
		if r, ok := tx.rides[id]; ok {
			return r.Clone(), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	return r.Clone(), ok
}

func (s *Store) allRides(tx *txn) []*models.Ride {
	s.mu.RLock()
	out := make([]*models.Ride, 0, len(s.rides))
	for id, r := range s.rides {
		if tx != nil {
			if _, staged := tx.rides[id]; staged {
				continue
			}
		}
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	if tx != nil {
		for _, r := range tx.rides {
			out = append(out, r.Clone())
		}
	}
	return out
}

// hasUniqueClash mirrors the unique indexes on chats: one chat per ride and
// one direct chat per pair of users.
func (s *Store) hasUniqueClash(chat *models.Chat) bool {
	for _, c := range s.chats {
		if chat.DirectKey != "" && c.DirectKey == chat.DirectKey {
			return true
		}
		if chat.IsRideChat && chat.RideID != nil && c.RideID != nil && *c.RideID == *chat.RideID {
			return true
		}
	}
	return false
}

func (s *Store) chat(tx *txn, id primitive.ObjectID) (*models.Chat, bool) {
	if tx != nil {
		if c, ok := tx.chats[id]; ok {
			return c.Clone(), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	return c.Clone(), ok
}

func (s *Store) allChats(tx *txn) []*models.Chat {
	s.mu.RLock()
	out := make([]*models.Chat, 0, len(s.chats))
	for id, c := range s.chats {
		if tx != nil {
			if _, staged := tx.chats[id]; staged {
				continue
			}
		}
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	if tx != nil {
		for _, c := range tx.chats {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (s *Store) chatMessages(tx *txn, chatID primitive.ObjectID) []*models.Message {
	s.mu.RLock()
	out := make([]*models.Message, 0, len(s.messages[chatID]))
	for _, m := range s.messages[chatID] {
		cp := *m
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	if tx != nil {
		for _, m := range tx.messages {
			if m.ChatID == chatID {
				cp := *m
				out = append(out, &cp)
			}
		}
	}
	return out
}

func (s *Store) user(tx *txn, id string) (*models.User, bool) {
	if tx != nil {
		if u, ok := tx.users[id]; ok {
			return u.Clone(), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u.Clone(), ok
}
