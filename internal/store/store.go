// Package store holds the session's cached copies of the two remote
// collections. It is the single source of truth for the session: all
// mutations go through its methods under one lock, so readers never
// observe a partial write.
package store

import (
	"sync"
	"time"

	"returnsdash/internal/models"
)

type Store struct {
	mu sync.RWMutex

	returns   []models.Return
	byID      map[int64]int // return id -> index into returns
	merchants []models.Merchant

	selectedMerchantID int64 // 0 means nothing selected
	loading            bool

	message    string
	messageGen uint64
	messageTTL time.Duration

	inflight map[int64]struct{} // return ids with a gateway write in progress
}

func New(messageTTL time.Duration) *Store {
	return &Store{
		byID:       make(map[int64]int),
		inflight:   make(map[int64]struct{}),
		messageTTL: messageTTL,
		loading:    true,
	}
}

// SetReturns replaces the cached returns collection. Duplicate ids within
// a fetch violate the server contract; the first occurrence wins.
func (s *Store) SetReturns(returns []models.Return) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.returns = make([]models.Return, 0, len(returns))
	s.byID = make(map[int64]int, len(returns))
	for _, r := range returns {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.byID[r.ID] = len(s.returns)
		s.returns = append(s.returns, r)
	}
}

func (s *Store) SetMerchants(merchants []models.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants = make([]models.Merchant, len(merchants))
	copy(s.merchants, merchants)
}

// Returns yields a snapshot copy in original fetch order. Derived
// computations work on the snapshot and are unaffected by later writes.
func (s *Store) Returns() []models.Return {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Return, len(s.returns))
	copy(out, s.returns)
	return out
}

func (s *Store) Merchants() []models.Merchant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Merchant, len(s.merchants))
	copy(out, s.merchants)
	return out
}

func (s *Store) GetReturn(id int64) (models.Return, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return models.Return{}, false
	}
	return s.returns[idx], true
}

func (s *Store) GetMerchant(id int64) (models.Merchant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.merchants {
		if m.ID == id {
			return m, true
		}
	}
	return models.Merchant{}, false
}

// UpdateStatus replaces the status of one return in place, leaving every
// other field and every other return untouched. Returns false when the id
// is unknown. Applying the same status twice is a no-op.
func (s *Store) UpdateStatus(id int64, status models.ReturnStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	s.returns[idx].Status = status
	return true
}

func (s *Store) SelectMerchant(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedMerchantID = id
}

func (s *Store) SelectedMerchant() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedMerchantID
}

func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetMessage publishes a transient success message that auto-clears after
// the configured TTL. A newer message supersedes an older one: the older
// timer fires against a stale generation and does nothing.
func (s *Store) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.messageGen++
	gen := s.messageGen
	ttl := s.messageTTL
	s.mu.Unlock()

	if ttl <= 0 {
		return
	}
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.messageGen == gen {
			s.message = ""
		}
	})
}

func (s *Store) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// BeginAction marks a return as having a gateway write in flight. It
// returns false when another action on the same id has not finished yet;
// actions on different ids are independent.
func (s *Store) BeginAction(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Store) EndAction(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
