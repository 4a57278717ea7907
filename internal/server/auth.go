package server

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// TableAuth guards private tables with bcrypt-hashed access codes. A
// table without a code is open to anyone.
type TableAuth struct {
	mu    sync.Mutex
	cost  int
	codes map[string][]byte // gameID -> bcrypt hash
}

// NewTableAuth creates a table code store with the given bcrypt cost.
func NewTableAuth(cost int) *TableAuth {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &TableAuth{
		cost:  cost,
		codes: make(map[string][]byte),
	}
}

// SetCode protects a table with an access code.
func (ta *TableAuth) SetCode(gameID, code string) error {
	if code == "" {
		return fmt.Errorf("access code must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), ta.cost)
	if err != nil {
		return fmt.Errorf("hashing access code: %w", err)
	}
	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.codes[gameID] = hash
	return nil
}

// Verify checks an access code against a table. Open tables accept any
// code, including none.
func (ta *TableAuth) Verify(gameID, code string) bool {
	ta.mu.Lock()
	hash, protected := ta.codes[gameID]
	ta.mu.Unlock()
	if !protected {
		return true
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}

// Remove drops a table's code when the game ends.
func (ta *TableAuth) Remove(gameID string) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	delete(ta.codes, gameID)
}
