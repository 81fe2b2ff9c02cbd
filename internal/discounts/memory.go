package discounts

import (
	"context"
	"sync"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
)

type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]Code
}

func NewMemoryStore(codes ...Code) *MemoryStore {
	m := &MemoryStore{codes: map[string]Code{}}
	for _, c := range codes {
		c.Code = Normalize(c.Code)
		m.codes[c.Code] = c
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, code string) (Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[Normalize(code)]
	if !ok {
		return Code{}, apperr.NotFound("DISCOUNT")
	}
	return c, nil
}

func (m *MemoryStore) Create(_ context.Context, c Code) error {
	if err := c.Check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Code = Normalize(c.Code)
	if _, ok := m.codes[c.Code]; ok {
		return apperr.Conflict("DISCOUNT_EXISTS", nil)
	}
	m.codes[c.Code] = c
	return nil
}

func (m *MemoryStore) IncrementUsage(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[Normalize(code)]
	if !ok || c.Exhausted() {
		return false, nil
	}
	c.UsedCount++
	m.codes[c.Code] = c
	return true, nil
}
