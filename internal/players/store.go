package players

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store reports what a player has equipped. Single-slot categories return at
// most one id; multi-slot categories return ids in equip order.
type Store interface {
	ActiveCosmetics(player uuid.UUID, category string) []string
}

// MemoryStore keeps equipped cosmetics in memory. It is safe for concurrent
// use.
type MemoryStore struct {
	mu     sync.RWMutex
	active map[uuid.UUID]map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[uuid.UUID]map[string][]string)}
}

func (s *MemoryStore) ActiveCosmetics(player uuid.UUID, category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.active[player][normalize(category)]
	if len(ids) == 0 {
		return nil
	}
	return append([]string(nil), ids...)
}

// SetActive equips a single cosmetic, replacing the category's selection.
func (s *MemoryStore) SetActive(player uuid.UUID, category, cosmetic string) {
	s.SetActiveList(player, category, []string{cosmetic})
}

// SetActiveList replaces the category's selection. Blank and duplicate ids
// are dropped; an empty result unequips the category.
func (s *MemoryStore) SetActiveList(player uuid.UUID, category string, cosmetics []string) {
	category = normalize(category)
	if category == "" {
		return
	}
	seen := make(map[string]struct{}, len(cosmetics))
	ids := make([]string, 0, len(cosmetics))
	for _, raw := range cosmetics {
		id := normalize(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.removeLocked(player, category)
		return
	}
	categories := s.active[player]
	if categories == nil {
		categories = make(map[string][]string)
		s.active[player] = categories
	}
	categories[category] = ids
}

// Remove unequips one category.
func (s *MemoryStore) Remove(player uuid.UUID, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(player, normalize(category))
}

// Clear unequips everything for the player.
func (s *MemoryStore) Clear(player uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, player)
}

// Equipped counts equipped cosmetics across all categories.
func (s *MemoryStore) Equipped(player uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, ids := range s.active[player] {
		total += len(ids)
	}
	return total
}

func (s *MemoryStore) removeLocked(player uuid.UUID, category string) {
	categories := s.active[player]
	if categories == nil {
		return
	}
	delete(categories, category)
	if len(categories) == 0 {
		delete(s.active, player)
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
