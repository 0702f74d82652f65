package state

import (
	"sync"
	"time"
)

// Manager хранит состояния диалогов в памяти процесса.
// Брошенный диалог протухает через ttl.
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData // telegramID -> UserData
	ttl    time.Duration
	now    func() time.Time
}

// NewManager создаёт менеджер состояний. ttl <= 0 отключает протухание.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		states: make(map[int64]*UserData),
		ttl:    ttl,
		now:    time.Now,
	}
}

// lookup возвращает живую запись. Вызывать под блокировкой.
func (sm *Manager) lookup(telegramID int64) (*UserData, bool) {
	userData, exists := sm.states[telegramID]
	if !exists {
		return nil, false
	}
	if sm.ttl > 0 && sm.now().Sub(userData.UpdatedAt) > sm.ttl {
		return nil, false
	}
	return userData, true
}

// GetState получает текущее состояние пользователя
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, ok := sm.lookup(telegramID); ok {
		return userData.State
	}
	return StateNone
}

// SetState устанавливает состояние пользователя
func (sm *Manager) SetState(telegramID int64, state UserState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.states, telegramID)
		return
	}

	userData, ok := sm.lookup(telegramID)
	if !ok {
		userData = &UserData{Data: make(map[string]interface{})}
		sm.states[telegramID] = userData
	}
	userData.State = state
	userData.UpdatedAt = sm.now()
}

// GetData получает временные данные пользователя
func (sm *Manager) GetData(telegramID int64, key string) (interface{}, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, ok := sm.lookup(telegramID); ok {
		value, exists := userData.Data[key]
		return value, exists
	}
	return nil, false
}

// SetData устанавливает временные данные пользователя
func (sm *Manager) SetData(telegramID int64, key string, value interface{}) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData, ok := sm.lookup(telegramID)
	if !ok {
		userData = &UserData{State: StateNone, Data: make(map[string]interface{})}
		sm.states[telegramID] = userData
	}
	userData.Data[key] = value
	userData.UpdatedAt = sm.now()
}

// ClearState очищает состояние и данные пользователя
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, telegramID)
}

// GetAllData возвращает копию данных диалога
func (sm *Manager) GetAllData(telegramID int64) map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	userData, ok := sm.lookup(telegramID)
	if !ok {
		return nil
	}
	dataCopy := make(map[string]interface{}, len(userData.Data))
	for k, v := range userData.Data {
		dataCopy[k] = v
	}
	return dataCopy
}

// Prune удаляет протухшие диалоги, возвращает их число
func (sm *Manager) Prune() int {
	if sm.ttl <= 0 {
		return 0
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, userData := range sm.states {
		if sm.now().Sub(userData.UpdatedAt) > sm.ttl {
			delete(sm.states, id)
			removed++
		}
	}
	return removed
}
