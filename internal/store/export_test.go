package store

var MigrateURLForTest = migrateURL

func (m *Memory) NotifOrderLenForTest() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifOrder)
}
