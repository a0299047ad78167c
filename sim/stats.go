package sim

// ManagerStats provides a snapshot of manager contents.
type ManagerStats struct {
	EntityCount        int
	PendingErasures    int
	ComponentTypeCount int
	ComponentTypes     []ComponentTypeStats
}

// ComponentTypeStats describes one component type's storage and its open
// change-tracking windows.
type ComponentTypeStats struct {
	Name             string
	ComponentCount   int
	NewThisWindow    int
	ErasedThisWindow int
}

// CollectStats gathers statistics about the manager's current state.
func (m *Manager) CollectStats() ManagerStats {
	m.mu.RLock()
	stats := ManagerStats{
		EntityCount:     m.aliveCount,
		PendingErasures: len(m.pending),
	}
	m.mu.RUnlock()

	m.storeMu.RLock()
	defer m.storeMu.RUnlock()

	stats.ComponentTypeCount = len(m.ordered)
	stats.ComponentTypes = make([]ComponentTypeStats, 0, len(m.ordered))
	for _, st := range m.ordered {
		stats.ComponentTypes = append(stats.ComponentTypes, ComponentTypeStats{
			Name:             st.componentType().String(),
			ComponentCount:   st.count(),
			NewThisWindow:    st.newCount(),
			ErasedThisWindow: st.erasedCount(),
		})
	}
	return stats
}
