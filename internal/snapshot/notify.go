package snapshot

type subCh = chan string // carries new ETags

// Subscribe registers a listener and returns its channel and an unsubscribe func.
func (m *Manager) Subscribe() (subCh, func()) {
	ch := make(subCh, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	unsub := func() {
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}
	return ch, unsub
}

// publishUpdate notifies all listeners (non-blocking).
func (m *Manager) publishUpdate(etag string) {
	m.mu.Lock()
	for ch := range m.subs {
		select {
		case ch <- etag:
		default: // if client is slow, skip instead of blocking
		}
	}
	m.mu.Unlock()
}
