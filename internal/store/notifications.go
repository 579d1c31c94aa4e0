package store

import "github.com/stellarsave/stellarsave/internal/model"

// RecordNotification prepends n and evicts past the retention cap.
func (s *Store) RecordNotification(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]model.Notification{n}, s.notifications...)
	s.evictLocked()
}

// EvictOldNotifications truncates to the most recent entries.
func (s *Store) EvictOldNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
}

func (s *Store) evictLocked() {
	if len(s.notifications) > s.notificationCap {
		s.notifications = s.notifications[:s.notificationCap:s.notificationCap]
	}
}

// MarkNotificationRead marks one notification read.
func (s *Store) MarkNotificationRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every notification read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
}

// ClearNotifications drops every notification.
func (s *Store) ClearNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = nil
}

// Notifications returns all notifications, most recent first.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Notification(nil), s.notifications...)
}

// UnreadNotifications returns unread notifications, most recent first.
func (s *Store) UnreadNotifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}
