package dashboard

// Tracked exposes the lock and unsaved-state map sizes to tests.
func Tracked(s *Service) (locks, cached int) { return s.tracked() }
