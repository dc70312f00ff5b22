package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"rental-scout/models"
)

type memSessions struct {
	mu       sync.Mutex
	steps    map[int64]models.Step
	failSave bool
}

func newMemSessions() *memSessions {
	return &memSessions{steps: make(map[int64]models.Step)}
}

func (s *memSessions) CreateOrReplace(_ context.Context, chatID int64, step models.Step, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("sessions table locked")
	}
	if step == models.StepNone {
		delete(s.steps, chatID)
		return nil
	}
	s.steps[chatID] = step
	return nil
}

func (s *memSessions) Get(_ context.Context, chatID int64) (models.ConversationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[chatID]
	if !ok {
		return models.ConversationSession{}, false
	}
	return models.ConversationSession{ChatID: chatID, Step: step, Payload: map[string]any{}}, true
}

func (s *memSessions) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.steps, chatID)
	return nil
}

func (s *memSessions) step(chatID int64) (models.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[chatID]
	return step, ok
}

type memUsers struct {
	mu      sync.Mutex
	users   map[int64]*models.UserPreferences
	failSet error
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int64]*models.UserPreferences)}
}

func (u *memUsers) get(chatID int64) *models.UserPreferences {
	p, ok := u.users[chatID]
	if !ok {
		p = &models.UserPreferences{ChatID: chatID, Notifications: true}
		u.users[chatID] = p
	}
	return p
}

func (u *memUsers) EnsureUser(_ context.Context, chatID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.get(chatID)
	return nil
}

func (u *memUsers) TouchUser(context.Context, int64) error { return nil }

func (u *memUsers) Preferences(_ context.Context, chatID int64) (models.UserPreferences, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.users[chatID]; ok {
		return *p, nil
	}
	return models.UserPreferences{ChatID: chatID}, nil
}

func (u *memUsers) SetPreference(_ context.Context, chatID int64, field models.PreferenceField, value any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failSet != nil {
		return u.failSet
	}
	p := u.get(chatID)
	switch field {
	case models.PrefPriceMin:
		p.PriceMin = models.IntPtr(value.(int))
	case models.PrefPriceMax:
		p.PriceMax = models.IntPtr(value.(int))
	case models.PrefSurfaceMin:
		p.SurfaceMin = models.IntPtr(value.(int))
	case models.PrefSurfaceMax:
		p.SurfaceMax = models.IntPtr(value.(int))
	case models.PrefPropertyType:
		p.PropertyType = value.(string)
	case models.PrefLocation:
		p.Location = value.(string)
	default:
		return errors.New("unknown field")
	}
	return nil
}

func (u *memUsers) ResetPreferences(_ context.Context, chatID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.get(chatID)
	p.PriceMin, p.PriceMax, p.SurfaceMin, p.SurfaceMax = nil, nil, nil, nil
	p.PropertyType = ""
	return nil
}

func (u *memUsers) SetAlerts(_ context.Context, chatID int64, email string, enabled bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failSet != nil {
		return u.failSet
	}
	p := u.get(chatID)
	p.Email = email
	p.Notifications = enabled
	return nil
}

func (u *memUsers) Subscribers(context.Context) ([]models.UserPreferences, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []models.UserPreferences
	for _, p := range u.users {
		if p.Notifications && p.Email != "" {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (u *memUsers) CountUsers(context.Context) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return int64(len(u.users)), nil
}

type memSearchLog struct {
	mu     sync.Mutex
	events []models.SearchEvent
	fail   bool
}

func (l *memSearchLog) AppendSearch(_ context.Context, ev models.SearchEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("search log unavailable")
	}
	l.events = append(l.events, ev)
	return nil
}

func (l *memSearchLog) CountSearches(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.events)), nil
}

func (l *memSearchLog) CountUserSearches(_ context.Context, chatID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, ev := range l.events {
		if ev.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

type searchCall struct {
	location string
	filter   models.SearchFilter
}

type fakeSearcher struct {
	mu       sync.Mutex
	calls    []searchCall
	results  []models.ListingRecord
	err      error
	byCity   map[string][]models.ListingRecord
	active   int64
	maxInUse int64
}

func (s *fakeSearcher) Search(_ context.Context, location string, filter models.SearchFilter) ([]models.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{location: location, filter: filter})
	if s.err != nil {
		return nil, s.err
	}
	if s.byCity != nil {
		return s.byCity[location], nil
	}
	return s.results, nil
}

func (s *fakeSearcher) Active() int64  { return s.active }
func (s *fakeSearcher) Ceiling() int64 { return s.maxInUse }

func (s *fakeSearcher) lastCall() searchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
