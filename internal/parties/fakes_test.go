package parties

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// memoryDB backs every store fake so tests can observe cross-table effects.
type memoryDB struct {
	mu            sync.Mutex
	parties       map[string]models.Party
	requests      map[string]models.PartyRequest
	attendees     []models.PartyAttendee
	reviews       []models.Review
	reports       []models.Report
	users         map[string]models.User
	friends       map[[2]string]bool
	notifications []models.Notification

	// beforeUpdate runs inside memParties.Update before the status check, to
	// simulate a write that lands between a service's read and its update.
	beforeUpdate func(parties map[string]models.Party)
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		parties:  make(map[string]models.Party),
		requests: make(map[string]models.PartyRequest),
		users:    make(map[string]models.User),
		friends:  make(map[[2]string]bool),
	}
}

func (db *memoryDB) addUser(u models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

func (db *memoryDB) befriend(a, b string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.friends[[2]string{a, b}] = true
	db.friends[[2]string{b, a}] = true
}

func (db *memoryDB) addParty(p models.Party) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.parties[p.ID] = p
}

func (db *memoryDB) addAttendee(a models.PartyAttendee) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.attendees = append(db.attendees, a)
}

func (db *memoryDB) attendeeRows(partyID, userID string) []models.PartyAttendee {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.PartyAttendee
	for _, a := range db.attendees {
		if a.PartyID == partyID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (db *memoryDB) notificationsFor(userID string) []models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (db *memoryDB) withCount(p models.Party) models.Party {
	p.AttendeeCount = 0
	for _, a := range db.attendees {
		if a.PartyID == p.ID {
			p.AttendeeCount++
		}
	}
	return p
}

func (db *memoryDB) service(now time.Time) *Service {
	return NewService(Deps{
		Parties:   memParties{db},
		Requests:  memRequests{db},
		Attendees: memAttendees{db},
		Reviews:   memReviews{db},
		Reports:   memReports{db},
		Users:     memUsers{db},
		Friends:   memFriends{db},
		Notifier:  memNotifier{db},
		NowFunc:   func() time.Time { return now },
	})
}

type memParties struct{ db *memoryDB }

func (m memParties) Create(_ context.Context, p models.Party) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.parties[p.ID] = p
	return nil
}

func (m memParties) FindByID(_ context.Context, id string) (models.Party, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.parties[id]
	if !ok {
		return models.Party{}, repositories.ErrNotFound
	}
	return m.db.withCount(p), nil
}

func (m memParties) Update(_ context.Context, p models.Party, from models.PartyStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.beforeUpdate != nil {
		m.db.beforeUpdate(m.db.parties)
	}
	current, ok := m.db.parties[p.ID]
	if !ok || current.Status != from {
		return repositories.ErrNotFound
	}
	m.db.parties[p.ID] = p
	return nil
}

func (m memParties) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.parties[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.db.parties, id)
	return nil
}

func (m memParties) Search(_ context.Context, f models.PartySearch) ([]models.Party, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	contains := func(field, needle string) bool {
		return strings.Contains(strings.ToLower(field), strings.ToLower(needle))
	}
	var out []models.Party
	for _, p := range m.db.parties {
		if len(f.Statuses) > 0 {
			ok := false
			for _, st := range f.Statuses {
				ok = ok || p.Status == st
			}
			if !ok {
				continue
			}
		}
		if f.City != "" && !contains(p.City, f.City) {
			continue
		}
		if f.Country != "" && !contains(p.Country, f.Country) {
			continue
		}
		if f.Region != "" && !contains(p.LocationName, f.Region) && !contains(p.City, f.Region) && !contains(p.Country, f.Region) {
			continue
		}
		if b := f.Bounds; b != nil {
			if p.Latitude == nil || p.Longitude == nil {
				continue
			}
			if *p.Latitude < b.MinLat || *p.Latitude > b.MaxLat || *p.Longitude < b.MinLng || *p.Longitude > b.MaxLng {
				continue
			}
		}
		out = append(out, m.db.withCount(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memParties) ListByHost(_ context.Context, hostID string) ([]models.Party, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Party
	for _, p := range m.db.parties {
		if p.HostID == hostID {
			out = append(out, m.db.withCount(p))
		}
	}
	return out, nil
}

func (m memParties) ListAttending(_ context.Context, userID string) ([]models.Party, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Party
	for _, a := range m.db.attendees {
		if a.UserID != userID {
			continue
		}
		if p, ok := m.db.parties[a.PartyID]; ok {
			out = append(out, m.db.withCount(p))
		}
	}
	return out, nil
}

type memRequests struct{ db *memoryDB }

func (m memRequests) Create(_ context.Context, r models.PartyRequest) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.requests {
		if existing.PartyID == r.PartyID && existing.UserID == r.UserID && existing.Status.Active() {
			return repositories.ErrConflict
		}
	}
	m.db.requests[r.ID] = r
	return nil
}

func (m memRequests) FindByID(_ context.Context, id string) (models.PartyRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.requests[id]
	if !ok {
		return models.PartyRequest{}, repositories.ErrNotFound
	}
	return r, nil
}

func (m memRequests) FindActive(_ context.Context, partyID, userID string) (models.PartyRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.requests {
		if r.PartyID == partyID && r.UserID == userID && r.Status.Active() {
			return r, nil
		}
	}
	return models.PartyRequest{}, repositories.ErrNotFound
}

func (m memRequests) list(match func(models.PartyRequest) bool) []models.PartyRequest {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.PartyRequest
	for _, r := range m.db.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m memRequests) ListByParty(_ context.Context, partyID string) ([]models.PartyRequest, error) {
	return m.list(func(r models.PartyRequest) bool { return r.PartyID == partyID }), nil
}

func (m memRequests) ListByUser(_ context.Context, userID string) ([]models.PartyRequest, error) {
	return m.list(func(r models.PartyRequest) bool { return r.UserID == userID }), nil
}

func (m memRequests) transition(requestID string, status models.RequestStatus, at time.Time) (models.PartyRequest, error) {
	r, ok := m.db.requests[requestID]
	if !ok || r.Status != models.RequestPending {
		return models.PartyRequest{}, repositories.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	r.RespondedAt = &at
	m.db.requests[requestID] = r
	return r, nil
}

func (m memRequests) Accept(_ context.Context, requestID string, attendee models.PartyAttendee, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, err := m.transition(requestID, models.RequestAccepted, at); err != nil {
		return err
	}
	for _, a := range m.db.attendees {
		if a.PartyID == attendee.PartyID && a.UserID == attendee.UserID {
			return nil
		}
	}
	m.db.attendees = append(m.db.attendees, attendee)
	return nil
}

func (m memRequests) Decline(_ context.Context, requestID string, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	_, err := m.transition(requestID, models.RequestDeclined, at)
	return err
}

func (m memRequests) DeletePending(_ context.Context, requestID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.requests[requestID]
	if !ok || r.Status != models.RequestPending {
		return repositories.ErrNotFound
	}
	delete(m.db.requests, requestID)
	return nil
}

type memAttendees struct{ db *memoryDB }

func (m memAttendees) Find(_ context.Context, partyID, userID string) (models.PartyAttendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, a := range m.db.attendees {
		if a.PartyID == partyID && a.UserID == userID {
			return a, nil
		}
	}
	return models.PartyAttendee{}, repositories.ErrNotFound
}

func (m memAttendees) ListByParty(_ context.Context, partyID string) ([]models.PartyAttendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.PartyAttendee
	for _, a := range m.db.attendees {
		if a.PartyID == partyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m memAttendees) Preview(_ context.Context, partyIDs []string, limit int) (map[string][]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range partyIDs {
		for _, a := range m.db.attendees {
			if a.PartyID == id && len(out[id]) < limit {
				out[id] = append(out[id], m.db.users[a.UserID].AvatarURL)
			}
		}
	}
	return out, nil
}

func (m memAttendees) ListUnratedGuests(_ context.Context, hostID string) ([]models.PartyAttendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.PartyAttendee
	for _, a := range m.db.attendees {
		p := m.db.parties[a.PartyID]
		if p.HostID == hostID && p.Status == models.PartyFinished && !a.HostRated {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m memAttendees) ListUnratedHosts(_ context.Context, userID string) ([]models.PartyAttendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.PartyAttendee
	for _, a := range m.db.attendees {
		if a.UserID == userID && !a.GuestRated && m.db.parties[a.PartyID].Status == models.PartyFinished {
			out = append(out, a)
		}
	}
	return out, nil
}

type memReviews struct{ db *memoryDB }

func (m memReviews) Submit(_ context.Context, review models.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	guest := review.TargetID
	if review.Type == models.GuestReview {
		guest = review.AuthorID
	}
	for i, a := range m.db.attendees {
		if a.PartyID != review.PartyID || a.UserID != guest {
			continue
		}
		switch review.Type {
		case models.GuestReview:
			if a.GuestRated {
				return repositories.ErrConflict
			}
			m.db.attendees[i].GuestRated = true
		case models.HostReview:
			if a.HostRated {
				return repositories.ErrConflict
			}
			m.db.attendees[i].HostRated = true
		}
		m.db.reviews = append(m.db.reviews, review)
		return nil
	}
	return repositories.ErrConflict
}

type memReports struct{ db *memoryDB }

func (m memReports) Create(_ context.Context, report models.Report) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.reports = append(m.db.reports, report)
	return nil
}

type memUsers struct{ db *memoryDB }

func (m memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return u, nil
}

func (m memUsers) FindByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.db.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type memFriends struct{ db *memoryDB }

func (m memFriends) AreFriends(_ context.Context, a, b string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.friends[[2]string{a, b}], nil
}

type memNotifier struct{ db *memoryDB }

func (m memNotifier) Notify(_ context.Context, n models.Notification) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.notifications = append(m.db.notifications, n)
	return nil
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, models.Notification) error {
	return errors.New("queue full")
}

type failingCleaner struct{}

func (failingCleaner) Clean(context.Context, string) (string, error) {
	return "", errors.New("cleaner offline")
}

type upperCleaner struct{}

func (upperCleaner) Clean(_ context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func ptr[T any](v T) *T { return &v }
