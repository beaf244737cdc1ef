package parties

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/partyhop/backend/internal/geo"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// List paging and radius defaults.
const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultRadiusKm = 50.0
)

// Sort orders accepted by ListParties.
const (
	SortNewest  = "newest"
	SortSoonest = "soonest"
	SortPopular = "popular"
	SortPrice   = "price"
)

// UserSummary is the public identity shown next to parties and requests.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Verified    bool   `json:"verified"`
}

// PartyView is the externally visible representation of a party.
type PartyView struct {
	ID              string             `json:"id"`
	HostID          string             `json:"hostId"`
	Title           string             `json:"title"`
	Theme           string             `json:"theme"`
	Description     string             `json:"description"`
	Date            time.Time          `json:"date"`
	LocationName    string             `json:"locationName"`
	City            string             `json:"city"`
	Country         string             `json:"country"`
	ExactAddress    string             `json:"exactAddress"`
	Latitude        *float64           `json:"latitude"`
	Longitude       *float64           `json:"longitude"`
	LocationMasked  bool               `json:"locationMasked"`
	MaxGuests       int                `json:"maxGuests"`
	Price           float64            `json:"price"`
	IncludesAlcohol bool               `json:"includesAlcohol"`
	Status          models.PartyStatus `json:"status"`
	CoHostIDs       []string           `json:"coHostIds"`
	CreatedAt       time.Time          `json:"createdAt"`

	HostName        string   `json:"hostName"`
	HostAvatar      string   `json:"hostAvatar,omitempty"`
	HostVerified    bool     `json:"hostVerified"`
	AttendeeCount   int      `json:"attendeeCount"`
	AttendeeAvatars []string `json:"attendeeAvatars,omitempty"`

	// ViewerRequestStatus is set on the detail view when the viewer has an active request.
	ViewerRequestStatus models.RequestStatus `json:"viewerRequestStatus,omitempty"`
}

// ListQuery holds browse filters. Zero values mean "not supplied".
type ListQuery struct {
	Lat      *float64
	Lng      *float64
	RadiusKm *float64
	City     string
	Country  string
	Region   string
	Statuses []models.PartyStatus
	Offset   int
	Limit    int
	Sort     string
}

// ListResult is one page of the browse view.
type ListResult struct {
	Parties []PartyView `json:"parties"`
	Total   int         `json:"total"`
	HasMore bool        `json:"hasMore"`
}

// NormalizeListQuery applies defaults and rejects inconsistent filters.
func NormalizeListQuery(q ListQuery) (ListQuery, error) {
	q.City = strings.TrimSpace(q.City)
	q.Country = strings.TrimSpace(q.Country)
	q.Region = strings.TrimSpace(q.Region)

	if (q.Lat == nil) != (q.Lng == nil) {
		return q, errInvalid("lat", "lat and lng must be supplied together")
	}
	if q.Lat == nil && q.RadiusKm != nil {
		return q, errInvalid("radius", "radius requires lat and lng")
	}
	if q.Lat != nil {
		if *q.Lat < -90 || *q.Lat > 90 {
			return q, errInvalid("lat", "lat must be between -90 and 90")
		}
		if *q.Lng < -180 || *q.Lng > 180 {
			return q, errInvalid("lng", "lng must be between -180 and 180")
		}
		if q.RadiusKm == nil {
			r := DefaultRadiusKm
			q.RadiusKm = &r
		}
		if *q.RadiusKm <= 0 {
			return q, errInvalid("radius", "radius must be greater than 0")
		}
	}

	if len(q.Statuses) == 0 {
		q.Statuses = []models.PartyStatus{models.PartyUpcoming, models.PartyOngoing}
	}
	for _, st := range q.Statuses {
		if !st.Valid() {
			return q, errInvalid("status", "status must be one of: upcoming, ongoing, finished, cancelled")
		}
	}

	switch q.Sort {
	case "":
		q.Sort = SortNewest
	case SortNewest, SortSoonest, SortPopular, SortPrice:
	default:
		return q, errInvalid("sort", "sort must be one of: newest, soonest, popular, price")
	}

	if q.Offset < 0 {
		return q, errInvalid("offset", "offset must not be negative")
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q, nil
}

// ListParties returns the browse view. Locations are always masked here,
// whoever is asking.
func (s *Service) ListParties(ctx context.Context, q ListQuery) (ListResult, error) {
	q, err := NormalizeListQuery(q)
	if err != nil {
		return ListResult{}, err
	}

	filter := models.PartySearch{
		Statuses: q.Statuses,
		City:     q.City,
		Country:  q.Country,
		Region:   q.Region,
	}
	if q.Lat != nil {
		bounds := geo.BoundingBox(*q.Lat, *q.Lng, *q.RadiusKm)
		filter.Bounds = &bounds
	}

	found, err := s.parties.Search(ctx, filter)
	if err != nil {
		return ListResult{}, errInternal("search parties", err)
	}

	matched := found[:0]
	for _, p := range found {
		if q.Lat != nil && !geo.Within(*q.Lat, *q.Lng, p.Latitude, p.Longitude, *q.RadiusKm) {
			continue
		}
		matched = append(matched, p)
	}
	sortParties(matched, q.Sort)

	total := len(matched)
	start := min(q.Offset, total)
	end := min(start+q.Limit, total)
	page := matched[start:end]

	views, err := s.enrich(ctx, page, func(models.Party) bool { return false }, true)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Parties: views, Total: total, HasMore: end < total}, nil
}

func sortParties(parties []models.Party, order string) {
	sort.SliceStable(parties, func(i, j int) bool {
		a, b := parties[i], parties[j]
		switch order {
		case SortSoonest:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case SortPopular:
			if a.AttendeeCount != b.AttendeeCount {
				return a.AttendeeCount > b.AttendeeCount
			}
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case SortPrice:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}

// PartyDetail returns one party as viewerID sees it. Host and attendees get
// the true location; privilege is looked up on every call.
func (s *Service) PartyDetail(ctx context.Context, viewerID, partyID string) (PartyView, error) {
	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return PartyView{}, err
	}

	privileged, err := s.isPrivileged(ctx, party, viewerID)
	if err != nil {
		return PartyView{}, err
	}

	views, err := s.enrich(ctx, []models.Party{party}, func(models.Party) bool { return privileged }, false)
	if err != nil {
		return PartyView{}, err
	}
	view := views[0]

	if viewerID != "" && !party.IsHost(viewerID) {
		request, err := s.requests.FindActive(ctx, party.ID, viewerID)
		switch {
		case err == nil:
			view.ViewerRequestStatus = request.Status
		case !errors.Is(err, repositories.ErrNotFound):
			return PartyView{}, errInternal("load viewer request", err)
		}
	}
	return view, nil
}

func (s *Service) isPrivileged(ctx context.Context, party models.Party, viewerID string) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	if party.IsHost(viewerID) {
		return true, nil
	}
	if _, err := s.attendees.Find(ctx, party.ID, viewerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, errInternal("load attendee", err)
	}
	return true, nil
}

// HostedParties lists parties owned by actorID.
func (s *Service) HostedParties(ctx context.Context, actorID string) ([]PartyView, error) {
	if actorID == "" {
		return nil, errUnauthenticated()
	}
	parties, err := s.parties.ListByHost(ctx, actorID)
	if err != nil {
		return nil, errInternal("list hosted parties", err)
	}
	return s.enrich(ctx, parties, func(models.Party) bool { return true }, false)
}

// AttendingParties lists parties actorID has been accepted to.
func (s *Service) AttendingParties(ctx context.Context, actorID string) ([]PartyView, error) {
	if actorID == "" {
		return nil, errUnauthenticated()
	}
	parties, err := s.parties.ListAttending(ctx, actorID)
	if err != nil {
		return nil, errInternal("list attending parties", err)
	}
	return s.enrich(ctx, parties, func(models.Party) bool { return true }, false)
}

func (s *Service) ownerView(ctx context.Context, party models.Party) (PartyView, error) {
	views, err := s.enrich(ctx, []models.Party{party}, func(models.Party) bool { return true }, false)
	if err != nil {
		return PartyView{}, err
	}
	return views[0], nil
}

// enrich attaches host identity and, when withPreview is set, attendee
// avatars. Hosts and previews are loaded concurrently.
func (s *Service) enrich(ctx context.Context, parties []models.Party, privileged func(models.Party) bool, withPreview bool) ([]PartyView, error) {
	if len(parties) == 0 {
		return []PartyView{}, nil
	}

	hostIDs := make([]string, 0, len(parties))
	partyIDs := make([]string, 0, len(parties))
	for _, p := range parties {
		hostIDs = append(hostIDs, p.HostID)
		partyIDs = append(partyIDs, p.ID)
	}

	var (
		hosts    map[string]models.User
		previews map[string][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hosts, err = s.users.FindByIDs(gctx, uniqueIDs(hostIDs))
		return err
	})
	if withPreview {
		g.Go(func() error {
			var err error
			previews, err = s.attendees.Preview(gctx, partyIDs, previewSize)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errInternal("enrich parties", err)
	}

	views := make([]PartyView, 0, len(parties))
	for _, p := range parties {
		view := baseView(p, privileged(p))
		if host, ok := hosts[p.HostID]; ok {
			view.HostName = displayName(host)
			view.HostAvatar = host.AvatarURL
			view.HostVerified = host.Verified
		}
		view.AttendeeAvatars = previews[p.ID]
		views = append(views, view)
	}
	return views, nil
}

func baseView(p models.Party, privileged bool) PartyView {
	loc := geo.ForViewer(p.ID, geo.Location{
		ExactAddress: p.ExactAddress,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
	}, privileged)

	coHosts := p.CoHostIDs
	if coHosts == nil {
		coHosts = []string{}
	}
	return PartyView{
		ID:              p.ID,
		HostID:          p.HostID,
		Title:           p.Title,
		Theme:           p.Theme,
		Description:     p.Description,
		Date:            p.Date,
		LocationName:    p.LocationName,
		City:            p.City,
		Country:         p.Country,
		ExactAddress:    loc.ExactAddress,
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		LocationMasked:  loc.Masked,
		MaxGuests:       p.MaxGuests,
		Price:           p.Price,
		IncludesAlcohol: p.IncludesAlcohol,
		Status:          p.Status,
		CoHostIDs:       coHosts,
		CreatedAt:       p.CreatedAt,
		AttendeeCount:   p.AttendeeCount,
	}
}

func (s *Service) lookupUsers(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	if len(userIDs) == 0 {
		return map[string]models.User{}, nil
	}
	users, err := s.users.FindByIDs(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, errInternal("load users", err)
	}
	return users, nil
}

func summarize(u models.User) UserSummary {
	return UserSummary{
		ID:          u.ID,
		DisplayName: displayName(u),
		AvatarURL:   u.AvatarURL,
		Verified:    u.Verified,
	}
}

// summaryFor falls back to a bare id when the user has since been deleted.
func summaryFor(users map[string]models.User, id string) UserSummary {
	if u, ok := users[id]; ok {
		return summarize(u)
	}
	return UserSummary{ID: id, DisplayName: displayName(models.User{})}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
