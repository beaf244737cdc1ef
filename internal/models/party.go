package models

import "time"

// PartyStatus is the lifecycle state of a party.
type PartyStatus string

const (
	PartyUpcoming  PartyStatus = "upcoming"
	PartyOngoing   PartyStatus = "ongoing"
	PartyFinished  PartyStatus = "finished"
	PartyCancelled PartyStatus = "cancelled"
)

// Valid reports whether s is a known party status.
func (s PartyStatus) Valid() bool {
	switch s {
	case PartyUpcoming, PartyOngoing, PartyFinished, PartyCancelled:
		return true
	}
	return false
}

// AcceptsRequests reports whether new join requests may be created.
func (s PartyStatus) AcceptsRequests() bool {
	return s == PartyUpcoming || s == PartyOngoing
}

// Party is a hostable, joinable event.
type Party struct {
	ID              string
	HostID          string
	Title           string
	Theme           string
	Description     string
	Date            time.Time
	LocationName    string
	City            string
	Country         string
	ExactAddress    string
	Latitude        *float64
	Longitude       *float64
	MaxGuests       int
	Price           float64
	IncludesAlcohol bool
	Status          PartyStatus
	CoHostIDs       []string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// AttendeeCount is derived from party_attendees and ignored on writes.
	AttendeeCount int
}

// IsHost reports whether userID owns the party.
func (p Party) IsHost(userID string) bool {
	return userID != "" && p.HostID == userID
}

// CanModerate reports whether userID may arbitrate join requests.
func (p Party) CanModerate(userID string) bool {
	if p.IsHost(userID) {
		return true
	}
	if userID == "" {
		return false
	}
	for _, id := range p.CoHostIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PartySearch carries the filters a store can evaluate before distance checks.
type PartySearch struct {
	Statuses []PartyStatus
	City     string
	Country  string
	Region   string
	Bounds   *Bounds
}

// Bounds is a latitude/longitude rectangle used to narrow radius searches.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// RequestStatus is the state of a join request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestDeclined  RequestStatus = "declined"
	RequestCancelled RequestStatus = "cancelled"
)

// Active reports whether the request blocks a new request for the same party.
func (s RequestStatus) Active() bool {
	return s == RequestPending || s == RequestAccepted
}

// PartyRequest is a user's request to join a party.
type PartyRequest struct {
	ID           string
	PartyID      string
	UserID       string
	Message      string
	PledgedItems string
	ComingWith   []string
	Status       RequestStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RespondedAt  *time.Time
}

// PartyAttendee is a roster entry created when a request is accepted.
type PartyAttendee struct {
	ID         string
	PartyID    string
	UserID     string
	HostRated  bool
	GuestRated bool
	CreatedAt  time.Time
}

// ReviewType identifies the direction of a rating.
type ReviewType string

const (
	// HostReview is written by the host about a guest.
	HostReview ReviewType = "host_review"
	// GuestReview is written by a guest about the host.
	GuestReview ReviewType = "guest_review"
)

// Review is a rating left after a finished party.
type Review struct {
	ID        string
	AuthorID  string
	TargetID  string
	PartyID   string
	Rating    int
	Content   string
	Type      ReviewType
	CreatedAt time.Time
}

// ReportTargetKind enumerates what a report can point at.
type ReportTargetKind string

const (
	ReportTargetParty   ReportTargetKind = "party"
	ReportTargetUser    ReportTargetKind = "user"
	ReportTargetMessage ReportTargetKind = "message"
)

// ReportTarget is the reported entity.
type ReportTarget struct {
	Kind ReportTargetKind
	ID   string
}

// Report is a moderation report filed by a user.
type Report struct {
	ID         string
	ReporterID string
	Target     ReportTarget
	Reason     string
	CreatedAt  time.Time
}
