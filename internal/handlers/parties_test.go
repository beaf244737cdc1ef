package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/parties"
	"github.com/partyhop/backend/internal/repositories"
)

// stubPartyService records the last call it received and answers with err
// when set.
type stubPartyService struct {
	err error

	method  string
	actor   string
	target  string
	query   parties.ListQuery
	status  models.RequestStatus
	payload any
}

func (s *stubPartyService) record(method, actor, target string) {
	s.method, s.actor, s.target = method, actor, target
}

func (s *stubPartyService) ListParties(_ context.Context, q parties.ListQuery) (parties.ListResult, error) {
	s.record("ListParties", "", "")
	s.query = q
	return parties.ListResult{Total: 0}, s.err
}

func (s *stubPartyService) PartyDetail(_ context.Context, viewerID, partyID string) (parties.PartyView, error) {
	s.record("PartyDetail", viewerID, partyID)
	return parties.PartyView{ID: partyID}, s.err
}

func (s *stubPartyService) HostedParties(_ context.Context, actorID string) ([]parties.PartyView, error) {
	s.record("HostedParties", actorID, "")
	return nil, s.err
}

func (s *stubPartyService) AttendingParties(_ context.Context, actorID string) ([]parties.PartyView, error) {
	s.record("AttendingParties", actorID, "")
	return nil, s.err
}

func (s *stubPartyService) CreateParty(_ context.Context, actorID string, input parties.CreatePartyInput) (parties.PartyView, error) {
	s.record("CreateParty", actorID, "")
	s.payload = input
	return parties.PartyView{ID: "p-new", Title: input.Title}, s.err
}

func (s *stubPartyService) UpdateParty(_ context.Context, actorID, partyID string, input parties.UpdatePartyInput) (parties.PartyView, error) {
	s.record("UpdateParty", actorID, partyID)
	s.payload = input
	return parties.PartyView{ID: partyID}, s.err
}

func (s *stubPartyService) DeleteParty(_ context.Context, actorID, partyID string) error {
	s.record("DeleteParty", actorID, partyID)
	return s.err
}

func (s *stubPartyService) CreateRequest(_ context.Context, actorID, partyID string, input parties.CreateRequestInput) (parties.RequestView, error) {
	s.record("CreateRequest", actorID, partyID)
	s.payload = input
	return parties.RequestView{ID: "r-new", PartyID: partyID}, s.err
}

func (s *stubPartyService) RespondToRequest(_ context.Context, actorID, requestID string, status models.RequestStatus) (parties.RequestView, error) {
	s.record("RespondToRequest", actorID, requestID)
	s.status = status
	return parties.RequestView{ID: requestID, Status: status}, s.err
}

func (s *stubPartyService) RetractRequest(_ context.Context, actorID, requestID string) error {
	s.record("RetractRequest", actorID, requestID)
	return s.err
}

func (s *stubPartyService) PartyRequests(_ context.Context, actorID, partyID string) ([]parties.RequestView, error) {
	s.record("PartyRequests", actorID, partyID)
	return nil, s.err
}

func (s *stubPartyService) MyRequests(_ context.Context, actorID string) ([]parties.RequestView, error) {
	s.record("MyRequests", actorID, "")
	return nil, s.err
}

func (s *stubPartyService) Roster(_ context.Context, partyID string) ([]parties.AttendeeView, error) {
	s.record("Roster", "", partyID)
	return nil, s.err
}

func (s *stubPartyService) PendingRatings(_ context.Context, userID string) ([]parties.RatingObligation, error) {
	s.record("PendingRatings", userID, "")
	return nil, s.err
}

func (s *stubPartyService) SubmitReview(_ context.Context, actorID string, input parties.SubmitReviewInput) (parties.ReviewView, error) {
	s.record("SubmitReview", actorID, input.PartyID)
	s.payload = input
	return parties.ReviewView{ID: "rev-1"}, s.err
}

func (s *stubPartyService) FileReport(_ context.Context, actorID string, input parties.FileReportInput) (parties.ReportView, error) {
	s.record("FileReport", actorID, input.TargetID)
	s.payload = input
	return parties.ReportView{ID: "rep-1"}, s.err
}

type stubNotificationStore struct {
	items   []models.Notification
	err     error
	limit   int
	marked  string
	forUser string
}

func (s *stubNotificationStore) ListForUser(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	s.forUser, s.limit = userID, limit
	return s.items, s.err
}

func (s *stubNotificationStore) MarkRead(_ context.Context, userID, id string) error {
	s.forUser, s.marked = userID, id
	return s.err
}

func newTestMux(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return mux
}

func serve(mux http.Handler, method, target, user string, body []byte) *httptest.ResponseRecorder {
	req := asUser(httptest.NewRequest(method, target, bytes.NewReader(body)), user)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPartyRoutesDispatch(t *testing.T) {
	cases := []struct {
		name       string
		method     string
		target     string
		body       string
		wantCall   string
		wantTarget string
		wantStatus int
	}{
		{"list", http.MethodGet, "/api/v1/parties?city=Lisbon", "", "ListParties", "", http.StatusOK},
		{"create", http.MethodPost, "/api/v1/parties", `{"title":"Rooftop"}`, "CreateParty", "", http.StatusCreated},
		{"mine", http.MethodGet, "/api/v1/parties/mine", "", "HostedParties", "", http.StatusOK},
		{"attending", http.MethodGet, "/api/v1/parties/attending", "", "AttendingParties", "", http.StatusOK},
		{"pendingRatings", http.MethodGet, "/api/v1/parties/rate/pending", "", "PendingRatings", "", http.StatusOK},
		{"detail", http.MethodGet, "/api/v1/parties/p1", "", "PartyDetail", "p1", http.StatusOK},
		{"update", http.MethodPatch, "/api/v1/parties/p1", `{"status":"cancelled"}`, "UpdateParty", "p1", http.StatusOK},
		{"delete", http.MethodDelete, "/api/v1/parties/p1", "", "DeleteParty", "p1", http.StatusNoContent},
		{"roster", http.MethodGet, "/api/v1/parties/p1/attendees", "", "Roster", "p1", http.StatusOK},
		{"joinRequest", http.MethodPost, "/api/v1/parties/p1/requests", `{"message":"hi"}`, "CreateRequest", "p1", http.StatusCreated},
		{"partyRequests", http.MethodGet, "/api/v1/parties/p1/requests", "", "PartyRequests", "p1", http.StatusOK},
		{"myRequests", http.MethodGet, "/api/v1/requests", "", "MyRequests", "", http.StatusOK},
		{"respond", http.MethodPatch, "/api/v1/requests/r1/status", `{"status":"Accepted"}`, "RespondToRequest", "r1", http.StatusOK},
		{"retract", http.MethodDelete, "/api/v1/requests/r1", "", "RetractRequest", "r1", http.StatusNoContent},
		{"review", http.MethodPost, "/api/v1/reviews", `{"partyId":"p1","targetId":"u2","rating":5,"type":"guest_review"}`, "SubmitReview", "p1", http.StatusCreated},
		{"report", http.MethodPost, "/api/v1/reports", `{"targetType":"user","targetId":"u2","reason":"spam"}`, "FileReport", "u2", http.StatusCreated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubPartyService{}
			mux := newTestMux(Dependencies{Parties: svc})

			rec := serve(mux, tc.method, tc.target, "user-1", []byte(tc.body))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if svc.method != tc.wantCall || svc.target != tc.wantTarget {
				t.Fatalf("expected %s(%q) got %s(%q)", tc.wantCall, tc.wantTarget, svc.method, svc.target)
			}
			if tc.wantCall != "ListParties" && tc.wantCall != "Roster" && svc.actor != "user-1" {
				t.Fatalf("expected actor to come from the session, got %q", svc.actor)
			}
		})
	}
}

func TestPartyRoutesDecodePayloads(t *testing.T) {
	svc := &stubPartyService{}
	mux := newTestMux(Dependencies{Parties: svc})

	rec := serve(mux, http.MethodPatch, "/api/v1/requests/r1/status", "host", []byte(`{"status":" DECLINED "}`))
	if rec.Code != http.StatusOK || svc.status != models.RequestDeclined {
		t.Fatalf("expected normalised declined status, got %q (%d)", svc.status, rec.Code)
	}

	rec = serve(mux, http.MethodPatch, "/api/v1/parties/p1", "host", []byte(`{"title":"New title","status":"cancelled"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	input, ok := svc.payload.(parties.UpdatePartyInput)
	if !ok || input.Title == nil || *input.Title != "New title" || input.Status == nil || *input.Status != models.PartyCancelled {
		t.Fatalf("unexpected update payload %+v", svc.payload)
	}
	if input.Description != nil {
		t.Fatalf("expected absent fields to stay nil")
	}

	rec = serve(mux, http.MethodPost, "/api/v1/parties", "host", []byte(`{`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body got %d", rec.Code)
	}
}

func TestPartyRoutesMapErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unauthenticated", &parties.Error{Kind: parties.KindAuthenticationRequired, Message: "Authentication required"}, http.StatusUnauthorized, "Authentication required"},
		{"forbidden", &parties.Error{Kind: parties.KindAuthorizationDenied, Message: "Only the host can edit this party"}, http.StatusForbidden, "Only the host can edit this party"},
		{"notFound", &parties.Error{Kind: parties.KindNotFound, Message: "Party not found"}, http.StatusNotFound, "Party not found"},
		{"conflict", &parties.Error{Kind: parties.KindConflict, Message: "You already have an active request for this party"}, http.StatusConflict, "You already have an active request for this party"},
		{"internal", &parties.Error{Kind: parties.KindInternal, Message: "Something went wrong", Err: errors.New("pq: connection reset")}, http.StatusInternalServerError, "Something went wrong"},
		{"unclassified", errors.New("raw driver failure"), http.StatusInternalServerError, "Something went wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(Dependencies{Parties: &stubPartyService{err: tc.err}})
			rec := serve(mux, http.MethodGet, "/api/v1/parties/p1", "user-1", nil)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantError {
				t.Fatalf("expected error %q got %q", tc.wantError, body.Error)
			}
		})
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	err := &parties.Error{Kind: parties.KindValidationFailed, Message: "title is required", Fields: map[string]string{"title": "title is required"}}
	mux := newTestMux(Dependencies{Parties: &stubPartyService{err: err}})

	rec := serve(mux, http.MethodPost, "/api/v1/parties", "host", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["title"] != "title is required" {
		t.Fatalf("expected field map in response, got %+v", body)
	}
}

func TestJoinRequestRateLimited(t *testing.T) {
	svc := &stubPartyService{}
	mux := newTestMux(Dependencies{Parties: svc, JoinLimiter: denyAllLimiter{}})

	rec := serve(mux, http.MethodPost, "/api/v1/parties/p1/requests", "guest", []byte(`{}`))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if svc.method != "" {
		t.Fatalf("expected service not to be called, got %s", svc.method)
	}
}

func TestMissingPartyService(t *testing.T) {
	mux := newTestMux(Dependencies{})
	rec := serve(mux, http.MethodGet, "/api/v1/parties", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestParseListQuery(t *testing.T) {
	values := url.Values{
		"lat":    {"38.7"},
		"lng":    {"-9.1"},
		"radius": {"5"},
		"city":   {"Lisbon"},
		"status": {"upcoming,Finished", "ongoing"},
		"offset": {"20"},
		"limit":  {"10"},
		"sort":   {"Soonest"},
	}
	q, err := parseListQuery(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Lat == nil || *q.Lat != 38.7 || q.Lng == nil || *q.Lng != -9.1 || q.RadiusKm == nil || *q.RadiusKm != 5 {
		t.Fatalf("unexpected coordinates %+v", q)
	}
	if len(q.Statuses) != 3 || q.Statuses[1] != models.PartyFinished {
		t.Fatalf("unexpected statuses %v", q.Statuses)
	}
	if q.Offset != 20 || q.Limit != 10 || q.Sort != parties.SortSoonest || q.City != "Lisbon" {
		t.Fatalf("unexpected paging or filters %+v", q)
	}

	empty, err := parseListQuery(url.Values{})
	if err != nil || empty.Lat != nil || empty.Limit != 0 || len(empty.Statuses) != 0 {
		t.Fatalf("expected zero query, got %+v (%v)", empty, err)
	}

	for _, bad := range []url.Values{{"lat": {"north"}}, {"radius": {"far"}}, {"limit": {"ten"}}, {"offset": {"1.5"}}} {
		if _, err := parseListQuery(bad); parties.KindOf(err) != parties.KindValidationFailed {
			t.Fatalf("expected validation error for %v, got %v", bad, err)
		}
	}
}

func TestNotificationRoutes(t *testing.T) {
	store := &stubNotificationStore{items: []models.Notification{{ID: "n1", UserID: "user-1"}}}
	mux := newTestMux(Dependencies{Notifications: store})

	rec := serve(mux, http.MethodGet, "/api/v1/notifications?limit=5", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp notificationListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Notifications) != 1 || store.limit != 5 || store.forUser != "user-1" {
		t.Fatalf("unexpected list call: %+v limit=%d user=%s", resp, store.limit, store.forUser)
	}

	if rec := serve(mux, http.MethodGet, "/api/v1/notifications", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous caller got %d", rec.Code)
	}
	if rec := serve(mux, http.MethodGet, "/api/v1/notifications?limit=500", "user-1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit got %d", rec.Code)
	}

	if rec := serve(mux, http.MethodPost, "/api/v1/notifications/n1/read", "user-1", nil); rec.Code != http.StatusNoContent || store.marked != "n1" {
		t.Fatalf("expected 204 marking read got %d (%s)", rec.Code, store.marked)
	}

	store.err = repositories.ErrNotFound
	if rec := serve(mux, http.MethodPost, "/api/v1/notifications/n2/read", "user-1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
