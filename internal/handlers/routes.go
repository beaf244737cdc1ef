package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	friends := FriendHandler{Friends: deps.Friends}
	parties := PartyHandler{Service: deps.Parties}
	requests := RequestHandler{Service: deps.Parties, Limiter: deps.JoinLimiter}
	feedback := FeedbackHandler{Service: deps.Parties}
	notifications := NotificationHandler{Notifications: deps.Notifications}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/auth/password-reset", auth.RequestPasswordReset)
	mux.HandleFunc("/api/v1/friends", friends.List)
	mux.HandleFunc("/api/v1/friends/invite", friends.Invite)
	mux.HandleFunc("/api/v1/friends/respond", friends.Respond)

	mux.HandleFunc("GET /api/v1/parties", parties.List)
	mux.HandleFunc("POST /api/v1/parties", parties.Create)
	mux.HandleFunc("GET /api/v1/parties/mine", parties.Mine)
	mux.HandleFunc("GET /api/v1/parties/attending", parties.Attending)
	mux.HandleFunc("GET /api/v1/parties/rate/pending", parties.PendingRatings)
	mux.HandleFunc("GET /api/v1/parties/{id}", parties.Get)
	mux.HandleFunc("PATCH /api/v1/parties/{id}", parties.Update)
	mux.HandleFunc("DELETE /api/v1/parties/{id}", parties.Delete)
	mux.HandleFunc("GET /api/v1/parties/{id}/attendees", parties.Attendees)

	mux.HandleFunc("POST /api/v1/parties/{id}/requests", requests.Create)
	mux.HandleFunc("GET /api/v1/parties/{id}/requests", requests.ListForParty)
	mux.HandleFunc("GET /api/v1/requests", requests.Mine)
	mux.HandleFunc("PATCH /api/v1/requests/{id}/status", requests.Respond)
	mux.HandleFunc("DELETE /api/v1/requests/{id}", requests.Retract)

	mux.HandleFunc("POST /api/v1/reviews", feedback.Review)
	mux.HandleFunc("POST /api/v1/reports", feedback.Report)

	mux.HandleFunc("GET /api/v1/notifications", notifications.List)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", notifications.MarkRead)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Friends       FriendStore
	Parties       PartyService
	Notifications NotificationStore
	AuthLimiter   RateLimiter
	JoinLimiter   RateLimiter
	HealthChecks  map[string]Pinger
}
