// Package lifecycle moves parties through their statuses as wall-clock time passes.
package lifecycle

import (
	"time"

	"github.com/partyhop/backend/internal/models"
)

// DefaultOngoingWindow is how far ahead of its start a party is considered ongoing.
const DefaultOngoingWindow = 2 * time.Hour

// Evaluate returns the status a party should have at now. At most one rule
// applies; finishing a party whose date has passed wins over every other rule.
// Cancelled parties never change.
func Evaluate(status models.PartyStatus, date, now time.Time, window time.Duration) (models.PartyStatus, bool) {
	if status == models.PartyCancelled {
		return status, false
	}

	horizon := now.Add(window)
	switch {
	case status != models.PartyFinished && date.Before(now):
		return models.PartyFinished, true
	case status == models.PartyUpcoming && !date.Before(now) && !date.After(horizon):
		return models.PartyOngoing, true
	case status == models.PartyFinished && date.After(horizon):
		return models.PartyUpcoming, true
	}
	return status, false
}

// AfterReschedule returns the status a party should take after its host moves
// the date. Unlike Evaluate it also lets an ongoing party fall back to upcoming.
func AfterReschedule(status models.PartyStatus, date, now time.Time, window time.Duration) models.PartyStatus {
	if status == models.PartyOngoing && date.After(now.Add(window)) {
		return models.PartyUpcoming
	}
	next, _ := Evaluate(status, date, now, window)
	return next
}
