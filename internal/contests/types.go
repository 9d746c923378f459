package contests

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a contest.
type Status string

// Contest statuses
const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusRejected  Status = "Rejected"
	StatusClosed    Status = "Closed"
)

// transitions lists, per status, the statuses it may move to.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected},
	StatusConfirmed: {StatusClosed},
}

// ParseStatus converts a raw value into a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusRejected, StatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown contest status %q", s)
}

// CanTransition reports whether a contest may move from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Contest represents the item stored in the contests DynamoDB table.
type Contest struct {
	ContestID        string    `dynamodbav:"contest_id" json:"contestId"` // PK
	Name             string    `dynamodbav:"name" json:"name"`
	CreatorEmail     string    `dynamodbav:"creator_email" json:"creatorEmail"`
	EntryFee         float64   `dynamodbav:"entry_fee" json:"entryFee"`
	Currency         string    `dynamodbav:"currency" json:"currency"`
	Deadline         time.Time `dynamodbav:"deadline" json:"deadline"`
	Status           Status    `dynamodbav:"status" json:"status"`
	ParticipantCount int       `dynamodbav:"participant_count" json:"participantCount"`
	CreatedAt        time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
