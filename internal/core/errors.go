package core

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PlayerLookupError reports player ids that are unknown or belong to a
// different organization (§7). Fatal for the caller's request. Nothing in
// this module raises it: store.EnsurePlayers seeds a rating row for every
// id it is given and checks neither existence nor organization.
type PlayerLookupError struct {
	Missing           []string
	WrongOrganization []string
}

func (e *PlayerLookupError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing players: %s", strings.Join(e.Missing, ",")))
	}
	if len(e.WrongOrganization) > 0 {
		parts = append(parts, fmt.Sprintf("players in another organization: %s", strings.Join(e.WrongOrganization, ",")))
	}
	return "player lookup failed: " + strings.Join(parts, "; ")
}

// GRPCStatus lets an eventual gRPC front door surface this directly as a
// status code, even though no gRPC surface is wired in this module (§1).
func (e *PlayerLookupError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// MatchLookupError is raised when a match is missing or belongs to
// another tenant on update/get (§7).
type MatchLookupError struct {
	MatchID string
}

func (e *MatchLookupError) Error() string {
	return fmt.Sprintf("match not found: %s", e.MatchID)
}

func (e *MatchLookupError) GRPCStatus() *status.Status {
	return status.New(codes.NotFound, e.Error())
}

// EventLookupError is raised when a competition/event is missing, or its
// sport/discipline/format mismatches a competition-linked match (§7).
type EventLookupError struct {
	Reason string
}

func (e *EventLookupError) Error() string { return "event lookup failed: " + e.Reason }

func (e *EventLookupError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// ReplayIntegrityError is fatal: a history row is missing immediately
// after insert (§7, §4.5). The transaction must abort.
type ReplayIntegrityError struct {
	LadderID string
	MatchID  string
	PlayerID string
}

func (e *ReplayIntegrityError) Error() string {
	return fmt.Sprintf("replay integrity violation: ladder=%s match=%s player=%s history row missing after insert",
		e.LadderID, e.MatchID, e.PlayerID)
}

func (e *ReplayIntegrityError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Error())
}
