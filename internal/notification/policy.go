package notification

import "time"

const day = 24 * time.Hour

// DefaultExpiry applies to every type without an explicit retention.
const DefaultExpiry = 5 * day

var priorityByType = map[Type]Priority{
	TypeConnectionRequest:  PriorityHigh,
	TypeTeamInvite:         PriorityHigh,
	TypeProjectInvite:      PriorityHigh,
	TypeTaskAssigned:       PriorityHigh,
	TypeMention:            PriorityHigh,
	TypeMessage:            PriorityMedium,
	TypeTeamJoin:           PriorityMedium,
	TypeTeamLeave:          PriorityMedium,
	TypeTeamRoleChange:     PriorityMedium,
	TypeProjectUpdate:      PriorityMedium,
	TypeConnectionAccepted: PriorityMedium,
	TypeTaskDeadline:       PriorityMedium,
	TypeTaskCompleted:      PriorityLow,
	TypeSystem:             PriorityLow,
}

var expiryByType = map[Type]time.Duration{
	TypeTeamInvite:         30 * day,
	TypeProjectInvite:      30 * day,
	TypeMessage:            14 * day,
	TypeMention:            14 * day,
	TypeTeamJoin:           7 * day,
	TypeTeamLeave:          7 * day,
	TypeTeamRoleChange:     7 * day,
	TypeTaskAssigned:       7 * day,
	TypeConnectionAccepted: 7 * day,
}

// PriorityFor returns the default priority of a type; unknown types are medium.
func PriorityFor(t Type) Priority {
	if p, ok := priorityByType[t]; ok {
		return p
	}
	return PriorityMedium
}

// ExpiryFor returns how long a notification of type t is retained.
func ExpiryFor(t Type) time.Duration {
	if d, ok := expiryByType[t]; ok {
		return d
	}
	return DefaultExpiry
}
