package rbac

// Role is what a participant is allowed to do inside a session.
type Role string
type Action string

const (
	RoleObserver Role = "observer"
	RoleVoter    Role = "voter"
	RoleOwner    Role = "owner"
)

const (
	ActionVote Action = "vote"
	// ActionPeek is seeing votes before the round is revealed.
	ActionPeek Action = "peek"
)

// Can reports whether role may perform action. Stories and the roster are
// shared by everyone in the room and are not gated here.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner, RoleVoter:
		return action == ActionVote
	case RoleObserver:
		return action == ActionPeek
	default:
		return false
	}
}

// For derives the role of a participant from its flags. Observing wins over
// ownership: an owner who observes does not vote.
func For(isObserver, isOwner bool) Role {
	switch {
	case isObserver:
		return RoleObserver
	case isOwner:
		return RoleOwner
	default:
		return RoleVoter
	}
}
