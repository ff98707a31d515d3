// Package authz holds the fixed role to permission table.
package authz

import "github.com/louisbranch/ballotbox/internal/voting/domain/user"

// Permission names one capability a service operation can require.
type Permission string

const (
	// PermManageUsers allows role, password, email, name, and removal
	// changes on any user.
	PermManageUsers Permission = "MANAGE_USERS"
	// PermManageAnyElection allows full control of every election.
	PermManageAnyElection Permission = "MANAGE_ANY_ELECTION"
	// PermManageOwnElection allows full control of elections the caller owns.
	PermManageOwnElection Permission = "MANAGE_OWN_ELECTION"
	// PermVote allows casting and editing the caller's own ballots.
	PermVote Permission = "VOTE"
	// PermViewTally allows computing and viewing election results.
	PermViewTally Permission = "VIEW_TALLY"
	// PermViewBallotOwn allows viewing the caller's own ballots.
	PermViewBallotOwn Permission = "VIEW_BALLOT_OWN"
	// PermViewBallotAny allows viewing any ballot with voter identity.
	PermViewBallotAny Permission = "VIEW_BALLOT_ANY"
	// PermViewAdminTables allows dumping the raw relational tables.
	PermViewAdminTables Permission = "VIEW_ADMIN_TABLES"
)

// userPermissions is the base set every registered user holds.
var userPermissions = []Permission{
	PermManageOwnElection,
	PermVote,
	PermViewTally,
	PermViewBallotOwn,
}

// adminPermissions extends the user set; OWNER holds the same set, the
// distinction between OWNER and ADMIN is who may change roles of admins,
// which the service enforces directly.
var adminPermissions = append([]Permission{
	PermManageUsers,
	PermManageAnyElection,
	PermViewBallotAny,
	PermViewAdminTables,
}, userPermissions...)

// Permissions returns the permission set for a role. Unknown roles have none.
func Permissions(role user.Role) []Permission {
	switch role {
	case user.RoleOwner, user.RoleAdmin:
		out := make([]Permission, len(adminPermissions))
		copy(out, adminPermissions)
		return out
	case user.RoleUser:
		out := make([]Permission, len(userPermissions))
		copy(out, userPermissions)
		return out
	}
	return nil
}

// HasPermission reports whether the role grants the permission.
func HasPermission(role user.Role, perm Permission) bool {
	for _, p := range Permissions(role) {
		if p == perm {
			return true
		}
	}
	return false
}
