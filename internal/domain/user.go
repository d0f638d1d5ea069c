package domain

import "time"

// Role is the user's role as supplied by the identity provider.
type Role string

const (
	RoleStateUser         Role = "STATE_USER"
	RoleCMSUser           Role = "CMS_USER"
	RoleCMSApproverUser   Role = "CMS_APPROVER_USER"
	RoleAdminUser         Role = "ADMIN_USER"
	RoleHelpdeskUser      Role = "HELPDESK_USER"
	RoleBusinessOwnerUser Role = "BUSINESSOWNER_USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStateUser, RoleCMSUser, RoleCMSApproverUser, RoleAdminUser, RoleHelpdeskUser, RoleBusinessOwnerUser:
		return true
	}
	return false
}

// User is the authenticated caller.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Role       Role   `json:"role"`
	// StateCode is set for state users only
	StateCode string `json:"stateCode,omitempty"`
}

func (u User) IsStateUser() bool { return u.Role == RoleStateUser }

// IsCMSUser is true for CMS reviewers and approvers.
func (u User) IsCMSUser() bool {
	return u.Role == RoleCMSUser || u.Role == RoleCMSApproverUser
}

func (u User) IsCMSApprover() bool { return u.Role == RoleCMSApproverUser }

func (u User) IsAdmin() bool { return u.Role == RoleAdminUser }

// CanReadAllStates is true for every non-state role.
func (u User) CanReadAllStates() bool {
	switch u.Role {
	case RoleCMSUser, RoleCMSApproverUser, RoleAdminUser, RoleHelpdeskUser, RoleBusinessOwnerUser:
		return true
	}
	return false
}

// UpdatedBy snapshots the user for audit records.
func (u User) UpdatedBy() UpdatedBy {
	return UpdatedBy{
		Email:      u.Email,
		Role:       u.Role,
		GivenName:  u.GivenName,
		FamilyName: u.FamilyName,
	}
}

// OAuth client grants.
const (
	GrantReadContracts = "contracts:read"
	GrantReadRates     = "rates:read"
)

// OAuthClient is a machine client acting on behalf of a delegated CMS user.
type OAuthClient struct {
	ClientID string   `json:"clientId"`
	Grants   []string `json:"grants"`
}

func (c *OAuthClient) HasGrant(grant string) bool {
	if c == nil {
		return false
	}
	for _, g := range c.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// Actor is the request-scoped caller passed explicitly to every operation.
type Actor struct {
	User        User
	OAuthClient *OAuthClient
}

// IsOAuthClient reports whether the request came through an OAuth client token.
func (a Actor) IsOAuthClient() bool { return a.OAuthClient != nil }

// UpdatedBy records who performed a change.
type UpdatedBy struct {
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// UpdateInfo records when, by whom and why a revision was submitted or unlocked.
type UpdateInfo struct {
	UpdatedAt     time.Time `json:"updatedAt"`
	UpdatedBy     UpdatedBy `json:"updatedBy"`
	UpdatedReason string    `json:"updatedReason"`
}

// APIKey is a bearer credential issued to a user.
type APIKey struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}
