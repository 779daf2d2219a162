package authz

import "fmt"

// Role is one of the identities a scan replays requests under.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleAnon  Role = "anon"
)

// ScanRoles is the fixed replay order for differential scans.
var ScanRoles = []Role{RoleAdmin, RoleUser, RoleAnon}

// Credential is an auth header value attached for a role. An empty value
// means the role sends no auth header at all, which is how the anonymous
// identity is expressed.
type Credential struct {
	Header string `json:"header" mapstructure:"header"`
	Value  string `json:"value" mapstructure:"value"`
}

// DefaultAuthHeader is used when a credential set does not name one.
const DefaultAuthHeader = "Authorization"

// CredentialSet maps each scan role to its credential.
type CredentialSet struct {
	Header string          `json:"header" mapstructure:"header"`
	Tokens map[Role]string `json:"tokens" mapstructure:"tokens"`
}

// NewCredentialSet builds a set with the default auth header. Empty token
// strings are valid and mean "send nothing" for that role.
func NewCredentialSet(adminToken, userToken string) CredentialSet {
	return CredentialSet{
		Header: DefaultAuthHeader,
		Tokens: map[Role]string{
			RoleAdmin: adminToken,
			RoleUser:  userToken,
			RoleAnon:  "",
		},
	}
}

// For returns the credential to attach for a role.
func (cs CredentialSet) For(role Role) Credential {
	header := cs.Header
	if header == "" {
		header = DefaultAuthHeader
	}
	return Credential{Header: header, Value: cs.Tokens[role]}
}

// Validate checks the set covers the identities a differential scan needs.
// A fuzz run only needs the user token.
func (cs CredentialSet) Validate(requireAdmin bool) error {
	if cs.Tokens[RoleUser] == "" {
		return fmt.Errorf("user token is required")
	}
	if requireAdmin && cs.Tokens[RoleAdmin] == "" {
		return fmt.Errorf("admin token is required for differential scans")
	}
	return nil
}
