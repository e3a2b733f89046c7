package crm

// Principal is the identity capability: a record that can stand for an
// authenticated actor. Entities declared with schema.CapabilityIdentity have
// persistence models implementing it. Credentials and sessions live outside
// this package.
type Principal interface {
	PrincipalID() int64
	PrincipalName() string
	PrincipalEmail() string
}
