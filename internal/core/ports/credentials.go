package ports

// CredentialStore holds an access token between sessions. Implementations
// must keep the value encrypted at rest and support explicit clearing on
// logout.
type CredentialStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}
