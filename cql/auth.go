package cql

import "fmt"

// PasswordAuthenticator implements the PasswordAuthenticator SASL
// mechanism org.apache.cassandra.auth.PasswordAuthenticator (and
// Scylla's equivalent) expect: a single round trip carrying
// \x00username\x00password.
type PasswordAuthenticator struct {
	Username string
	Password string
}

func (a PasswordAuthenticator) InitialResponse() []byte {
	return []byte(fmt.Sprintf("\x00%s\x00%s", a.Username, a.Password))
}

func (a PasswordAuthenticator) EvaluateChallenge(challenge []byte) ([]byte, error) {
	return nil, fmt.Errorf("cql: unexpected SASL challenge from PasswordAuthenticator exchange")
}
