package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordAuthenticatorInitialResponse(t *testing.T) {
	a := PasswordAuthenticator{Username: "alice", Password: "secret"}
	assert.Equal(t, []byte("\x00alice\x00secret"), a.InitialResponse())
}

func TestPasswordAuthenticatorEvaluateChallengeErrors(t *testing.T) {
	a := PasswordAuthenticator{Username: "alice", Password: "secret"}
	resp, err := a.EvaluateChallenge([]byte("anything"))
	assert.Nil(t, resp)
	assert.Error(t, err)
}
