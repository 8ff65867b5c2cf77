package auth

import (
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"

	utils "github.com/scimas/badam-sat/internal"
)

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"), time.Hour)
	roomID := uuid.NewV4()

	token, err := signer.Issue(3, roomID)
	utils.AssertNoError(t, err)

	claim, err := signer.Verify(token)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, claim, Claim{Player: 3, Room: roomID})
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"), time.Hour)
	token, err := signer.Issue(0, uuid.NewV4())
	utils.AssertNoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = signer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"), time.Hour)
	other := NewSigner([]byte("another-signing-key"), time.Hour)

	token, err := other.Issue(0, uuid.NewV4())
	utils.AssertNoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"), time.Nanosecond)
	token, err := signer.Issue(0, uuid.NewV4())
	utils.AssertNoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := NewSigner([]byte("test-signing-key"), time.Hour)
	_, err := signer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
