package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	org, user := uuid.New(), uuid.New()
	tok, err := GenerateToken(org, user, "planner", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, org, claims.OrgID)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, "planner", claims.Role)

	_, err = ParseToken(tok, "other")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndOrgless(t *testing.T) {
	tok, err := GenerateToken(uuid.New(), uuid.New(), "viewer", "k", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(tok, "k")
	assert.Error(t, err)

	tok, err = GenerateToken(uuid.Nil, uuid.New(), "viewer", "k", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(tok, "k")
	assert.ErrorIs(t, err, ErrMissingOrg)
}

func TestExtractToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", ExtractToken(r))
}
