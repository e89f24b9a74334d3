package account

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prism/internal/store"
	"prism/internal/store/model"
	"prism/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789abcdef"

func newTestService(t *testing.T) (*Service, *sqlite.SqliteStore) {
	t.Helper()
	st, err := sqlite.NewSqliteStore(sqlite.Options{Path: filepath.Join(t.TempDir(), "accounts.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	tokens, err := NewTokenIssuer(testSecret, "prism", time.Hour)
	require.NoError(t, err)
	svc, err := NewService(st, tokens, Options{FreeTrialCredits: 3, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	return svc, st
}

func TestRegister_IssuesTokenAndDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, Credentials{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.NotZero(t, sess.User.ID)

	user, err := svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)
	assert.Equal(t, model.TierFreemium, user.SubscriptionStatus)
	assert.Equal(t, "USD", user.CurrencyPref)
	assert.Equal(t, 3, user.Credits)
	assert.NotEqual(t, "pw", user.HashedPassword)
}

func TestRegister_DuplicateEmailCreatesNoRow(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{Email: "dup@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, Credentials{Email: "dup@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	uow, err := st.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	user, err := uow.Users().FindByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	_, err = uow.Users().FindByID(ctx, user.ID+1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []Credentials{
		{Email: "", Password: "pw"},
		{Email: "not-an-email", Password: "pw"},
		{Email: "Bob <bob@example.com>", Password: "pw"},
		{Email: "bob@example.com", Password: ""},
	}
	for _, in := range cases {
		_, err := svc.Register(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %+v", in)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, Credentials{Email: "carol@example.com", Password: "right"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, Credentials{Email: "carol@example.com", Password: "wrong"})
	_, unknownEmail := svc.Login(ctx, Credentials{Email: "nobody@example.com", Password: "right"})
	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	sess, err := svc.Login(ctx, Credentials{Email: "carol@example.com", Password: "right"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
}

func TestLogin_UnknownEmailRunsBcrypt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, Credentials{Email: "dave@example.com", Password: "right"})
	require.NoError(t, err)

	var compared [][]byte
	svc.hasher.compare = func(hash, password []byte) error {
		compared = append(compared, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	_, err = svc.Login(ctx, Credentials{Email: "ghost@example.com", Password: "right"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	require.Len(t, compared, 1)
	cost, err := bcrypt.Cost(compared[0])
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	_, err = svc.Login(ctx, Credentials{Email: "dave@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, compared, 2)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, Credentials{Email: "dave@example.com", Password: "pw"})
	require.NoError(t, err)

	otherIssuer, err := NewTokenIssuer("another-secret-0123456789", "prism", time.Hour)
	require.NoError(t, err)
	forged, err := otherIssuer.Issue(sess.User.ID, sess.User.Email)
	require.NoError(t, err)

	ghost, err := svc.tokens.Issue(sess.User.ID+99, "ghost@example.com")
	require.NoError(t, err)

	expiredIssuer, err := NewTokenIssuer(testSecret, "prism", time.Minute)
	require.NoError(t, err)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(sess.User.ID, sess.User.Email)
	require.NoError(t, err)

	orig := strings.Split(sess.AccessToken, ".")
	swapped := strings.Split(ghost, ".")
	tampered := strings.Join([]string{orig[0], swapped[1], orig[2]}, ".")

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "not.a.token",
		"forged":   forged,
		"unknown":  ghost,
		"expired":  expired,
		"tampered": tampered,
	} {
		_, err := svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated, name)
	}
}

func TestMe(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, Credentials{Email: "erin@example.com", Password: "pw"})
	require.NoError(t, err)

	profile, err := svc.Me(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", profile.Email)
	assert.Equal(t, 3, profile.Credits)
	assert.Equal(t, model.TierFreemium, profile.SubscriptionStatus)

	_, err = svc.Me(ctx, sess.User.ID+10)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
