package decision

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/store"
	"prism/internal/store/model"
	"prism/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveAnalysis(outcome string) {
	m.Called(outcome)
}

var errInsertFailed = errors.New("insert failed")

// failingStore breaks decision inserts while leaving every other repository intact.
type failingStore struct {
	store.Store
}

func (f failingStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	uow, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingUoW{UnitOfWork: uow}, nil
}

type failingUoW struct {
	store.UnitOfWork
}

func (u failingUoW) Decisions() store.DecisionRepository {
	return failingDecisions{DecisionRepository: u.UnitOfWork.Decisions()}
}

type failingDecisions struct {
	store.DecisionRepository
}

func (failingDecisions) Insert(context.Context, *model.DecisionModel) error {
	return errInsertFailed
}

func newStore(t *testing.T) *sqlite.SqliteStore {
	t.Helper()
	st, err := sqlite.NewSqliteStore(sqlite.Options{Path: filepath.Join(t.TempDir(), "decisions.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createUser(t *testing.T, st store.Store, email string, credits int) *model.UserModel {
	t.Helper()
	user := &model.UserModel{Email: email, HashedPassword: "x", Credits: credits}
	require.NoError(t, store.WithinTx(context.Background(), st, func(uow store.UnitOfWork) error {
		return uow.Users().Create(context.Background(), user)
	}))
	return user
}

func storedCredits(t *testing.T, st store.Store, id uint64) int {
	t.Helper()
	var credits int
	require.NoError(t, store.WithinTx(context.Background(), st, func(uow store.UnitOfWork) error {
		u, err := uow.Users().FindByID(context.Background(), id)
		if err != nil {
			return err
		}
		credits = u.Credits
		return nil
	}))
	return credits
}

func decisionCount(t *testing.T, st store.Store) int {
	t.Helper()
	var n int
	require.NoError(t, store.WithinTx(context.Background(), st, func(uow store.UnitOfWork) error {
		rows, err := uow.Decisions().List(context.Background(), store.DecisionQuery{})
		n = len(rows)
		return err
	}))
	return n
}

func input(asset string) analysis.Input {
	return analysis.Input{Asset: asset, Action: "Buy", Reasoning: "trend", Timeframe: "1d", Conviction: 7}
}

func newService(t *testing.T, st store.Store, mode string, rec Recorder) *Service {
	t.Helper()
	svc, err := NewService(st, analysis.NewEngine(nil), rec, Options{ChargeMode: mode})
	require.NoError(t, err)
	return svc
}

func TestAnalyze_ChargesOneCredit(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "a@example.com", 3)
	rec := new(MockRecorder)
	rec.On("ObserveAnalysis", "neutral").Return()
	svc := newService(t, st, config.ChargeModeAtomic, rec)

	out, err := svc.Analyze(context.Background(), user, input("BTC"))
	require.NoError(t, err)
	assert.Equal(t, 2, out.UserCredits)
	assert.Equal(t, 2, storedCredits(t, st, user.ID))
	assert.Equal(t, 75, out.Score)
	assert.Equal(t, "Analyzing Buy decision for BTC.", out.Summary)
	rec.AssertExpectations(t)

	var entries []model.CreditEntryModel
	require.NoError(t, store.WithinTx(context.Background(), st, func(uow store.UnitOfWork) error {
		var err error
		entries, err = uow.Credits().ListByUser(context.Background(), user.ID, 0)
		return err
	}))
	require.Len(t, entries, 1)
	assert.Equal(t, -1, entries[0].Delta)
	assert.Equal(t, 2, entries[0].BalanceAfter)
	require.NotNil(t, entries[0].DecisionID)
}

func TestAnalyze_NoCreditsIsRejectedWithoutSideEffects(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "zero@example.com", 0)
	rec := new(MockRecorder)
	rec.On("ObserveAnalysis", "denied").Return()

	for _, mode := range []string{config.ChargeModeAtomic, config.ChargeModeLegacy} {
		svc := newService(t, st, mode, rec)
		_, err := svc.Analyze(context.Background(), user, input("BTC"))
		assert.ErrorIs(t, err, ErrInsufficientCredits, mode)
		assert.Equal(t, 0, storedCredits(t, st, user.ID), mode)
		assert.Equal(t, 0, decisionCount(t, st), mode)
	}
	rec.AssertNumberOfCalls(t, "ObserveAnalysis", 2)
}

func TestAnalyze_BiasAfterThreePriorDecisions(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "bias@example.com", 10)
	svc := newService(t, st, config.ChargeModeAtomic, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := svc.Analyze(ctx, user, input("SOL"))
		require.NoError(t, err)
		assert.False(t, out.BiasDetected, "call %d", i)
		assert.Equal(t, 75, out.Score)
	}
	_, err := svc.Analyze(ctx, user, input("ETH"))
	require.NoError(t, err)

	out, err := svc.Analyze(ctx, user, input("SOL"))
	require.NoError(t, err)
	assert.True(t, out.BiasDetected)
	assert.Equal(t, 60, out.Score)
	assert.Equal(t, 3, out.PriorDecisions)
	assert.Equal(t, []string{"Recency Bias / Overtrading suspected in this asset."}, out.Biases)
	assert.Equal(t, 5, out.UserCredits)
}

func TestAnalyze_AtomicModeKeepsCreditOnFailure(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "atomic@example.com", 2)
	svc := newService(t, failingStore{Store: st}, config.ChargeModeAtomic, nil)

	_, err := svc.Analyze(context.Background(), user, input("BTC"))
	assert.ErrorIs(t, err, errInsertFailed)
	assert.Equal(t, 2, storedCredits(t, st, user.ID))
}

func TestAnalyze_LegacyModeKeepsDecrementOnFailure(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "legacy@example.com", 2)
	svc := newService(t, failingStore{Store: st}, config.ChargeModeLegacy, nil)

	_, err := svc.Analyze(context.Background(), user, input("BTC"))
	assert.ErrorIs(t, err, errInsertFailed)
	assert.Equal(t, 1, storedCredits(t, st, user.ID))
}

func TestAnalyze_LegacyModeSuccess(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "legacy-ok@example.com", 1)
	svc := newService(t, st, config.ChargeModeLegacy, nil)

	out, err := svc.Analyze(context.Background(), user, input("BTC"))
	require.NoError(t, err)
	assert.Equal(t, 0, out.UserCredits)
	assert.Equal(t, 1, decisionCount(t, st))
}

func TestAnalyze_RejectsForeignOwnerAndBadInput(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "owner@example.com", 3)
	svc := newService(t, st, config.ChargeModeAtomic, nil)

	other := user.ID + 1
	in := input("BTC")
	in.UserID = &other
	_, err := svc.Analyze(context.Background(), user, in)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Analyze(context.Background(), user, analysis.Input{Asset: "BTC"})
	assert.ErrorIs(t, err, analysis.ErrInvalidInput)

	assert.Equal(t, 3, storedCredits(t, st, user.ID))

	own := user.ID
	in.UserID = &own
	_, err = svc.Analyze(context.Background(), user, in)
	assert.NoError(t, err)
}

func TestHistory_NewestFirst(t *testing.T) {
	st := newStore(t)
	user := createUser(t, st, "h@example.com", 5)
	svc := newService(t, st, config.ChargeModeAtomic, nil)
	ctx := context.Background()

	empty, err := svc.History(ctx, store.DecisionQuery{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	for _, asset := range []string{"BTC", "ETH", "BTC"} {
		_, err := svc.Analyze(ctx, user, input(asset))
		require.NoError(t, err)
	}
	rows, err := svc.History(ctx, store.DecisionQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.After(rows[i-1].CreatedAt))
	}
	assert.Equal(t, "Neutral", rows[0].EmotionalTone)
	require.NotNil(t, rows[0].UserID)
	assert.Equal(t, user.ID, *rows[0].UserID)

	btc, err := svc.History(ctx, store.DecisionQuery{Asset: "BTC", Limit: 1})
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "BTC", btc[0].Asset)
}
