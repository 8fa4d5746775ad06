package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingStore struct {
	values map[string]string
	calls  int
}

func (s *countingStore) Get(_ context.Context, name string) (string, error) {
	s.calls++
	if v, ok := s.values[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, "development"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, ""))
	assert.Equal(t, SourceVault, ResolveSource(SourceAuto, "production"))
	assert.Equal(t, SourceVault, ResolveSource(SourceVault, "development"))
}

func TestProvider_CachesUntilExpiry(t *testing.T) {
	store := &countingStore{values: map[string]string{"db-password": "s3cret"}}
	p := NewProviderWithStore(SourceVault, store, true, time.Minute, zap.NewNop())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		v, err := p.GetSecret(context.Background(), "db-password")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	}
	assert.Equal(t, 1, store.calls)

	now = now.Add(2 * time.Minute)
	_, err := p.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestProvider_NoCache(t *testing.T) {
	store := &countingStore{values: map[string]string{"k": "v"}}
	p := NewProviderWithStore(SourceVault, store, false, 0, zap.NewNop())

	_, _ = p.GetSecret(context.Background(), "k")
	_, _ = p.GetSecret(context.Background(), "k")
	assert.Equal(t, 2, store.calls)
}

func TestProvider_GetSecretOrEnvPrefersEnvironment(t *testing.T) {
	t.Setenv("MEASURE_TEST_OVERRIDE", "from-env")
	store := &countingStore{values: map[string]string{"override": "from-vault"}}
	p := NewProviderWithStore(SourceVault, store, true, time.Minute, zap.NewNop())

	v, err := p.GetSecretOrEnv(context.Background(), "override", "MEASURE_TEST_OVERRIDE")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
	assert.Equal(t, 0, store.calls)

	v, err = p.GetSecretOrEnv(context.Background(), "override", "MEASURE_TEST_UNSET_VAR")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", v)
}

func TestProvider_PropagatesStoreError(t *testing.T) {
	p := NewProviderWithStore(SourceVault, &countingStore{}, true, time.Minute, zap.NewNop())
	_, err := p.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestEnvironmentProvider(t *testing.T) {
	t.Setenv("MEASURE_TEST_SECRET", "value")
	p, err := NewProvider(&ProviderConfig{Source: SourceEnvironment}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, p.Source())

	v, err := p.GetSecret(context.Background(), "MEASURE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}
