package i18n

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Template(ctx context.Context, businessID int64, lang, key string) (string, bool, error) {
	args := m.Called(ctx, businessID, lang, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func writeLocales(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(`
en:
  main_menu: "Main menu"
  order:
    paid: "Order #{order_id} paid"
  only_en: "English only"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "si.yaml"), []byte(`
si:
  main_menu: "ප්‍රධාන මෙනුව"
`), 0o600))
	return dir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveFallbackChain(t *testing.T) {
	ctx := context.Background()
	dir := writeLocales(t)

	src := &mockSource{}
	src.On("Template", mock.Anything, int64(7), "si", "main_menu").Return("Shop menu", true, nil).Once()
	src.On("Template", mock.Anything, int64(7), "si", "only_en").Return("", false, nil).Once()
	src.On("Template", mock.Anything, int64(7), "en", "only_en").Return("", false, nil).Once()
	src.On("Template", mock.Anything, int64(7), "si", "nowhere").Return("", false, errors.New("db down")).Once()
	src.On("Template", mock.Anything, int64(7), "en", "nowhere").Return("", false, nil).Once()

	r, err := NewResolver(dir, "en", src, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "Shop menu", r.Resolve(ctx, 7, "si", "main_menu"))
	assert.Equal(t, "English only", r.Resolve(ctx, 7, "si", "only_en"))
	assert.Equal(t, MissingPrefix+"nowhere", r.Resolve(ctx, 7, "si", "nowhere"))

	src.AssertExpectations(t)
}

func TestResolveWithoutSource(t *testing.T) {
	r, err := NewResolver(writeLocales(t), "", nil, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, "ප්‍රධාන මෙනුව", r.Resolve(ctx, 1, "SI", "main_menu"))
	assert.Equal(t, "Main menu", r.Resolve(ctx, 1, "", "main_menu"))
	assert.Equal(t, "Main menu", r.Resolve(ctx, 1, "fr", "main_menu"))
	assert.Equal(t, "Order #12 paid", r.Format(ctx, 1, "en", "order.paid", map[string]any{"order_id": 12}))
	assert.Equal(t, []string{"en", "si"}, r.Languages())
}

func TestNewResolverRequiresDefaultLanguage(t *testing.T) {
	_, err := NewResolver(writeLocales(t), "ta", nil, testLogger())
	assert.Error(t, err)

	_, err = NewResolver(t.TempDir(), "en", nil, testLogger())
	assert.Error(t, err)
}

func TestSubstitute(t *testing.T) {
	assert.Equal(t, "Hi Kamal, total Rs.10", Substitute("Hi {name}, total {total}", map[string]any{"name": "Kamal", "total": "Rs.10"}))
	assert.Equal(t, "no vars {x}", Substitute("no vars {x}", nil))
}

func TestWatchReloads(t *testing.T) {
	dir := writeLocales(t)
	r, err := NewResolver(dir, "en", nil, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ta.yaml"), []byte("ta:\n  main_menu: \"முதன்மை\"\n"), 0o600))

	assert.Eventually(t, func() bool {
		return r.Resolve(context.Background(), 1, "ta", "main_menu") == "முதன்மை"
	}, 2*time.Second, 20*time.Millisecond)
}
