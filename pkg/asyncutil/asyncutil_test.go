package asyncutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok[T any](v T) Task[T] {
	return func(ctx context.Context) (T, error) { return v, nil }
}

func failing[T any](err error) Task[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

func TestAndThen_ChainsOnSuccess(t *testing.T) {
	task := AndThen(ok(2), func(n int) Task[int] {
		return ok(n * 10)
	})
	v, err := task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestAndThen_ShortCircuitsOnFailure(t *testing.T) {
	wantErr := errors.New("boom")
	called := false
	task := AndThen(failing[int](wantErr), func(n int) Task[int] {
		called = true
		return ok(n)
	})
	_, err := task(context.Background())
	assert.Equal(t, wantErr, err)
	assert.False(t, called)
}

func TestOrElse_RecoversFromFailure(t *testing.T) {
	task := OrElse(failing[int](errors.New("primary down")), func(err error) Task[int] {
		return ok(42)
	})
	v, err := task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestTransform_MapsSuccess(t *testing.T) {
	task := Transform(ok(3), func(n int) string { return "n=3" })
	v, err := task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n=3", v)
}

func TestSyncRunner_And_AsyncRunner_AgreeOnResult(t *testing.T) {
	task := AndThen(ok(5), func(n int) Task[int] { return ok(n + 1) })

	syncResult := SyncRunner[int]{}.Run(context.Background(), task)
	asyncResult := AsyncRunner[int]{}.Run(context.Background(), task)

	require.NoError(t, syncResult.Err)
	require.NoError(t, asyncResult.Err)
	assert.Equal(t, syncResult.Value, asyncResult.Value)
}

func TestWhenAll_CollectsInOrder(t *testing.T) {
	ctx := context.Background()
	ch1 := Start(ctx, ok(1))
	ch2 := Start(ctx, ok(2))

	results, err := WhenAll(ctx, []<-chan Result[int]{ch1, ch2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Value)
	assert.Equal(t, 2, results[1].Value)
}

func TestRecover_NeverFails(t *testing.T) {
	task := Recover(failing[int](errors.New("x")), func(err error) int { return -1 })
	v, err := task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, v)
}
