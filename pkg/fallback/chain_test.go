package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(name string) Stage[float64] {
	return Stage[float64]{Name: name, Run: func(context.Context) (float64, error) {
		return 0, errors.New(name + " down")
	}}
}

func TestChainFirstSuccessWins(t *testing.T) {
	calls := 0
	c := New("vix",
		failing("live"),
		Stage[float64]{Name: "proxy", Run: func(context.Context) (float64, error) {
			calls++
			return 21.3, nil
		}},
		Const("default", 20.0),
	)

	v, stage, err := c.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.3, v)
	assert.Equal(t, "proxy", stage)
	assert.Equal(t, 1, calls)
}

func TestChainObserverAndPanic(t *testing.T) {
	var seen []string
	c := New("vix",
		Stage[float64]{Name: "live", Run: func(context.Context) (float64, error) { panic("nil map") }},
		Const("default", 20.0),
	).Observe(func(chain, stage string, err error) {
		seen = append(seen, chain+"/"+stage+":"+boolStr(err == nil))
	})

	v, stage, err := c.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
	assert.Equal(t, "default", stage)
	assert.Equal(t, []string{"vix/live:fail", "vix/default:ok"}, seen)
}

func TestChainAllFail(t *testing.T) {
	_, stage, err := New("vix", failing("a"), failing("b")).Resolve(context.Background())
	require.Error(t, err)
	assert.Empty(t, stage)
	assert.ErrorContains(t, err, "a down")
	assert.ErrorContains(t, err, "b down")
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New("vix", Const("default", 20.0)).Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func boolStr(b bool) string {
	if b {
		return "ok"
	}
	return "fail"
}
