package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "logbookd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-team=indexer,,broken,=nokey")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "indexer",
	}, headers)
}

func TestSampleRatioClamp(t *testing.T) {
	require.Equal(t, 1.0, Config{}.ratio())
	require.Equal(t, 1.0, Config{SampleRatio: 3}.ratio())
	require.Equal(t, 0.25, Config{SampleRatio: 0.25}.ratio())
}

func TestShutdownsRunInReverse(t *testing.T) {
	var order []int
	stack := shutdowns{
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return errors.New("flush failed") },
	}
	require.ErrorContains(t, stack.run(context.Background()), "flush failed")
	require.Equal(t, []int{2, 1}, order)
}
