package basex

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerQuery は 1 回分の Evaluate に result を返します。
func answerQuery(result string) func(*fakeServer) error {
	return func(f *fakeServer) error {
		if _, err := f.expectRequest(cmdQuery); err != nil {
			return err
		}
		if err := f.send(str("1"), ok); err != nil {
			return err
		}
		if _, err := f.expectRequest(cmdExecute); err != nil {
			return err
		}
		if err := f.send(str(result), ok); err != nil {
			return err
		}
		if _, err := f.expectRequest(cmdClose); err != nil {
			return err
		}
		return f.send(str(""), ok)
	}
}

// scriptedConnect は呼び出しごとに scripts を順に演じるセッションを返します。
func scriptedConnect(t *testing.T, scripts ...func(*fakeServer) error) (connectFunc, *int) {
	t.Helper()

	calls := 0
	return func(context.Context) (*Session, error) {
		if calls >= len(scripts) {
			return nil, errors.New("connection refused")
		}
		script := scripts[calls]
		calls++

		client, server := net.Pipe()
		go func() {
			defer server.Close()
			_ = script(newFakeServer(server))
		}()
		t.Cleanup(func() { _ = client.Close() })
		return newSession(client, 2*time.Second), nil
	}, &calls
}

func TestClient_ReconnectsAfterBrokenSession(t *testing.T) {
	t.Parallel()

	connect, calls := scriptedConnect(t, hangAfterQuery, answerQuery("Sales"))
	c, err := newClient(context.Background(), connect)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Evaluate(ctx, "slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	result, err := c.Evaluate(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, "Sales", result)
	assert.Equal(t, 2, *calls)
}

func TestClient_ReconnectFailure(t *testing.T) {
	t.Parallel()

	connect, _ := scriptedConnect(t, hangAfterQuery)
	c, err := newClient(context.Background(), connect)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Evaluate(ctx, "slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = c.Evaluate(context.Background(), "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect")
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	connect, _ := scriptedConnect(t, func(f *fakeServer) error {
		if _, err := f.readString(); err != nil {
			return err
		}
		if err := f.send(str(""), str(""), ok); err != nil {
			return err
		}
		_, err := f.readString()
		return err
	})
	c, err := newClient(context.Background(), connect)
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))

	_, err = c.Evaluate(context.Background(), "1")
	require.ErrorIs(t, err, ErrClosed)
}
