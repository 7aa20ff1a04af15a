package httpserver

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeUntilCancelled(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, lst, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}))
	}()

	res, err := http.Get("http://" + lst.Addr().String() + "/ping")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServeInvalidBind(t *testing.T) {
	err := Serve(context.Background(), "not-an-address", http.NotFoundHandler())
	require.Error(t, err)
}

func TestShutdownWaitsForInflightRequests(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-time.After(300 * time.Millisecond):
			w.Write([]byte("done"))
		case <-r.Context().Done():
			http.Error(w, r.Context().Err().Error(), http.StatusServiceUnavailable)
		}
	})
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, lst, handler)
	}()

	type reply struct {
		status int
		body   string
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		res, err := http.Get("http://" + lst.Addr().String() + "/slow")
		if err != nil {
			replies <- reply{err: err}
			return
		}
		defer res.Body.Close()
		body, err := ioutil.ReadAll(res.Body)
		replies <- reply{status: res.StatusCode, body: string(body), err: err}
	}()

	<-started
	cancel()

	r := <-replies
	require.NoError(t, r.err)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, "done", r.body)
	require.NoError(t, <-done)
}
