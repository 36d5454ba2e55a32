package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpinel/docugraph/internal/jobs"
	"github.com/vpinel/docugraph/internal/progress"
)

func dialProgress(t *testing.T, srv *Server, jobID string) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/progress/" + jobID

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func waitForSubscriber(t *testing.T, hub *progress.Hub, jobID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(jobID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProgressSocketStreamsRecords(t *testing.T) {
	hub := progress.NewHub(nil)
	srv := newTestServer(t, Deps{Hub: hub})

	conn, cleanup := dialProgress(t, srv, "job-1")
	defer cleanup()
	waitForSubscriber(t, hub, "job-1")

	hub.Publish("job-1", jobs.Record{JobID: "job-1", Status: jobs.StatusExtracting, PercentComplete: 27})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var rec jobs.Record
	require.NoError(t, conn.ReadJSON(&rec))
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, 27, rec.PercentComplete)
}

func TestProgressSocketPingPong(t *testing.T) {
	hub := progress.NewHub(nil)
	srv := newTestServer(t, Deps{Hub: hub})

	conn, cleanup := dialProgress(t, srv, "job-1")
	defer cleanup()
	waitForSubscriber(t, hub, "job-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "pong", string(data))
}

func TestProgressSocketClosesAfterTerminalRecord(t *testing.T) {
	hub := progress.NewHub(nil)
	srv := newTestServer(t, Deps{Hub: hub})

	conn, cleanup := dialProgress(t, srv, "job-1")
	defer cleanup()
	waitForSubscriber(t, hub, "job-1")

	hub.Publish("job-1", jobs.Record{JobID: "job-1", Status: jobs.StatusCompleted, PercentComplete: 100})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var rec jobs.Record
	require.NoError(t, conn.ReadJSON(&rec))
	assert.Equal(t, jobs.StatusCompleted, rec.Status)

	// The server closes the socket after the terminal record.
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestProgressSocketUnsubscribesOnDisconnect(t *testing.T) {
	hub := progress.NewHub(nil)
	srv := newTestServer(t, Deps{Hub: hub})

	conn, cleanup := dialProgress(t, srv, "job-1")
	waitForSubscriber(t, hub, "job-1")

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("job-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cleanup()
}
