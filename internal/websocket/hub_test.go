package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/events"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

func testClient(hub *Hub, id string, buffer int) *Client {
	return &Client{
		id:          id,
		hub:         hub,
		send:        make(chan []byte, buffer),
		traceID:     "trace-" + id,
		connectedAt: time.Now(),
		remoteAddr:  "127.0.0.1:9000",
	}
}

func readMessage(t *testing.T, ch <-chan []byte) events.WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-ch:
		require.True(t, ok, "send channel closed")
		var msg events.WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return events.WebSocketMessage{}
	}
}

func TestHub_RegisterSendsConnect(t *testing.T) {
	hub := startHub(t)
	client := testClient(hub, "c1", 8)

	hub.Register(client)
	msg := readMessage(t, client.send)

	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, "trace-c1", msg.TraceID)
	assert.NotEmpty(t, msg.ID)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "c1", data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	_, ok = <-client.send
	assert.False(t, ok, "unregister closes the send channel")
}

func TestHub_Broadcast(t *testing.T) {
	hub := startHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = testClient(hub, fmt.Sprintf("c%d", i), 8)
		hub.Register(clients[i])
		readMessage(t, clients[i].send)
	}

	hub.Broadcast(events.MessageTypeFileIngested, "trace-x", events.FileIngested{
		SourceFile: "metrics_rat3_stage2_session1_3_15_2023.csv",
		RatID:      3,
		Stage:      2,
		Trials:     10,
	})

	for _, c := range clients {
		msg := readMessage(t, c.send)
		assert.Equal(t, events.MessageTypeFileIngested, msg.Type)
		assert.Equal(t, "trace-x", msg.TraceID)
		data := msg.Data.(map[string]interface{})
		assert.Equal(t, "metrics_rat3_stage2_session1_3_15_2023.csv", data["source_file"])
		assert.EqualValues(t, 10, data["trials"])
	}

	metrics := hub.GetHubMetrics()
	assert.Equal(t, 3, metrics["active_clients"])
	assert.EqualValues(t, 3, metrics["total_connections"])
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := startHub(t)

	// Room for the connect message only.
	slow := testClient(hub, "slow", 1)
	hub.Register(slow)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(events.MessageTypeLoopState, "", events.LoopState{State: "watching"})
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	readMessage(t, slow.send)
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	hub := NewHub(logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcastQueue+10; i++ {
			hub.Broadcast(events.MessageTypeLoopState, "", events.LoopState{State: "scanning"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
	assert.EqualValues(t, 10, hub.GetHubMetrics()["messages_dropped"])
}

func TestHub_StopClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	hub := NewHub(logger)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		hub.Run(context.Background())
	}()

	client := testClient(hub, "c1", 8)
	hub.Register(client)
	readMessage(t, client.send)

	hub.Stop()
	<-stopped

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())

	// Calls after shutdown return immediately.
	hub.Register(testClient(hub, "late", 1))
	hub.Unregister(client)
	hub.Stop()
}
