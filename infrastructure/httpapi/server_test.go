package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-rooms/domain/event"
	"chat-rooms/observability"
	"chat-rooms/protocol"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = indexWriter.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan event.DomainEvent, 64)
	sup := workers.NewSupervisor(log, 50*time.Millisecond)
	directory := runtime.NewDirectory(log, sup, repositories.NewPostRepository(db, log),
		nil, events, observability.NewStats(), workers.BroadcastFirst, 100, 64)
	directory.Start(ctx)

	api := NewServer(log, directory, repositories.NewSearchIndex(indexWriter, log), 100, 64)
	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)
	return server
}

func createRoom(t *testing.T, server *httptest.Server) string {
	t.Helper()
	req := require.New(t)
	resp, err := http.Post(server.URL+"/room", "application/json", nil)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.NotEmpty(body["id"])
	return body["id"]
}

func dialRoom(t *testing.T, server *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/room/" + room
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return payload
}

func fetchRecent(t *testing.T, server *httptest.Server, room string) []protocol.WirePost {
	t.Helper()
	req := require.New(t)
	resp, err := http.Get(fmt.Sprintf("%s/room/%s/recent", server.URL, room))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Posts []protocol.WirePost `json:"posts"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	return body.Posts
}

func Test_Create_Room_Returns_Opaque_Id(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	first := createRoom(t, server)
	second := createRoom(t, server)
	req.NotEqual(first, second)
}

func Test_Recent_On_Fresh_Room_Is_An_Empty_Array(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/room/%s/recent", server.URL, room))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))

	var raw map[string]json.RawMessage
	req.NoError(json.NewDecoder(resp.Body).Decode(&raw))
	// Clients iterate the array blindly; null would break them.
	req.Equal("[]", string(raw["posts"]))
}

func Test_Room_Endpoint_Requires_Websocket_Upgrade(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/room/%s", server.URL, room))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUpgradeRequired, resp.StatusCode)
}

func Test_Preflight_Allows_Any_Origin(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	request, err := http.NewRequest(http.MethodOptions, fmt.Sprintf("%s/room/%s", server.URL, room), nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusNoContent, resp.StatusCode)
	req.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
	req.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "OPTIONS")
}

func Test_Search_Requires_Query_Parameter(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/room/%s/search", server.URL, room))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_Chat_Flow_Over_Websocket(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	alice := dialRoom(t, server, room)
	bob := dialRoom(t, server, room)

	req.NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"connected","userId":"u-alice","username":"Alice"}`)))
	req.NoError(bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"connected","userId":"u-bob","username":"Bob"}`)))

	var recent protocol.RecentFrame
	req.NoError(json.Unmarshal(readFrame(t, alice), &recent))
	req.Equal("recent", recent.Action)
	req.Empty(recent.Posts)
	req.NoError(json.Unmarshal(readFrame(t, bob), &recent))
	req.Equal("recent", recent.Action)

	req.NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"send","userId":"u-alice","username":"Alice","message":"hello room"}`)))

	// Both participants receive the post, the sender included.
	for _, conn := range []*websocket.Conn{alice, bob} {
		var post protocol.WirePost
		req.NoError(json.Unmarshal(readFrame(t, conn), &post))
		req.Equal("post", post.Action)
		req.Equal("hello room", post.Message)
		req.Equal("Alice", post.Username)
		req.Equal(room, post.RoomID)
	}

	// The log catches up with what was broadcast.
	require.Eventually(t, func() bool {
		posts := fetchRecent(t, server, room)
		return len(posts) == 1 && posts[0].Message == "hello room"
	}, 2*time.Second, 20*time.Millisecond)
}

func Test_Late_Joiner_Receives_History(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	room := createRoom(t, server)

	alice := dialRoom(t, server, room)
	req.NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"connected","userId":"u-alice","username":"Alice"}`)))
	readFrame(t, alice)

	req.NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"send","userId":"u-alice","username":"Alice","message":"before Bob"}`)))
	readFrame(t, alice)

	// The append is durable before a later snapshot can miss it.
	require.Eventually(t, func() bool {
		return len(fetchRecent(t, server, room)) == 1
	}, 2*time.Second, 20*time.Millisecond)

	bob := dialRoom(t, server, room)
	req.NoError(bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"connected","userId":"u-bob","username":"Bob"}`)))

	var recent protocol.RecentFrame
	req.NoError(json.Unmarshal(readFrame(t, bob), &recent))
	req.Equal("recent", recent.Action)
	req.Len(recent.Posts, 1)
	req.Equal("before Bob", recent.Posts[0].Message)
}
