package socket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-server/auth"
	"chat-server/repositories"
	"chat-server/runtime"
	"chat-server/services"
	"chat-server/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, repositories.IUserRepository) {
	t.Helper()
	log := logs.GetLoggerFromString("debug")

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messageLog := repositories.NewMessageLog(db, log)
	t.Cleanup(func() { _ = messageLog.Close() })

	avatars, err := storage.NewDiskStorage(t.TempDir(), storage.Constraints{
		Extensions: []string{".png"},
		MaxSizeKB:  64,
	}, log)
	require.NoError(t, err)

	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, 64, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()

	users := repositories.NewUserRepository(db)
	service := services.NewChatService(log, repositories.NewRoomRepository(db),
		messageLog, users, avatars, registry, router, 20)

	server := httptest.NewServer(NewHandler(log, service, registry, 16, 1<<20))
	t.Cleanup(server.Close)
	return server, users
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func Test_Socket_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	conn := dial(t, server, "garbage")

	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	req.NoError(json.Unmarshal(readFrame(t, conn), &frame))
	req.Equal("error", frame.Event)
	req.Equal("invalid or missing token", frame.Data["msg"])

	// The server closes the connection right after the error frame.
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func Test_Socket_Subscribe_Then_Create_And_Post(t *testing.T) {
	req := require.New(t)
	server, users := newTestServer(t)

	alice, err := users.Create("Alice", "alice", "hash")
	req.NoError(err)
	token, err := auth.GenerateToken(alice.ID, time.Hour)
	req.NoError(err)

	conn := dial(t, server, token)

	// Every fresh connection starts with the subscription snapshot.
	var snapshot struct {
		Event string `json:"event"`
		Data  struct {
			Opened    []json.RawMessage `json:"opened"`
			Available []json.RawMessage `json:"available"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(readFrame(t, conn), &snapshot))
	req.Equal("subscribed", snapshot.Event)
	req.Empty(snapshot.Data.Opened)

	create, err := json.Marshal(Request{
		Seq:     1,
		Action:  ActionCreate,
		Payload: json.RawMessage(`{"caption":"wired"}`),
	})
	req.NoError(err)
	req.NoError(conn.WriteMessage(websocket.TextMessage, create))

	var created struct {
		Seq     int64 `json:"seq"`
		Success bool  `json:"success"`
		Data    struct {
			Chat struct {
				ID string `json:"id"`
			} `json:"chat"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(readFrame(t, conn), &created))
	req.Equal(int64(1), created.Seq)
	req.True(created.Success)
	req.NotEmpty(created.Data.Chat.ID)

	post, err := json.Marshal(Request{
		Seq:     2,
		Action:  ActionPost,
		Payload: json.RawMessage(`{"id":"` + created.Data.Chat.ID + `","text":"hello"}`),
	})
	req.NoError(err)
	req.NoError(conn.WriteMessage(websocket.TextMessage, post))

	var posted struct {
		Seq     int64 `json:"seq"`
		Success bool  `json:"success"`
		Data    struct {
			Message struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(readFrame(t, conn), &posted))
	req.Equal(int64(2), posted.Seq)
	req.True(posted.Success)
	req.Equal("hello", posted.Data.Message.Text)
}

func Test_Socket_Unknown_Action(t *testing.T) {
	req := require.New(t)
	server, users := newTestServer(t)

	alice, err := users.Create("Alice", "alice", "hash")
	req.NoError(err)
	token, err := auth.GenerateToken(alice.ID, time.Hour)
	req.NoError(err)

	conn := dial(t, server, token)
	readFrame(t, conn) // subscribed

	frame, err := json.Marshal(Request{Seq: 1, Action: "chat:frobnicate"})
	req.NoError(err)
	req.NoError(conn.WriteMessage(websocket.TextMessage, frame))

	var resp Response
	req.NoError(json.Unmarshal(readFrame(t, conn), &resp))
	req.False(resp.Success)
	req.Equal("unknown action", resp.Msg)
}
