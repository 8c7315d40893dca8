package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsPair(t *testing.T) (*Channel, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverSide := make(chan *Channel, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- NewChannel(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-serverSide, client
}

func TestChannelSend(t *testing.T) {
	ch, client := wsPair(t)
	defer ch.Close()

	require.NoError(t, ch.Send("torrent-update", map[string]string{"infoHash": "aabb"}))

	var frame Frame
	require.NoError(t, client.ReadJSON(&frame))
	assert.Equal(t, "torrent-update", frame.Event)
	assert.Equal(t, map[string]interface{}{"infoHash": "aabb"}, frame.Payload)
}

func TestChannelSendAfterClose(t *testing.T) {
	ch, _ := wsPair(t)
	ch.Close()
	// Closing twice is harmless, sending afterwards reports the closure.
	ch.Close()
	assert.Error(t, ch.Send("torrent-update", nil))
}

func TestChannelIDsAreUnique(t *testing.T) {
	a, _ := wsPair(t)
	defer a.Close()
	b, _ := wsPair(t)
	defer b.Close()
	assert.NotEqual(t, a.ID(), b.ID())
}
