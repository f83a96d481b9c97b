package internal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Room is one broadcast group: the set of clients subscribed to a room
// key. Membership is mutex-guarded so a broadcast sees a stable set.
type Room struct {
	key     string
	mutex   sync.RWMutex
	clients map[*Client]bool
}

func newRoom(key string) *Room {
	return &Room{
		key:     key,
		clients: make(map[*Client]bool),
	}
}

func (room *Room) size() int {
	room.mutex.RLock()
	defer room.mutex.RUnlock()
	return len(room.clients)
}

func (room *Room) join(client *Client) {
	room.mutex.Lock()
	room.clients[client] = true
	room.mutex.Unlock()
}

func (room *Room) leave(client *Client) {
	room.mutex.Lock()
	delete(room.clients, client)
	room.mutex.Unlock()
}

// broadcast fans a frame out to every client in the room. If a client's
// send buffer is full we drop it from the group rather than let it apply
// backpressure; its pumps clean up once the closed channel is observed.
func (room *Room) broadcast(payload []byte) {
	room.broadcastExcept(nil, payload)
}

// broadcastExcept delivers to every client in the room other than skip.
func (room *Room) broadcastExcept(skip *Client, payload []byte) {
	if payload == nil {
		return
	}
	room.mutex.Lock()
	for client := range room.clients {
		if client == skip {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// this client is too slow to read; cut it loose to keep the room healthy.
			client.closeSend()
			delete(room.clients, client)
		}
	}
	room.mutex.Unlock()
}

// Client wraps a single websocket connection and a buffered send queue.
// The connection ID is the registry key; room is nil until the first
// join_room event lands.
type Client struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	room         *Room
	sendOnce     sync.Once
	messageTimes []time.Time
}

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 8192
	rateLimitWindow = 3 * time.Second
	rateLimitBurst  = 5
)

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, 256),
		messageTimes: make([]time.Time, 0, rateLimitBurst),
	}
}

// enqueue queues a frame for this client only, dropping it if the buffer
// is full. Used for the welcome message and rate-limit notices.
func (client *Client) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// closeSend is safe to call from both the broadcast path and the
// disconnect path; only the first call closes the channel.
func (client *Client) closeSend() {
	client.sendOnce.Do(func() { close(client.send) })
}

func (client *Client) readPump(server *Server) {
	defer func() {
		server.HandleDisconnect(client)
		client.conn.Close()
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// normal close or read error; the deferred cleanup handles the rest.
			break
		}
		var frame envelope
		if err := json.Unmarshal(payload, &frame); err != nil {
			// malformed frames are dropped, never answered.
			continue
		}
		switch frame.Event {
		case eventJoinRoom:
			server.HandleJoin(client, frame.Data)
		case eventChatMessage:
			server.HandleChat(client, frame.Data)
		default:
			// unknown events degrade to a silent no-op.
		}
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// chat rate limit, sliding window per client

func (client *Client) allowMessage(now time.Time) bool {
	cutoff := now.Add(-rateLimitWindow)
	idx := 0
	for _, ts := range client.messageTimes {
		if ts.After(cutoff) {
			client.messageTimes[idx] = ts
			idx++
		}
	}
	client.messageTimes = client.messageTimes[:idx]
	if len(client.messageTimes) >= rateLimitBurst {
		return false
	}
	client.messageTimes = append(client.messageTimes, now)
	return true
}

func (client *Client) notifyRateLimit() {
	notice := FormatMessage(BotName, nil, "You're sending messages too quickly. Please wait a moment and try again.")
	client.enqueue(encodeMessageEvent(notice))
}
