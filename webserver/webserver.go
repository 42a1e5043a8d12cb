package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/dh1tw/pcmPlayer/events"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// PlaybackProvider is the interface the web monitor needs from the
// playback pipeline. It is implemented by player.Player. Volume changes
// are not applied directly but published on the event bus.
type PlaybackProvider interface {
	BufferSize() int
	SecondsPlayed() float32
	Volume() float32
}

// WebServer provides a small web interface for monitoring and
// controlling the playback pipeline: a REST API for volume and playback
// state and a websocket on which state updates are pushed.
type WebServer struct {
	sync.RWMutex
	address        string
	port           int
	router         *mux.Router
	server         *http.Server
	player         PlaybackProvider
	events         *pubsub.PubSub
	wsClients      map[*wsClient]bool
	addWsClient    chan *wsClient
	removeWsClient chan *wsClient
	playbackState  string
}

// StatusMsg is the JSON message pushed to websocket clients. Only the
// fields which changed are set.
type StatusMsg struct {
	State         *string  `json:"state,omitempty"`
	BufferSize    *int     `json:"bufferSize,omitempty"`
	SecondsPlayed *float32 `json:"secondsPlayed,omitempty"`
	Volume        *float32 `json:"volume,omitempty"`
	Underrun      *int64   `json:"underrun,omitempty"`
	FormatChange  *string  `json:"formatChange,omitempty"`
}

// NewWebServer returns a web monitor for the given playback pipeline.
func NewWebServer(address string, port int, player PlaybackProvider, evPS *pubsub.PubSub) (*WebServer, error) {

	if player == nil {
		return nil, fmt.Errorf("webserver: no playback provider")
	}
	if evPS == nil {
		return nil, fmt.Errorf("webserver: no event bus")
	}

	web := &WebServer{
		address:        address,
		port:           port,
		router:         mux.NewRouter().StrictSlash(true),
		player:         player,
		events:         evPS,
		wsClients:      make(map[*wsClient]bool),
		addWsClient:    make(chan *wsClient),
		removeWsClient: make(chan *wsClient),
		playbackState:  "initial",
	}

	web.routes()

	return web, nil
}

// Start launches the event loop and serves the web interface. Start
// blocks until a Shutdown event is published on the event bus; it is
// typically called in its own goroutine.
func (web *WebServer) Start() {

	serverURL := fmt.Sprintf("%s:%d", web.address, web.port)

	web.Lock()
	web.server = &http.Server{Addr: serverURL, Handler: web.router}
	web.Unlock()

	go web.eventLoop()

	log.Println("webserver listening on", serverURL)

	if err := web.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("webserver:", err)
	}
}

// eventLoop distributes playback events and periodic status updates to
// the connected websocket clients.
func (web *WebServer) eventLoop() {

	stateCh := web.events.Sub(events.PlaybackState)
	underrunCh := web.events.Sub(events.PlaybackUnderrun)
	formatCh := web.events.Sub(events.FormatChange)
	shutdownCh := web.events.Sub(events.Shutdown)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-shutdownCh:
			web.shutdown()
			return

		case ev := <-stateCh:
			state := ev.(string)
			web.Lock()
			web.playbackState = state
			web.Unlock()
			web.broadcast(StatusMsg{State: &state})

		case ev := <-underrunCh:
			ts := ev.(int64)
			web.broadcast(StatusMsg{Underrun: &ts})

		case ev := <-formatCh:
			change := ev.(string)
			web.broadcast(StatusMsg{FormatChange: &change})

		case <-ticker.C:
			bufSize := web.player.BufferSize()
			played := web.player.SecondsPlayed()
			web.broadcast(StatusMsg{BufferSize: &bufSize, SecondsPlayed: &played})

		case client := <-web.addWsClient:
			log.Println("WebSocket connected")
			web.Lock()
			web.wsClients[client] = true
			web.Unlock()

		case client := <-web.removeWsClient:
			log.Println("WebSocket disconnected")
			web.Lock()
			if _, ok := web.wsClients[client]; ok {
				delete(web.wsClients, client)
				close(client.send)
			}
			web.Unlock()
		}
	}
}

// shutdown disconnects the websocket clients and stops the http server.
func (web *WebServer) shutdown() {
	web.Lock()
	for client := range web.wsClients {
		delete(web.wsClients, client)
		close(client.send)
	}
	server := web.server
	web.Unlock()

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Println("webserver:", err)
	}
}

func (web *WebServer) broadcast(msg StatusMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Println("webserver:", err)
		return
	}

	web.Lock()
	defer web.Unlock()
	for client := range web.wsClients {
		select {
		case client.send <- data:
		default: // slow client; drop the update
		}
	}
}

type wsClient struct {
	ws             *websocket.Conn
	send           chan []byte
	removeWsClient chan<- *wsClient
}

func (c *wsClient) write() {
	defer c.ws.Close()

	for message := range c.send {
		c.ws.WriteMessage(websocket.TextMessage, message)
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *wsClient) read(web *WebServer) {
	defer func() {
		c.removeWsClient <- c
		c.ws.Close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		web.handleClientMsg(data)
	}
}

// ClientMessage is the JSON message websocket clients may send.
type ClientMessage struct {
	SetVolume *float32 `json:"volume,omitempty"`
}

func (web *WebServer) handleClientMsg(data []byte) {
	msg := ClientMessage{}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Println("webserver: unable to unmarshal ClientMessage", string(data))
		return
	}

	if msg.SetVolume != nil {
		web.events.Pub(*msg.SetVolume, events.SetVolume)
		web.broadcast(StatusMsg{Volume: msg.SetVolume})
	}
}
