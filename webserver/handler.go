package webserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dh1tw/pcmPlayer/events"
)

// AudioControlVolume is the JSON message for getting / setting the
// output volume (in percent).
type AudioControlVolume struct {
	Volume *int `json:"volume"`
}

// PlaybackStateMsg is the JSON message describing the current state of
// the playback pipeline.
type PlaybackStateMsg struct {
	State         string  `json:"state"`
	BufferSize    int     `json:"bufferSize"`
	SecondsPlayed float32 `json:"secondsPlayed"`
	Volume        int     `json:"volume"`
}

func (web *WebServer) webSocketHdlr(w http.ResponseWriter, req *http.Request) {

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		http.NotFound(w, req)
		log.Printf("unable to open ws for %v\n", req.RemoteAddr)
		return
	}

	wsClient := &wsClient{
		ws:             conn,
		send:           make(chan []byte, 10),
		removeWsClient: web.removeWsClient,
	}

	go wsClient.write()
	go wsClient.read(web)

	web.addWsClient <- wsClient
}

func (web *WebServer) stateHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	web.RLock()
	state := web.playbackState
	web.RUnlock()

	msg := PlaybackStateMsg{
		State:         state,
		BufferSize:    web.player.BufferSize(),
		SecondsPlayed: web.player.SecondsPlayed(),
		Volume:        int(web.player.Volume() * 100),
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode PlaybackState msg"))
	}
}

func (web *WebServer) volumeHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		vol := int(web.player.Volume() * 100)
		volCtlMsg := &AudioControlVolume{
			Volume: &vol,
		}
		if err := json.NewEncoder(w).Encode(volCtlMsg); err != nil {
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 - unable to encode AudioControlVolume msg"))
		}

	case "PUT":
		var volCtlMsg AudioControlVolume
		dec := json.NewDecoder(req.Body)

		if err := dec.Decode(&volCtlMsg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("400 - invalid JSON"))
			return
		}
		if volCtlMsg.Volume == nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("400 - invalid Request"))
			return
		}
		volume := float32(*volCtlMsg.Volume) / 100
		web.events.Pub(volume, events.SetVolume)
		web.broadcast(StatusMsg{Volume: &volume})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
