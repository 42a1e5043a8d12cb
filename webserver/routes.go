package webserver

func (web *WebServer) routes() {
	web.router.HandleFunc("/api/v1.0/player/volume", web.volumeHdlr)
	web.router.HandleFunc("/api/v1.0/player/state", web.stateHdlr).Methods("GET")
	web.router.HandleFunc("/ws", web.webSocketHdlr)
}
