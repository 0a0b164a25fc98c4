package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/concord-assembly/concord/src/api/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browsers hit this from arbitrary origins; auth lives in the event flow
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Socket upgrades presence connections and pumps inbound frames into the
// session registry.
type Socket struct{ reg *session.Registry }

func NewSocket(reg *session.Registry) Socket { return Socket{reg: reg} }

func (s Socket) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("session: upgrade: %v", err)
		return
	}

	connection := s.reg.Connect(c.Query("room"), conn)
	defer s.reg.Disconnect(connection)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.reg.HandleEvent(connection, raw)
	}
}
