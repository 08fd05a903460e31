// Command server is a small example wiring streamkit's router and
// middleware onto a listening HTTP/1.1 + WebSocket server.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/brekkeio/streamcore/internal/ws"
	"github.com/brekkeio/streamcore/pkg/streamkit"
)

func main() {
	router := streamkit.NewRouter()
	router.Use(
		streamkit.Recovery(),
		streamkit.RequestID(),
		streamkit.Logger(),
		streamkit.Prometheus(),
	)

	router.GET("/", func(ctx *streamkit.Context) error {
		return ctx.String(200, "hello from streamcore")
	})

	router.GET("/hello/:name", func(ctx *streamkit.Context) error {
		return ctx.JSON(200, map[string]string{"message": "hello, " + ctx.Param("name")})
	})

	router.POST("/echo", func(ctx *streamkit.Context) error {
		return ctx.Data(200, ctx.Header("content-type"), ctx.Body())
	})

	router.GET("/ws/echo", func(ctx *streamkit.Context) error {
		return ctx.Upgrade(nil)
	})

	cfg := streamkit.DefaultConfig()
	if addr := os.Getenv("STREAMCORE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Logger = log.Default()

	server := streamkit.New(cfg, router)
	server.OnWebSocket(echoWSHandler{})

	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")
}

// echoWSHandler mirrors every received WebSocket message back to the
// sender, demonstrating the upgrade path wired through
// streamkit.Context.Upgrade.
type echoWSHandler struct{}

func (echoWSHandler) OnWSOpen(conn *streamkit.Conn)  {}
func (echoWSHandler) OnWSClose(*streamkit.Conn, int) {}
func (echoWSHandler) OnWSMessage(conn *streamkit.Conn, opcode byte, payload []byte) {
	_ = conn.Send(ws.WriteFrame(nil, opcode, payload, true))
}
