// ws_smoke connects to a running server, authenticates, and waits for
// delivery events. Useful for manual end-to-end checks:
//
//	go run ./scripts/ws_smoke -token "$TOKEN"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/loopchat/loopchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT obtained from /api/login")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("missing -token (login via POST /api/login first)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	hello, err := json.Marshal(proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Error != nil {
			fmt.Printf("error: code=%s msg=%s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventReady:
			fmt.Printf("ready: %s\n", string(raw))
		case proto.EventOnlineUsers:
			var payload proto.OnlineUsersPayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				fmt.Printf("online: %v\n", payload.UserIDs)
			}
		case proto.EventNewMessage:
			var payload proto.MessagePayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				fmt.Printf("raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("message: from=%d kind=%s text=%q\n", payload.SenderID, payload.Kind, payload.Text)
		case proto.EventNewGroupMessage:
			var payload proto.GroupMessagePayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				fmt.Printf("group message: from=%d text=%q\n", payload.SenderID, payload.Text)
			}
		default:
			fmt.Printf("event: %s data=%s\n", outbound.Event, string(raw))
		}
	}
}
