package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/netchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	netID := flag.Int64("net", 1, "net id to join and post to")
	userID := flag.Int64("user", 1, "user id to send as")
	token := flag.String("token", "", "JWT passed as ?token= when the server requires it")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := fmt.Sprintf("%s/ws/nets/%d", *base, *netID)
	if *token != "" {
		target += "?token=" + url.QueryEscape(*token)
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	typing := map[string]any{"command": proto.CommandTyping, "user_id": *userID}
	if err := wsjson.Write(ctx, conn, typing); err != nil {
		return fmt.Errorf("send typing: %w", err)
	}
	chat := map[string]any{"user_id": *userID, "net_id": *netID, "message": *text}
	if err := wsjson.Write(ctx, conn, chat); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	for {
		var frame map[string]json.RawMessage
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		raw, _ := json.Marshal(frame)
		fmt.Printf("received: %s\n", raw)

		if errRaw, ok := frame["error"]; ok {
			return fmt.Errorf("server rejected frame: %s", errRaw)
		}
		if _, ok := frame["username"]; ok {
			if _, isImage := frame["image_url"]; !isImage {
				fmt.Println("chat round trip ok")
				return nil
			}
		}
	}
}
