package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ringmenu-watch connects to a running ringmenud and prints its broadcasts.
// Useful for debugging renderers: it shows exactly what they receive, and
// tracks per-menu selection changes so stuck animations stand out.

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type menuFrame struct {
	Menu       string  `json:"menu"`
	Index      int     `json:"index"`
	Direction  string  `json:"direction,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Angle      float64 `json:"target_angle,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8137/ws", "ringmenud websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of the condensed view")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keepalive pings
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)

		// Last settled index per menu, to flag animations that never settle.
		lastSettled := make(map[string]int)

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				var pretty map[string]any
				if err := json.Unmarshal(message, &pretty); err == nil {
					out, _ := json.MarshalIndent(pretty, "", "  ")
					fmt.Printf("%s\n", out)
				} else {
					fmt.Printf("%s\n", message)
				}
				continue
			}

			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				fmt.Printf("[TEXT] %s\n", message)
				continue
			}
			printFrame(env, lastSettled)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printFrame(env envelope, lastSettled map[string]int) {
	switch env.Type {
	case "state_init":
		var data struct {
			Menus []struct {
				Menu         string `json:"menu"`
				ItemCount    int    `json:"item_count"`
				CurrentIndex int    `json:"current_index"`
				IsAnimating  bool   `json:"is_animating"`
			} `json:"menus"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			fmt.Printf("[STATE_INIT] %s\n", env.Data)
			return
		}
		for _, m := range data.Menus {
			fmt.Printf("[INIT] %-12s items=%d index=%d animating=%v\n",
				m.Menu, m.ItemCount, m.CurrentIndex, m.IsAnimating)
			lastSettled[m.Menu] = m.CurrentIndex
		}

	case "rotation_target":
		var f menuFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return
		}
		fmt.Printf("[ROTATE] %-12s -> index=%d dir=%s angle=%.4f dur=%dms\n",
			f.Menu, f.Index, f.Direction, f.Angle, f.DurationMs)

	case "selection_settled":
		var f menuFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return
		}
		prev, known := lastSettled[f.Menu]
		lastSettled[f.Menu] = f.Index
		if known && prev != f.Index {
			fmt.Printf("[SETTLE] %-12s index=%d (was %d)\n", f.Menu, f.Index, prev)
		} else {
			fmt.Printf("[SETTLE] %-12s index=%d\n", f.Menu, f.Index)
		}

	case "highlight_changed":
		var f menuFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return
		}
		fmt.Printf("[HILITE] %-12s index=%d\n", f.Menu, f.Index)

	case "recoverable_error":
		var f menuFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return
		}
		fmt.Printf("[REPAIR] %-12s %s\n", f.Menu, f.Reason)

	default:
		fmt.Printf("[%s] %s\n", env.Type, env.Data)
	}
}
