package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		addr   string
		events []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print panel events from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := url.Parse(addr)
			if err != nil {
				return fmt.Errorf("parse address: %w", err)
			}
			switch u.Scheme {
			case "http":
				u.Scheme = "ws"
			case "https":
				u.Scheme = "wss"
			}
			if u.Path == "" || u.Path == "/" {
				u.Path = "/ws"
			}
			if len(events) > 0 {
				q := u.Query()
				q.Set("events", strings.Join(events, ","))
				u.RawQuery = q.Encode()
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", u, err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				conn.Close()
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", u)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return err
				}
				var ev struct {
					Event string          `json:"event"`
					Data  json.RawMessage `json:"data"`
					Time  time.Time       `json:"time"`
				}
				if err := json.Unmarshal(data, &ev); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-22s %s\n", ev.Time.Format("15:04:05"), ev.Event, ev.Data)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:5001/ws", "server websocket address")
	cmd.Flags().StringSliceVar(&events, "events", nil, "only print these events (default all)")
	return cmd
}
