package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"collabedit/config"
	"collabedit/internal/api"
	"collabedit/internal/client"
)

func initConfig() (*config.Client, error) {
	cfg := &config.Client{}
	v := viper.New()
	v.SetConfigName("clientConfig")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetDefault("server.url", "http://localhost:8080")
	hostname, _ := os.Hostname()
	v.SetDefault("node.id", hostname)
	v.SetDefault("reconnect.delay_seconds", 3)
	v.SetDefault("cursor.threshold", client.DefaultCursorThreshold)
	v.SetDefault("cursor.interval_ms", 200)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// wsURL derives the websocket endpoint from the HTTP base URL.
func wsURL(base, nodeID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("node", nodeID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	endpoint, err := wsURL(cfg.Server.URL, cfg.Node.ID)
	if err != nil {
		log.Fatalf("bad server url: %v", err)
	}

	docs := api.NewClient(cfg.Server.URL, cfg.Node.ID)
	conn := client.NewEditorConn(endpoint)
	conn.SetReconnectDelay(time.Duration(cfg.Reconnect.DelaySeconds) * time.Second)
	editor := client.NewEditor(docs, conn, cfg.Node.ID)
	editor.SetCursorDebounce(cfg.Cursor.Threshold, time.Duration(cfg.Cursor.IntervalMS)*time.Millisecond)

	ctx := context.Background()
	editor.Initialize(ctx)
	defer editor.Shutdown()

	fmt.Println("commands: list | create <title> | open <id> | invite <node> | type <text> | del <n> | cursor <pos> | show | close | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch cmd {
		case "list":
			editor.FetchDocuments(ctx)
			for _, doc := range editor.Snapshot().Documents {
				fmt.Printf("%s  %q  host=%s\n", doc.ID, doc.Title, doc.Host)
			}
		case "create":
			editor.CreateDocument(ctx, arg)
		case "open":
			editor.OpenDocument(ctx, arg)
		case "invite":
			editor.SendInvite(ctx, arg)
		case "type":
			doc := editor.Session().Document()
			if doc == nil {
				fmt.Println("no document open")
				continue
			}
			editor.HandleTextChange(len([]rune(doc.Content)), 0, arg)
		case "del":
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				fmt.Println("usage: del <n>")
				continue
			}
			content := []rune(editor.Session().Content())
			pos := len(content) - n
			if pos < 0 {
				pos, n = 0, len(content)
			}
			editor.HandleTextChange(pos, n, "")
		case "cursor":
			pos, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("usage: cursor <pos>")
				continue
			}
			editor.HandleCursorMove(pos)
		case "show":
			printState(editor)
		case "close":
			editor.CloseDocument()
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
		if msg := editor.Err(); msg != "" {
			fmt.Printf("error: %s\n", msg)
			editor.ClearError()
		}
	}
}

func printState(editor *client.Editor) {
	state := editor.Snapshot()
	fmt.Printf("connected: %v\n", state.WSConnected)
	if state.Document == nil {
		fmt.Println("no document open")
		return
	}
	fmt.Printf("document: %s %q\n", state.Document.ID, state.Document.Title)
	fmt.Printf("content: %q\n", state.Document.Content)
	for user, p := range state.Participants {
		fmt.Printf("participant: %s (%s)\n", user, p.Color)
	}
	for user, cur := range state.Cursors {
		fmt.Printf("cursor: %s @ %d\n", user, cur.Position)
	}
	for _, member := range editor.Session().OfflineMembers() {
		fmt.Printf("offline: %s\n", member)
	}
	if len(state.PendingInvites) > 0 {
		fmt.Printf("pending invites: %v\n", state.PendingInvites)
	}
}
