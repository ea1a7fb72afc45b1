package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"minichat/config"
	"minichat/internal/chat"
	"minichat/internal/domain"
	"minichat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	client := chat.New(cfg, l)
	defer client.Close()

	client.OnUpdate(func() {
		msgs := client.Messages()
		if len(msgs) == 0 {
			return
		}
		printMessage(msgs[0])
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		l.Warnf("live channel unavailable, continuing with history only: %v", err)
	}

	rooms, err := client.RefreshRooms(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load rooms: %v\n", err)
		os.Exit(1)
	}
	printRooms(rooms)

	fmt.Println("Commands: /rooms, /join <id>, /leave, /quit. Anything else is sent to the active room.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/rooms":
			rooms, err := client.RefreshRooms(ctx)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			printRooms(rooms)
		case line == "/leave":
			client.LeaveRoom()
			fmt.Println("left room")
		case strings.HasPrefix(line, "/join "):
			roomID := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			messages, err := client.SelectRoom(ctx, roomID)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			fmt.Printf("-- room %s (%s, %d messages) --\n", roomID, client.ConnectionState(), len(messages))
			for i := len(messages) - 1; i >= 0; i-- {
				printMessage(messages[i])
			}
		default:
			if _, err := client.Send(ctx, line); err != nil {
				fmt.Printf("! send failed: %v\n", err)
			}
		}
	}
}

func printRooms(rooms []domain.ChatRoom) {
	if len(rooms) == 0 {
		fmt.Println("no rooms")
		return
	}
	for _, r := range rooms {
		label := "group"
		if r.Type == domain.ChatDirect {
			label = "1:1"
		}
		line := fmt.Sprintf("#%s [%s]", r.ChatID, label)
		if r.LastMessagePreview != "" {
			line += " " + r.LastMessagePreview
		}
		if r.UnreadCount > 0 {
			line += fmt.Sprintf(" (%d unread)", r.UnreadCount)
		}
		fmt.Println(line)
	}
}

func printMessage(m domain.Message) {
	marker := ""
	if !m.Settled() {
		marker = " (sending)"
		if m.Failed {
			marker = " (failed)"
		}
	}
	fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderID, m.Content, marker)
}
