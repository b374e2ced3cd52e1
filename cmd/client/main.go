package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"boardcast/internal/logging"
	"boardcast/pkg/client"
	"boardcast/pkg/domain"
)

func main() {
	var (
		serverAddr = flag.String("server", "ws://localhost:3000/hubs/board", "hub websocket URL")
		token      = flag.String("token", "", "bearer token")
		boardID    = flag.String("board", "", "board to join")
		logLevel   = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *boardID == "" {
		log.Fatal("-board is required")
	}

	logger := logging.New(logging.Config{
		Level:  *logLevel,
		Format: "text",
	})

	options := client.DefaultOptions()
	options.Logger = logger
	options.Token = *token

	c := client.New(*serverAddr, options)
	setupEventHandlers(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Connect(ctx, *boardID); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer c.Disconnect()

	fmt.Printf("Joined board %s\n", *boardID)
	runInteractiveMode(c)
}

func setupEventHandlers(c *client.Client) {
	c.On(domain.MessageTypeUserJoined, func(data json.RawMessage) {
		var ev domain.UserEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("+ %s joined\n", ev.UserName)
		}
	})

	c.On(domain.MessageTypeUserLeft, func(data json.RawMessage) {
		var ev domain.UserEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("- %s left\n", ev.UserName)
		}
	})

	c.On(domain.MessageTypeUserTyping, func(data json.RawMessage) {
		var ev domain.TypingEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("... %s is typing (%s)\n", ev.UserName, ev.Context)
		}
	})

	c.On(domain.MessageTypeUserStoppedTyping, func(data json.RawMessage) {
		var ev domain.StoppedTypingEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("    %s stopped typing\n", ev.UserID)
		}
	})

	c.On(domain.MessageTypeTaskCreated, func(data json.RawMessage) {
		var task domain.Task
		if err := json.Unmarshal(data, &task); err == nil {
			fmt.Printf("[task created] %s: %s\n", task.ID, task.Title)
		}
	})

	c.On(domain.MessageTypeTaskUpdated, func(data json.RawMessage) {
		var task domain.Task
		if err := json.Unmarshal(data, &task); err == nil {
			fmt.Printf("[task updated] %s: %s\n", task.ID, task.Title)
		}
	})

	c.On(domain.MessageTypeTaskDeleted, func(data json.RawMessage) {
		var ev domain.TaskDeletedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("[task deleted] %s\n", ev.TaskID)
		}
	})

	c.On(domain.MessageTypeTaskMoved, func(data json.RawMessage) {
		var ev domain.TaskMovedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("[task moved] %s -> column %s (order %d)\n", ev.TaskID, ev.NewColumnID, ev.NewOrder)
		}
	})

	c.On(domain.MessageTypeColumnReordered, func(data json.RawMessage) {
		var ev domain.ColumnsReorderedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("[columns reordered] %d columns\n", len(ev.Columns))
		}
	})

	c.On(domain.MessageTypePong, func(data json.RawMessage) {
		var ev domain.PongEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("pong (server time %s)\n", ev.Timestamp.Format(time.RFC3339))
		}
	})

	c.On(domain.MessageTypeError, func(data json.RawMessage) {
		var ev domain.ErrorEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			fmt.Printf("error from hub: %s (%s)\n", ev.Message, ev.Code)
		}
	})
}

func runInteractiveMode(c *client.Client) {
	fmt.Println("Commands:")
	fmt.Println("  typing [context]  - Signal that you started typing")
	fmt.Println("  stop              - Signal that you stopped typing")
	fmt.Println("  ping              - Ping the hub")
	fmt.Println("  presence          - Show who is online")
	fmt.Println("  quit              - Exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		switch parts[0] {
		case "typing":
			typingContext := "board"
			if len(parts) > 1 {
				typingContext = parts[1]
			}
			if err := c.SendTyping(typingContext); err != nil {
				fmt.Printf("typing failed: %v\n", err)
			}

		case "stop":
			if err := c.StopTyping(); err != nil {
				fmt.Printf("stop failed: %v\n", err)
			}

		case "ping":
			if err := c.Ping(); err != nil {
				fmt.Printf("ping failed: %v\n", err)
			}

		case "presence":
			users := c.OnlineUsers()
			fmt.Printf("Online (%d):\n", len(users))
			for _, u := range users {
				fmt.Printf("  - %s (%s)\n", u.UserName, u.UserID)
			}

		case "quit":
			return

		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
		}
	}
}
