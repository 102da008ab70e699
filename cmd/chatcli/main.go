package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"deepview/backend/internal/model"
	"deepview/backend/internal/stream"
)

// chatcli is a terminal client for the chat endpoint. It drives the same
// streaming session and transcript types a graphical frontend would, which
// makes it a convenient end-to-end probe for the SSE contract.
func main() {
	endpoint := flag.String("endpoint", "http://localhost:8000/api/v1/chat", "chat endpoint URL")
	mode := flag.String("mode", model.ModeFormal, "conversation mode (formal or developer)")
	conversationID := flag.String("conversation", "", "conversation id to attach the exchange to")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := &stream.Session{
		Endpoint:       *endpoint,
		APIKey:         os.Getenv("DEEPVIEW_API_KEY"),
		ConversationID: *conversationID,
	}
	var transcript stream.Transcript

	fmt.Println("deepview chat — type a message, /quit to exit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		transcript.Append(model.Message{Role: model.RoleUser, Content: line})
		runExchange(ctx, session, &transcript, *mode)
		fmt.Println()

		if ctx.Err() != nil {
			break
		}
	}
}

func runExchange(ctx context.Context, session *stream.Session, transcript *stream.Transcript, mode string) {
	var state stream.State

	render := func() {
		transcript.UpsertAssistant(state)
	}

	session.Send(ctx, transcript.Messages, mode, stream.Callbacks{
		OnDelta: func(text string) {
			state.Content += text
			fmt.Print(text)
			render()
		},
		OnImages: func(urls []string) {
			state.Images = urls
			for _, u := range urls {
				fmt.Printf("\n[image] %s\n", u)
			}
			render()
		},
		OnVideos: func(urls []string) {
			state.Videos = urls
			for _, u := range urls {
				fmt.Printf("\n[video] %s\n", u)
			}
			render()
		},
		OnProgress: func(percent int) {
			fmt.Printf("\rGenerating video... %d%%", percent)
		},
		OnDone: func() {
			render()
		},
		OnError: func(message string) {
			fmt.Printf("\n%s\n", message)
		},
	})
}
