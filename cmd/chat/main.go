// Terminal chat client for the relay, the command-line counterpart of the
// embeddable widget. It keeps the conversation the same way the widget
// does: the relay's end event replaces the local history wholesale.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chatbot-relay/pkg/client"
	"chatbot-relay/pkg/models"
)

type chatHandler struct {
	conversation models.ConversationHistory
	thinking     bool
}

func (h *chatHandler) OnThinking() {
	h.thinking = true
	fmt.Print(".")
}

func (h *chatHandler) OnChunk(content string) {
	if h.thinking {
		fmt.Print("\n")
		h.thinking = false
	}
	fmt.Print(content)
}

func (h *chatHandler) OnEnd(conversation models.ConversationHistory) {
	h.conversation = conversation
	fmt.Println()
}

func (h *chatHandler) OnError(err error) {
	if h.thinking {
		fmt.Print("\n")
		h.thinking = false
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func settingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatbot-relay.json"
	}
	return filepath.Join(home, ".chatbot-relay.json")
}

func main() {
	var (
		relayURL string
		token    string
		model    string
	)

	rootCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a chatbot relay from the terminal",
	}
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "http://localhost:3000", "Base URL of the relay")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer credential issued for the widget")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model override for this session")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the relay's backend offers",
		Run: func(cmd *cobra.Command, args []string) {
			c := client.New(relayURL, client.WithToken(token))
			list, err := c.Models(cmd.Context())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, m := range list {
				fmt.Printf("%s\t%s\n", m.ID, m.Name)
			}
		},
	}

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Start an interactive chat session",
		Run: func(cmd *cobra.Command, args []string) {
			store := &client.FileStore{Path: settingsPath()}
			stored, err := store.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: ignoring saved settings: %v\n", err)
			}

			// The credential claim outranks saved and flag-provided
			// settings; claim-sourced choices are never written back.
			var claim *models.AccessClaim
			if token != "" {
				claim, err = client.DecodeClaim(token)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: invalid token: %v\n", err)
					os.Exit(1)
				}
			}
			settings := client.ResolveSettings(claim, stored, &client.Settings{Model: model})
			if claim == nil && model != "" {
				if err := client.PersistLocal(store, claim, settings); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: could not save settings: %v\n", err)
				}
			}

			c := client.New(relayURL, client.WithToken(token))
			handler := &chatHandler{}
			scanner := bufio.NewScanner(os.Stdin)

			fmt.Println("Starting chat session (type 'exit' to quit)")
			fmt.Println("----------------------------------------")

			for {
				fmt.Print("\nYou: ")
				if !scanner.Scan() {
					break
				}

				input := strings.TrimSpace(scanner.Text())
				if input == "exit" {
					break
				}
				if input == "" {
					continue
				}

				req := models.ChatRequest{
					Message:      input,
					Conversation: handler.conversation,
					Model:        settings.Model,
				}

				fmt.Print("\nBot: ")
				if err := c.Stream(context.Background(), req, handler); err != nil {
					continue
				}
			}
		},
	}

	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(sessionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
