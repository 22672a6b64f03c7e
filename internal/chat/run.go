package chat

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"SQLChat/internal/config"
)

// Run starts the interactive loop, reading questions and commands from
// stdin until /quit or EOF.
func (a *App) Run() error {
	fmt.Println("=== SQLChat ===")
	fmt.Println("Ask questions about your database in plain language.")
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()
	a.printEmptyStateHint()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			text, shouldQuit, err := a.handleCommand(input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				a.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			if text == "" {
				continue
			}
			input = text // suggestion shortcut expands to a normal send
		}

		reply, sent := a.Send(ctx, input)
		if !sent {
			continue
		}
		fmt.Println(a.renderer.Assistant(reply))
		fmt.Println()
	}

	fmt.Println("Goodbye!")
	return nil
}

// handleCommand handles slash commands. It returns text to send when the
// command expands to a fixed prompt, and whether the loop should exit.
func (a *App) handleCommand(cmd string) (string, bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return "", false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return "", true, nil

	case "/new":
		sess := a.sessions.Create()
		fmt.Printf("Started new session %d\n", sess.ID)
		a.printEmptyStateHint()
		return "", false, nil

	case "/sessions":
		fmt.Println(a.renderer.SessionList(a.sessions.Sessions(), a.sessions.ActiveID()))
		return "", false, nil

	case "/switch":
		if len(parts) < 2 {
			return "", false, fmt.Errorf("usage: /switch <session-id>")
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return "", false, fmt.Errorf("invalid session id: %s", parts[1])
		}
		a.sessions.Select(id)
		active := a.sessions.Active()
		fmt.Printf("Active session: %d (%s)\n", active.ID, active.Title)
		if len(active.Messages) == 0 {
			a.printEmptyStateHint()
		}
		return "", false, nil

	case "/delete":
		id := a.sessions.ActiveID()
		if len(parts) > 1 {
			parsed, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return "", false, fmt.Errorf("invalid session id: %s", parts[1])
			}
			id = parsed
		}
		a.sessions.Delete(id)
		fmt.Printf("Deleted session %d, active is now %d\n", id, a.sessions.ActiveID())
		return "", false, nil

	case "/config":
		cfg := a.Config()
		fmt.Printf("database_url: %s\n", cfg.DatabaseURL)
		fmt.Printf("api_key:      %s\n", maskKey(cfg.APIKey))
		fmt.Printf("provider:     %s\n", cfg.Provider)
		fmt.Printf("sql_mode:     %s\n", cfg.SQLMode)
		return "", false, nil

	case "/set":
		if len(parts) < 3 {
			return "", false, fmt.Errorf("usage: /set <database_url|api_key|provider|sql_mode> <value>")
		}
		field := parts[1]
		value := strings.Join(parts[2:], " ")
		if err := validateField(field, value); err != nil {
			return "", false, err
		}
		if err := a.SetConfigField(field, value); err != nil {
			return "", false, err
		}
		fmt.Printf("Set %s\n", field)
		return "", false, nil

	case "/schema":
		return SuggestionSchema, false, nil

	case "/users":
		return SuggestionUsers, false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit           - Exit")
		fmt.Println("  /new                   - Start a new chat session")
		fmt.Println("  /sessions              - List sessions (most recent first)")
		fmt.Println("  /switch <id>           - Switch to a session")
		fmt.Println("  /delete [id]           - Delete a session (default: active)")
		fmt.Println("  /config                - Show current settings")
		fmt.Println("  /set <field> <value>   - Change a setting (database_url|api_key|provider|sql_mode)")
		fmt.Println("  /schema                - Ask for the table schema")
		fmt.Println("  /users                 - Ask for the top 5 users")
		fmt.Println("  /help                  - Show this help message")
		return "", false, nil

	default:
		return "", false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (a *App) printEmptyStateHint() {
	fmt.Println(a.renderer.Hint(fmt.Sprintf("Try /schema (%q) or /users (%q)", SuggestionSchema, SuggestionUsers)))
}

// validateField rejects obviously wrong enum values at the command surface.
// The config store itself accepts anything.
func validateField(field, value string) error {
	switch field {
	case "database_url", "api_key":
		return nil
	case "provider":
		if value != config.ProviderGemini && value != config.ProviderGroq {
			return fmt.Errorf("provider must be %s or %s", config.ProviderGemini, config.ProviderGroq)
		}
		return nil
	case "sql_mode":
		switch value {
		case config.SQLModeReadOnly, config.SQLModeWriteNoDelete, config.SQLModeWriteFull:
			return nil
		}
		return fmt.Errorf("sql_mode must be %s, %s or %s",
			config.SQLModeReadOnly, config.SQLModeWriteNoDelete, config.SQLModeWriteFull)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
