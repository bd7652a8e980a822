package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/1ureka.net.chat/internal/chat"
	"github.com/1ureka/1ureka.net.chat/internal/client"
	"github.com/1ureka/1ureka.net.chat/internal/config"
	"github.com/1ureka/1ureka.net.chat/internal/util"
)

var (
	joinServerURL  string
	joinRoomID     string
	joinName       string
	joinCreateRoom bool
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a chat room as a participant",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ServerURL:   joinServerURL,
			DisplayName: joinName,
		})
		if err != nil {
			return err
		}
		return runJoin(cmd.Context(), cfg)
	},
}

func init() {
	joinCmd.Flags().StringVarP(&joinServerURL, "server", "s", "", "relay server URL (default "+config.DefaultServerURL+")")
	joinCmd.Flags().StringVarP(&joinRoomID, "room", "r", "", "room id to join")
	joinCmd.Flags().StringVarP(&joinName, "name", "n", "", "display name shown to other participants")
	joinCmd.Flags().BoolVar(&joinCreateRoom, "create", false, "create a new room instead of joining an existing one")
}

func runJoin(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	pterm.Info.Printfln("Meshchat — v%s", version)
	pterm.Println()

	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = askDisplayName()
	}

	roomID := joinRoomID
	switch {
	case joinCreateRoom:
		id, err := client.CreateRoom(ctx, cfg.ServerURL)
		if err != nil {
			return err
		}
		roomID = id
		pterm.Success.Printfln("created room %s", roomID)
		pterm.Println()
	case roomID == "":
		roomID = askRoomID()
	}

	session := client.NewSession(cfg.WebSocketURL, displayName, cfg.STUNServers, &terminalEvents{})
	if err := session.Join(ctx, roomID); err != nil {
		return err
	}
	defer session.Leave()

	util.StartStatsReporter(ctx)
	util.LogInfo("joined room %s as %s — type a message and press Enter, Ctrl+C to leave", roomID, displayName)

	lines := readLines()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return errors.New("connection to relay lost")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := session.Send(line); err != nil {
				if errors.Is(err, chat.ErrEmptyBody) {
					continue
				}
				util.LogWarning("send failed: %v", err)
			}
		}
	}
}

// readLines streams stdin lines. The channel closes on EOF.
func readLines() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

// terminalEvents renders session events for the interactive CLI.
type terminalEvents struct{}

func (terminalEvents) OnMessage(m chat.Message) {
	name := m.DisplayName
	if m.Local {
		name = "you"
	}
	pterm.Printfln("%s %s  %s",
		pterm.Gray(m.SentAt.Local().Format("15:04:05")),
		pterm.Cyan(name+":"),
		m.Body)
}

func (terminalEvents) OnParticipant(ev chat.ParticipantEvent) {
	if ev.Joined {
		util.LogInfo("%s joined the room", ev.DisplayName)
		return
	}
	util.LogInfo("%s left the room", ev.DisplayName)
}

func (terminalEvents) OnConnectionState(state string) {
	util.LogDebug("connection state: %s", state)
}

func (terminalEvents) OnFailure(reason string) {
	util.LogWarning("%s", reason)
}

func askDisplayName() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Display name").
			Show()

		name := strings.TrimSpace(raw)
		if name != "" {
			pterm.Println()
			return name
		}

		util.LogWarning("display name must not be empty")
		pterm.Println()
	}
}

func askRoomID() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room id to join").
			Show()

		id := strings.TrimSpace(raw)
		if id != "" {
			pterm.Println()
			return id
		}

		util.LogWarning("room id must not be empty")
		pterm.Println()
	}
}
