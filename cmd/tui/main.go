package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/humanbelnik/senryu/internal/client"
	http_round "github.com/humanbelnik/senryu/internal/delivery/http/round"
	"github.com/spf13/cobra"
)

type console struct {
	api    *client.Client
	in     *bufio.Scanner
	out    io.Writer
	roomID string
	cancel context.CancelFunc
}

func (c *console) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *console) follow(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	followCtx, cancel := context.WithCancel(ctx)
	events, err := c.api.Follow(followCtx, c.roomID)
	if err != nil {
		cancel()
		return err
	}
	c.cancel = cancel

	go func() {
		for e := range events {
			var payload struct {
				CurrentIndex int `json:"current_index"`
			}
			_ = json.Unmarshal(e.Payload, &payload)
			fmt.Fprintf(c.out, "\n[%s] slot %d\n", e.Type, payload.CurrentIndex)
		}
	}()
	return nil
}

func (c *console) enter(ctx context.Context, roomID string) error {
	if _, err := c.api.Join(ctx, roomID); err != nil {
		return err
	}
	c.roomID = roomID
	return c.follow(ctx)
}

func printPoem(out io.Writer, poem http_round.PoemDTO) {
	fmt.Fprintf(out, "phase: %s\n", poem.Phase)
	for i, line := range poem.Lines {
		fmt.Fprintf(out, "\n%d.\n", i+1)
		for _, row := range line.Rows {
			fmt.Fprintf(out, "   %s\n", row)
		}
	}
}

func (c *console) run(ctx context.Context) error {
	name, ok := c.prompt("Your name: ")
	if !ok {
		return nil
	}
	user, err := c.api.Register(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Registered as %s\n", user.ID)

	for {
		fmt.Fprintln(c.out, "\n=== Senryu ===")
		fmt.Fprintln(c.out, "1. Create room")
		fmt.Fprintln(c.out, "2. Join room")
		fmt.Fprintln(c.out, "3. Start round")
		fmt.Fprintln(c.out, "4. Write a character")
		fmt.Fprintln(c.out, "5. Show poem")
		fmt.Fprintln(c.out, "6. Leave room")
		fmt.Fprintln(c.out, "0. Quit")

		choice, ok := c.prompt("> ")
		if !ok {
			return nil
		}

		var err error
		switch choice {
		case "1":
			var roomName string
			if roomName, ok = c.prompt("Room name: "); !ok {
				return nil
			}
			room, cerr := c.api.CreateRoom(ctx, roomName)
			if cerr != nil {
				err = cerr
				break
			}
			fmt.Fprintf(c.out, "Room %s created\n", room.ID)
			err = c.enter(ctx, room.ID)
		case "2":
			var roomID string
			if roomID, ok = c.prompt("Room id: "); !ok {
				return nil
			}
			err = c.enter(ctx, roomID)
		case "3":
			_, err = c.api.StartRound(ctx, c.roomID)
		case "4":
			var character string
			if character, ok = c.prompt("Character: "); !ok {
				return nil
			}
			sub, serr := c.api.Submit(ctx, c.roomID, character)
			if serr == nil {
				fmt.Fprintf(c.out, "Written at %d, waiting for the others\n", sub.Index)
			}
			err = serr
		case "5":
			poem, perr := c.api.Poem(ctx, c.roomID)
			if perr == nil {
				printPoem(c.out, poem)
			}
			err = perr
		case "6":
			_, err = c.api.Leave(ctx, c.roomID)
		case "0":
			return nil
		default:
			fmt.Fprintln(c.out, "Unknown choice")
		}
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

func main() {
	var server string

	cmd := &cobra.Command{
		Use:   "senryu-tui",
		Short: "Console client for the senryu server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := &console{
				api: client.New(server),
				in:  bufio.NewScanner(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
			}
			defer func() {
				if c.cancel != nil {
					c.cancel()
				}
			}()
			return c.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "server base URL")
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
