package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/valed-dm/chatroom-server/internal/config"
	"github.com/valed-dm/chatroom-server/internal/store"
)

// RunCLI handles subcommand execution. It reports whether args named a
// subcommand.
func RunCLI(args []string, configPath string, out io.Writer) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(out, "chatroom-server %s\n", Version)
		return true, nil
	case "rooms":
		return true, cliRooms(configPath, out)
	case "room":
		if len(args) < 2 {
			return true, errors.New("usage: room <id>")
		}
		return true, cliRoom(configPath, args[1], out)
	case "delete-room":
		if len(args) < 2 {
			return true, errors.New("usage: delete-room <id>")
		}
		return true, cliDeleteRoom(configPath, args[1], out)
	case "check-config":
		return true, cliCheckConfig(configPath, out)
	default:
		return false, nil
	}
}

func openCLIStore(configPath string) (*store.Store, error) {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, errors.New("database.path is not set; rooms are kept in memory only")
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func cliRooms(configPath string, out io.Writer) error {
	st, err := openCLIStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rooms, err := st.Rooms(context.Background())
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintln(out, "No rooms found.")
		return nil
	}
	for _, r := range rooms {
		fmt.Fprintf(out, "  %s  %s (max %d)\n", r.ID, r.Name, r.MaxUsers)
	}
	return nil
}

func cliRoom(configPath, id string, out io.Writer) error {
	st, err := openCLIStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.RoomByID(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ID: %s\n", r.ID)
	fmt.Fprintf(out, "Name: %s\n", r.Name)
	fmt.Fprintf(out, "Description: %s\n", r.Description)
	fmt.Fprintf(out, "Max users: %d\n", r.MaxUsers)
	fmt.Fprintf(out, "Created: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	return nil
}

// cliDeleteRoom removes a persisted room. A running server keeps the room
// in memory until it restarts.
func cliDeleteRoom(configPath, id string, out io.Writer) error {
	st, err := openCLIStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.RoomByID(ctx, id); err != nil {
		return err
	}
	if err := st.DeleteRoom(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted room %s\n", id)
	return nil
}

func cliCheckConfig(configPath string, out io.Writer) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config OK\n")
	fmt.Fprintf(out, "API: %s\n", cfg.Server.APIAddr)
	fmt.Fprintf(out, "Relay: %s\n", cfg.Server.RelayAddr)
	fmt.Fprintf(out, "TLS: %t\n", cfg.TLS.Enabled())
	fmt.Fprintf(out, "Rate limit: %d per %s (%s)\n", cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.Scope)
	if cfg.Database.Path != "" {
		fmt.Fprintf(out, "Database: %s\n", cfg.Database.Path)
	}
	return nil
}
