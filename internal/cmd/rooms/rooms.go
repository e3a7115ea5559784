// Package rooms implements the one-shot commands: listing the rooms and setting a room's target temperature.
package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/internal/configuration"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/discovery"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"strconv"
)

var (
	format string

	Cmd = cobra.Command{
		Use:   "rooms",
		Short: "Show the rooms and their temperature",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configuration.Load(viper.GetViper())
			if err != nil {
				return err
			}
			e, err := newEncoder(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			return ShowRooms(cmd.Context(), newClient(cfg), e)
		},
	}

	SetCmd = cobra.Command{
		Use:   "set <room-id> <celsius>",
		Short: "Set the target temperature of a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid room id %q: %w", args[0], err)
			}
			temperature, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid temperature %q: %w", args[1], err)
			}
			cfg, err := configuration.Load(viper.GetViper())
			if err != nil {
				return err
			}
			state, err := SetTarget(cmd.Context(), newClient(cfg), roomID, temperature, slog.Default())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: target temperature set to %.1fºC\n", state.Name, *state.Target)
			return err
		},
	}
)

func init() {
	Cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml, json)")
}

func newClient(cfg configuration.Configuration) *adax.Client {
	return adax.New(
		cfg.Credentials(),
		adax.WithURL(cfg.Adax.URL),
		adax.WithTimeout(cfg.Adax.Timeout),
		adax.WithLogger(slog.Default().With("component", "adax")),
	)
}

type Encoder interface {
	Encode(any) error
}

func newEncoder(w io.Writer, format string) (Encoder, error) {
	switch format {
	case "yaml":
		return yaml.NewEncoder(w), nil
	case "json":
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e, nil
	default:
		return nil, fmt.Errorf("invalid format %q", format)
	}
}

type entry struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Target      *float64 `yaml:"target,omitempty" json:"target,omitempty"`
}

type RoomLister interface {
	ListRooms(context.Context) ([]adax.Room, error)
}

// ShowRooms lists the rooms and writes them to e.
func ShowRooms(ctx context.Context, c RoomLister, e Encoder) error {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return err
	}
	r := make([]entry, len(rooms))
	for i, room := range rooms {
		r[i] = entry{ID: room.ID, Name: room.GetName()}
		if current, ok := room.CurrentCelsius(); ok {
			r[i].Temperature = &current
		}
		if target, ok := room.TargetCelsius(); ok {
			r[i].Target = &target
		}
	}
	return e.Encode(r)
}

// ErrInvalidRoomID indicates a room id that can't identify a room. Adax room ids are positive.
var ErrInvalidRoomID = errors.New("invalid room id")

// SetTarget sets the target temperature of the room with the provided id.
func SetTarget(ctx context.Context, c device.RoomService, roomID int, temperature float64, logger *slog.Logger) (device.State, error) {
	// discovery treats room id 0 as "all rooms"
	if roomID <= 0 {
		return device.State{}, fmt.Errorf("%w: %d", ErrInvalidRoomID, roomID)
	}
	devices, err := discovery.Discover(ctx, c, discovery.Filter{RoomID: roomID}, nil, logger)
	if err != nil {
		return device.State{}, err
	}
	if err = devices[0].SetTarget(ctx, &temperature); err != nil {
		return device.State{}, err
	}
	return devices[0].State(), nil
}
