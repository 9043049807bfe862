// Package camera provides commands to register, list and delete cameras.
package camera

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

// entry is the displayed form of a camera
type entry struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Command creates and returns the camera command
func Command(rt *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Manage cameras",
	}
	cmd.AddCommand(addCommand(rt), listCommand(rt), deleteCommand(rt))
	return cmd
}

func addCommand(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> [name]",
		Short: "Register a camera, or rename an existing one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			camera := &datastore.Camera{ID: args[0], Name: args[0]}
			if len(args) == 2 {
				camera.Name = args[1]
			}
			if err := rt.Store.SaveCamera(cmd.Context(), camera); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %s saved\n", camera.ID)
			return nil
		},
	}
}

func listCommand(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered cameras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cameras, err := rt.Store.ListCameras(cmd.Context())
			if err != nil {
				return err
			}

			entries := make([]entry, 0, len(cameras))
			for i := range cameras {
				entries = append(entries, entry{
					ID:        cameras[i].ID,
					Name:      cameras[i].Name,
					CreatedAt: cameras[i].CreatedAt.UTC(),
				})
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(entries)
		},
	}
}

func deleteCommand(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a camera and all of its baselines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.Store.DeleteCamera(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %s deleted\n", args[0])
			return nil
		},
	}
}
