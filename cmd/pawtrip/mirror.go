package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMirrorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror <url>...",
		Short: "Copy remote images into the object store and print their public URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCore(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			for i, url := range c.mirror.MirrorAll(cmd.Context(), args) {
				status := "mirrored"
				if url == args[i] {
					status = "unchanged"
				}
				fmt.Printf("%s\t%s\t%s\n", args[i], status, url)
			}
			return nil
		},
	}
}
