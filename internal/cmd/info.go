package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wii-tools/wiivol"
)

func init() {
	infoCmd.Flags().AddFlagSet(&processFlags)
	rootCmd.AddCommand(infoCmd)
}

type partitionInfo struct {
	Offset       wiivol.Hex64 `json:"offset"`
	TitleID      wiivol.Hex64 `json:"title_id"`
	TitleVersion int          `json:"title_version"`
	IsGame       bool         `json:"is_game"`
}

type volumeInfo struct {
	File          string          `json:"file"`
	Passthrough   bool            `json:"passthrough"`
	GamePartition *wiivol.Hex64   `json:"game_partition,omitempty"`
	Partitions    []partitionInfo `json:"partitions"`
}

var infoCmd = &cobra.Command{
	Use:   "info [image...]",
	Short: "Show partition-table and ticket/TMD information for Wii disc images",
	Long:  "Show partition-table and ticket/TMD information for Wii disc images given as arguments",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		processImages(args, func(filename string, vol *wiivol.Volume) interface{} {
			info := volumeInfo{
				File:        filename,
				Passthrough: vol.IsPassthrough(),
			}

			if game := vol.GamePartition(); !game.IsNone() {
				offset := wiivol.Hex64(game.Offset())
				info.GamePartition = &offset
			}

			for _, partition := range vol.Partitions() {
				ticket := vol.Ticket(partition)
				tmd := vol.TMD(partition)
				info.Partitions = append(info.Partitions, partitionInfo{
					Offset:       wiivol.Hex64(partition.Offset()),
					TitleID:      wiivol.Hex64(ticket.TitleID()),
					TitleVersion: int(tmd.TitleVersion()),
					IsGame:       partition == vol.GamePartition(),
				})
			}

			return info
		})
	},
}
