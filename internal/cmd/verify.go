package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wii-tools/wiivol"
)

func init() {
	verifyCmd.Flags().AddFlagSet(&processFlags)
	rootCmd.AddCommand(verifyCmd)
}

type partitionVerdict struct {
	Offset wiivol.Hex64 `json:"offset"`
	OK     bool         `json:"ok"`
}

type verifyResult struct {
	File       string             `json:"file"`
	Partitions []partitionVerdict `json:"partitions"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify <image> [partition-offset...]",
	Short: "Check the cluster-hash integrity of partitions in a Wii disc image",
	Long:  "Decrypt and SHA-1-verify every cluster of the named partitions (or all of them, if none are named) in a disc image",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runVerify(args[0], args[1:])
	},
}

func runVerify(imagePath string, partitionArgs []string) {
	blob, err := wiivol.NewFileBlobReader(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open disc image: %v\n", err)
		os.Exit(2)
	}
	defer blob.Close()

	vol := wiivol.Open(blob)

	partitions, err := resolvePartitions(vol, partitionArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	result := verifyResult{File: imagePath}
	allOK := true
	for _, partition := range partitions {
		ok := vol.CheckIntegrity(partition)
		if !ok {
			allOK = false
		}
		result.Partitions = append(result.Partitions, partitionVerdict{
			Offset: wiivol.Hex64(partition.Offset()),
			OK:     ok,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)
	encoder.Encode(result)

	if !allOK {
		os.Exit(1)
	}
}

// resolvePartitions turns the verify command's partition-offset
// arguments (decimal or 0x-prefixed hex) into Partitions. With no arguments,
// it returns every partition the volume discovered.
func resolvePartitions(vol *wiivol.Volume, args []string) ([]wiivol.Partition, error) {
	if len(args) == 0 {
		return vol.Partitions(), nil
	}

	partitions := make([]wiivol.Partition, 0, len(args))
	for _, arg := range args {
		offset, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid partition offset %q: %w", arg, err)
		}
		partitions = append(partitions, wiivol.NewPartition(offset))
	}
	return partitions, nil
}
