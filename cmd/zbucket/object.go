package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zbucket/internal/domain"
	"github.com/zzenonn/zbucket/internal/service"
)

var putCmd = &cobra.Command{
	Use:   "put [file-path] [name]",
	Short: "Erasure-code a file and store its shards on their subvolumes",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		filePath := args[0]
		name := filepath.Base(filePath)
		if len(args) == 2 {
			name = args[1]
		}

		file, err := os.Open(filePath)
		if err != nil {
			fmt.Printf("Error opening file: %v\n", err)
			return
		}
		defer file.Close()

		svc, err := newObjectService()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		gfid, err := svc.Put(context.Background(), name, file, cfg.DataShards, cfg.ParityShards)
		if err != nil {
			fmt.Printf("Error uploading file: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "File uploaded successfully: %s -> %s\n", filePath, gfid)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [gfid] [output-path]",
	Short: "Fetch and reconstruct an object",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		gfid, err := domain.ParseGFID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		outputPath := args[1]

		svc, err := newObjectService()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		data, meta, err := svc.Get(context.Background(), gfid)
		if err != nil {
			fmt.Printf("Error downloading file: %v\n", err)
			return
		}

		// If output path is a directory, use the stored object name
		if stat, err := os.Stat(outputPath); err == nil && stat.IsDir() {
			outputPath = filepath.Join(outputPath, filepath.Base(meta.Name))
		}

		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Printf("Error creating output directory: %v\n", err)
			return
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Printf("Error writing file: %v\n", err)
			return
		}

		fmt.Fprintf(cmd.OutOrStdout(), "File downloaded successfully: %s -> %s\n", gfid, outputPath)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [gfid]",
	Short: "Delete an object and all of its shards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gfid, err := domain.ParseGFID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		svc, err := newObjectService()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if err := svc.Delete(context.Background(), gfid); err != nil {
			fmt.Printf("Error deleting file: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "File deleted successfully: %s\n", gfid)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored objects",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := newObjectService()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		objects, err := svc.List(context.Background())
		if err != nil {
			fmt.Printf("Error listing objects: %v\n", err)
			return
		}
		printObjects(cmd, objects)
	},
}

func printObjects(cmd *cobra.Command, objects []domain.ObjectMetadata) {
	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"GFID", "Name", "Size", "Shards", "Subvolumes"})
	out.SetAutoWrapText(false)
	for _, o := range objects {
		seen := make(map[string]struct{})
		for _, s := range o.Shards {
			seen[s.Subvolume] = struct{}{}
		}
		out.Append([]string{
			o.GFID,
			o.Name,
			fmt.Sprintf("%d", o.OriginalSize),
			fmt.Sprintf("%d+%d", o.DataShards(), o.ParityShards),
			fmt.Sprintf("%d", len(seen)),
		})
	}
	out.Render()
}

// shardsCmd shows where each shard of an object would be routed.
var shardsCmd = &cobra.Command{
	Use:   "shards [gfid]",
	Short: "Show where the shards of an object are placed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gfid, err := domain.ParseGFID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		out := tablewriter.NewWriter(cmd.OutOrStdout())
		out.SetHeader([]string{"Shard", "GFID", "Bucket", "Subvolume"})
		count, _ := cmd.Flags().GetInt("count")
		for i := 0; i < count; i++ {
			shardID := service.ShardGFID(gfid, i, placer.BucketCount())
			name, _, err := placer.Place(shardID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			out.Append([]string{fmt.Sprintf("%d", i), shardID.String(), fmt.Sprintf("%d", shardID.Bucket()), name})
		}
		out.Render()
	},
}

func init() {
	shardsCmd.Flags().Int("count", 6, "Number of shards to show")
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(shardsCmd)
}
