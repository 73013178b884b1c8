package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zbucket/internal/domain"
	"github.com/zzenonn/zbucket/internal/service"
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Store whole objects on the subvolume that owns their GFID",
}

var rawPutCmd = &cobra.Command{
	Use:   "put [file-path] [gfid]",
	Short: "Upload a file as a single object, under a new or given GFID",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		file, err := os.Open(args[0])
		if err != nil {
			fmt.Printf("Error opening file: %v\n", err)
			return
		}
		defer file.Close()

		svc := service.NewRawObjectService(placer)
		ctx := context.Background()

		var gfid domain.GFID
		if len(args) == 2 {
			gfid, err = domain.ParseGFID(args[1])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			err = svc.PutRawAt(ctx, gfid, file)
		} else {
			gfid, err = svc.PutRaw(ctx, file)
		}
		if err != nil {
			fmt.Printf("Error uploading file: %v\n", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), gfid)
	},
}

var rawGetCmd = &cobra.Command{
	Use:   "get [gfid] [output-path]",
	Short: "Download a raw object",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		gfid, err := domain.ParseGFID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		rc, err := service.NewRawObjectService(placer).GetRaw(context.Background(), gfid)
		if err != nil {
			fmt.Printf("Error downloading file: %v\n", err)
			return
		}
		defer rc.Close()

		out, err := os.Create(args[1])
		if err != nil {
			fmt.Printf("Error creating file: %v\n", err)
			return
		}
		defer out.Close()

		if _, err := io.Copy(out, rc); err != nil {
			fmt.Printf("Error writing file: %v\n", err)
		}
	},
}

var rawDeleteCmd = &cobra.Command{
	Use:   "delete [gfid]",
	Short: "Delete a raw object",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gfid, err := domain.ParseGFID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := service.NewRawObjectService(placer).DeleteRaw(context.Background(), gfid); err != nil {
			fmt.Printf("Error deleting file: %v\n", err)
		}
	},
}

var rawPurgeCmd = &cobra.Command{
	Use:   "purge [bucket]",
	Short: "Delete every object stored in a bucket",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			fmt.Printf("Error: invalid bucket %q\n", args[0])
			return
		}
		if err := service.NewRawObjectService(placer).PurgeBucket(context.Background(), uint16(bucket)); err != nil {
			fmt.Printf("Error purging bucket: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bucket %d purged\n", bucket)
	},
}

func init() {
	rawCmd.AddCommand(rawPutCmd)
	rawCmd.AddCommand(rawGetCmd)
	rawCmd.AddCommand(rawDeleteCmd)
	rawCmd.AddCommand(rawPurgeCmd)
	rootCmd.AddCommand(rawCmd)
}
