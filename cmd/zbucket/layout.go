package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zbucket/internal/domain"
	"github.com/zzenonn/zbucket/internal/placement"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show how buckets are distributed over subvolumes",
	Run: func(cmd *cobra.Command, args []string) {
		if err := printDistribution(cmd, placer); err != nil {
			fmt.Printf("Error reading layout: %v\n", err)
		}
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate [gfid...]",
	Short: "Print the bucket and subvolume that own each GFID",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			gfid, err := domain.ParseGFID(arg)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			name, _, err := placer.Place(gfid)
			if err != nil {
				fmt.Printf("Error locating %s: %v\n", gfid, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tbucket=%d\t%s\n", gfid, gfid.Bucket(), name)
		}
	},
}

var gfidCmd = &cobra.Command{
	Use:   "gfid [bucket]",
	Short: "Allocate a GFID, optionally tagged with a given bucket",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		buckets := placer.BucketCount()
		gfid := domain.RandomGFIDIn(buckets)
		if len(args) == 1 {
			bucket, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil || int(bucket) >= buckets {
				fmt.Printf("Error: bucket must be in 0..%d\n", buckets-1)
				return
			}
			gfid = domain.NewGFID(uint16(bucket))
		}
		fmt.Fprintln(cmd.OutOrStdout(), gfid)
	},
}

// printDistribution renders the number of buckets owned by each subvolume,
// in registration order.
func printDistribution(cmd *cobra.Command, p *placement.BucketPlacer) error {
	dist, err := p.Distribution()
	if err != nil {
		return err
	}
	l := p.Layout()

	names := p.ListBuckets()

	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"#", "Subvolume", "Buckets", "Share"})
	out.SetAutoWrapText(false)
	for i, n := range names {
		share := float64(dist[n]) / float64(l.Len()) * 100
		out.Append([]string{
			strconv.Itoa(i),
			n,
			strconv.Itoa(dist[n]),
			fmt.Sprintf("%.2f%%", share),
		})
	}
	out.SetFooter([]string{"", l.Type(), strconv.Itoa(l.Len()), ""})
	out.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(gfidCmd)
}
