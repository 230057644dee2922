package stats

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/ValentinKolb/mcbs/cmd/util"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the STAT output of a server",
	Long:  `Connect to a memcached server, send STAT and print every reported key value pair. With --key only the given stats group is requested.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := util.Connect()
		if err != nil {
			return err
		}
		defer c.Close()

		pairs, err := c.Stats(viper.GetString("key"))
		if err != nil {
			return err
		}
		if viper.GetBool("sort") {
			sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
		}
		return printPairs(os.Stdout, pairs)
	},
}

func init() {
	util.SetupClientFlags(StatsCmd)

	key := "key"
	StatsCmd.Flags().String(key, "", util.WrapString("The stats group to request (empty = general stats)"))

	key = "sort"
	StatsCmd.Flags().Bool(key, false, util.WrapString("Sort the output by key"))
}

// printPairs writes the pairs as an aligned two column table
func printPairs(w io.Writer, pairs []protocol.StatPair) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", p.Key, p.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}
