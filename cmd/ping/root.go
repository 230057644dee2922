package ping

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/mcbs/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the round trip time to a server",
	Long:  `Connect to a memcached server and send NOOP requests. The round trip time of every request is printed, followed by a summary.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		count := viper.GetInt("count")
		if count <= 0 {
			return fmt.Errorf("count must be positive, got %d", count)
		}

		c, err := util.Connect()
		if err != nil {
			return err
		}
		defer c.Close()

		version, err := c.Version()
		if err != nil {
			return err
		}
		fmt.Printf("PING %s (version %s)\n", viper.GetString("endpoint"), version)

		var total, best, worst time.Duration
		for i := 0; i < count; i++ {
			start := time.Now()
			if err := c.Noop(); err != nil {
				return err
			}
			rtt := time.Since(start)
			fmt.Printf("noop %d: time=%s\n", i+1, rtt)

			total += rtt
			if i == 0 || rtt < best {
				best = rtt
			}
			if rtt > worst {
				worst = rtt
			}
		}

		fmt.Printf("%d requests, min/avg/max = %s/%s/%s\n", count, best, total/time.Duration(count), worst)
		return c.Quit()
	},
}

func init() {
	util.SetupClientFlags(PingCmd)

	key := "count"
	PingCmd.Flags().Int(key, 4, util.WrapString("Number of NOOP requests to send"))
}
