package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"burstq/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run internal dummy target server",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		port, _ := cmd.Flags().GetInt("port")
		srv := dummy.Start(dummy.ServerConfig{Port: port}, log.Named("dummy"))

		<-cmd.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
}
