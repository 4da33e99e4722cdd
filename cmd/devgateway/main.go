// Command devgateway is a stand-in for the WhatsApp gateway, for running the bot
// locally without a phone.
package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/logging"
)

var errNoBot = errors.New("no bot connected")

func statusFor(err error) int {
	if errors.Is(err, errNoBot) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func NewDevgatewayCommand() *cobra.Command {
	var (
		addr  string
		self  string
		token string
	)

	cmd := &cobra.Command{
		Use:   "devgateway",
		Short: "Fake WhatsApp gateway for local development",
		Args:  cobra.NoArgs,
		Example: `  devgateway --addr :8787 --self 22600000000
  curl -XPOST localhost:8787/emit -d '{"chat":"1@g.us","sender":"22611111111","text":"!ping"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New("info", "console")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			s := newServer(self, token, log.Named("devgateway"))
			log.Info("devgateway listening", zap.String("addr", addr), zap.String("self", s.self))
			srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8787", "HTTP listen address")
	cmd.Flags().StringVar(&self, "self", "22600000000", "Phone number the bot is logged in as")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token the bot must present")

	return cmd
}

func main() {
	if err := NewDevgatewayCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
