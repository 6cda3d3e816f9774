package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"laptudirm.com/x/kibitz/pkg/command"
	"laptudirm.com/x/kibitz/pkg/config"
	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/transport"
)

// kibitz serve
func Serve(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [ -s | -p port | -w address ]",
		Short: "Serve a game to a controlling program",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`serve hosts a single game of chess which is played by sending
			it commands, one per line. The commands are:

			  move m1 m2 ...  make the moves, all or none of them
			  status          print the result and the position's FEN
			  new             start a new game
			  exit            stop serving

			Moves may be given in coordinate notation (e2e4, e7e8q) or in
			standard algebraic notation (Nf3, exd5, O-O). Every command is
			answered with one line, like "OK 2" or "BAD_MOVE zz99".

			Commands are read from the standard input unless a TCP port
			or a WebSocket address is given, either as a flag or in the
			config file. Only one controller is served.`),

		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := open(cmd, s.config)
			if err != nil {
				return err
			}
			defer lines.Close()

			d := command.NewDispatcher(game.New())
			return command.Serve(cmd.Context(), lines, d)
		},
	}

	cmd.Flags().BoolP("stdio", "s", false, "Serve on the standard input and output")
	cmd.Flags().IntP("port", "p", 0, "Serve on this TCP port")
	cmd.Flags().StringP("websocket", "w", "", "Serve over WebSocket on this address")
	cmd.MarkFlagsMutuallyExclusive("stdio", "port", "websocket")

	return cmd
}

// websocketPath is where controllers connecting over WebSocket upgrade.
const websocketPath = "/"

// open connects to the controller over the transport chosen by the flags,
// falling back to the one chosen by the config.
func open(cmd *cobra.Command, cfg config.Config) (transport.Lines, error) {
	flags := cmd.Flags()

	port, address := cfg.Port, cfg.WebSocket
	switch {
	case flags.Changed("stdio"):
		port, address = 0, ""
	case flags.Changed("port"):
		port, _ = flags.GetInt("port")
		if err := config.ValidPort(port); err != nil {
			return nil, err
		}
	case flags.Changed("websocket"):
		port = 0
		address, _ = flags.GetString("websocket")
	}

	ctx := cmd.Context()
	switch {
	case port != 0:
		return transport.ListenTCP(ctx, fmt.Sprintf(":%d", port))
	case address != "":
		logrus.WithField("address", address).Info("Waiting for a WebSocket controller")
		return transport.ListenWebSocket(ctx, address, websocketPath)
	default:
		return transport.Stdio(cmd.InOrStdin(), cmd.OutOrStdout()), nil
	}
}
