// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"laptudirm.com/x/kibitz/pkg/config"
)

// settings is filled in before any subcommand runs.
type settings struct {
	file   string
	config config.Config
}

func Root() *cobra.Command {
	s := &settings{}

	root := &cobra.Command{
		Use:  "kibitz",
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotenv(); err != nil {
				return err
			}

			cfg, err := config.Load(s.file)
			if err != nil {
				return err
			}

			level, _ := cfg.Level()
			logrus.SetLevel(level)

			// If --trace flag is provided, set logging level to Trace.
			if cmd.Flag("trace").Changed {
				logrus.SetLevel(logrus.TraceLevel)
			}

			s.config = cfg
			logrus.WithField("file", s.file).Trace("Configuration loaded")
			return nil
		},
	}

	// global flags
	root.PersistentFlags().BoolP("help", "h", false, "Show Help Information")
	root.PersistentFlags().BoolP("version", "v", false, "Show Kibitz's Version")
	root.PersistentFlags().BoolP("trace", "t", false, "Show Trace Information")
	root.PersistentFlags().StringVarP(&s.file, "config", "c", config.File, "Path to the Config File")

	versionStr := "v0.1.0\n"
	root.SetVersionTemplate(versionStr)
	root.Version = versionStr

	// Register the various commands.
	root.AddCommand(Serve(s))
	root.AddCommand(Peer(s))

	return root
}
