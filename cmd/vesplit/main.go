/*
 * Copyright 2023 Vesplit Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/engine"
	"github.com/vesplit/vesplit/epoch"
	"github.com/vesplit/vesplit/server"
	"github.com/vesplit/vesplit/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vesplit",
		Short:        "vote-escrow decomposition engine",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), inspectCmd())
	return root
}

func addLogFlags(flags *pflag.FlagSet, defaultLevel string) {
	flags.String("log_level", defaultLevel, "console log level")
	flags.String("log_file", "", "rotating log file path")
}

func setupLogger(vc *viper.Viper) (log.Logger, error) {
	logger := log.GlobalLogger()
	if lv, ok := log.ParseLevel(vc.GetString("log_level")); ok {
		logger.SetConsoleLevel(lv)
	}
	if filename := vc.GetString("log_file"); filename != "" {
		writer, err := log.NewWriter(&log.WriterConfig{
			Filename: filename,
			Compress: true,
		})
		if err != nil {
			return nil, err
		}
		if err := logger.SetFileWriter(writer); err != nil {
			return nil, err
		}
	}
	return logger, nil
}

func serveCmd() *cobra.Command {
	vc := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the query server against a dev-mode engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := setupLogger(vc)
			if err != nil {
				return err
			}

			genesis := vc.GetInt64("genesis")
			if genesis == 0 {
				// align genesis to the current week boundary
				now := time.Now().Unix()
				genesis = now - now%epoch.Week
			}
			cfg := engine.DefaultConfig(genesis)
			if err := cfg.Seal(); err != nil {
				return err
			}
			eng, err := engine.New(cfg, &common.GoTimeClock{},
				newSimEscrow(), &simRouter{log: logger},
				newSimVault(logger), simOracle{}, logger)
			if err != nil {
				return err
			}

			var st *store.Store
			if path := vc.GetString("store_path"); path != "" {
				if st, err = store.Open(path, logger); err != nil {
					return err
				}
				defer st.Close()
			}
			srv := server.New(eng, st, vc.GetString("listen"), logger)

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if st != nil {
				interval := vc.GetDuration("snapshot_interval")
				g.Go(func() error {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return nil
						case <-ticker.C:
							if err := st.PutSnapshot(eng.Snapshot()); err != nil {
								logger.Warnf("snapshot write failed: %v", err)
							}
						}
					}
				})
			}
			return g.Wait()
		},
	}
	flags := cmd.Flags()
	flags.String("listen", "127.0.0.1:9080", "query server listen address")
	flags.String("store_path", "", "snapshot store directory (disabled when empty)")
	flags.Int64("genesis", 0, "genesis unix timestamp (0 aligns to the current week)")
	flags.Duration("snapshot_interval", time.Hour, "snapshot write interval")
	addLogFlags(flags, "info")
	vc.SetEnvPrefix("vesplit")
	vc.AutomaticEnv()
	_ = vc.BindPFlags(flags)
	return cmd
}

func inspectCmd() *cobra.Command {
	vc := viper.New()
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "print stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := setupLogger(vc)
			if err != nil {
				return err
			}
			st, err := store.Open(vc.GetString("store_path"), logger)
			if err != nil {
				return err
			}
			defer st.Close()

			var out interface{}
			if vc.GetBool("all") {
				if out, err = st.Snapshots(vc.GetInt("limit")); err != nil {
					return err
				}
			} else {
				if out, err = st.LatestSnapshot(); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	flags := cmd.Flags()
	flags.String("store_path", "", "snapshot store directory")
	flags.Bool("all", false, "print every stored snapshot")
	flags.Int("limit", 0, "cap the number of snapshots printed (0 = all)")
	addLogFlags(flags, "warn")
	_ = cmd.MarkFlagRequired("store_path")
	vc.SetEnvPrefix("vesplit")
	vc.AutomaticEnv()
	_ = vc.BindPFlags(flags)
	return cmd
}
