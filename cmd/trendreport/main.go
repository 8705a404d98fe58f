package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	trendreport "github.com/ArayainWood/TrendSiam-sub009"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "trendreport: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trendreport",
		Short:         "Render the TrendSiam weekly trending-story report as PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("font-dir", "fonts", "directory holding the manifest's font files")
	pf.String("manifest", "fonts/manifest.json", "path to the known-good font manifest")
	pf.Bool("vector", true, "enable the in-process vector engine")
	pf.Bool("chromium", false, "enable the sandboxed Chromium engine")
	pf.Int("split", 0, "percent of traffic routed to the Chromium engine (0-100)")
	pf.Duration("timeout", trendreport.DefaultRequestTimeout, "overall render timeout incl. fallback")
	pf.Duration("fonts-ready-timeout", trendreport.DefaultFontsReadyTimeout, "Chromium fonts-ready wait")
	pf.String("chromium-path", "", "Chromium binary override")
	pf.String("config", "", "optional config file")

	viper.SetEnvPrefix("TRENDREPORT")
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(pf))

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cf := viper.GetString("config"); cf != "" {
			viper.SetConfigFile(cf)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		}
		return nil
	}

	root.AddCommand(renderCmd(), probeCmd(), verifyCmd())
	return root
}

func pipelineConfig() *trendreport.Config {
	cfg := trendreport.DefaultConfig()
	cfg.FontDir = viper.GetString("font-dir")
	cfg.ManifestPath = viper.GetString("manifest")
	cfg.VectorEnabled = viper.GetBool("vector")
	cfg.ChromiumEnabled = viper.GetBool("chromium")
	cfg.Split = viper.GetInt("split")
	cfg.RequestTimeout = viper.GetDuration("timeout")
	cfg.Chromium.FontsReadyTimeout = viper.GetDuration("fonts-ready-timeout")
	cfg.Chromium.ExecPath = viper.GetString("chromium-path")
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	return cfg
}

func renderCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <records.json>",
		Short: "Render a ranked records file to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var records []trendreport.StoryRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse records: %w", err)
			}

			pipe, err := trendreport.NewPipeline(pipelineConfig())
			if err != nil {
				return err
			}
			defer pipe.Close()

			res, err := pipe.RenderReport(cmd.Context(), records)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(res.Meta)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "report.pdf", "output PDF path")
	return cmd
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <vector|chromium>",
		Short: "Health-check one engine with a fixed short render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, err := trendreport.NewPipeline(pipelineConfig())
			if err != nil {
				return err
			}
			defer pipe.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, probeErr := pipe.Probe(ctx, trendreport.EngineID(args[0]))
			if res != nil {
				if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
					return err
				}
			}
			return probeErr
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run the shaping and selection regression battery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, err := trendreport.NewPipeline(pipelineConfig())
			if err != nil {
				return err
			}
			defer pipe.Close()

			reports, err := pipe.Verify(cmd.Context())
			if err != nil {
				return err
			}
			failed := false
			for _, rep := range reports {
				status := "PASS"
				if !rep.Passed {
					status = "FAIL"
					failed = true
				}
				fmt.Printf("%s  %s  (%d bytes)\n", status, rep.Engine, rep.Bytes)
				for _, f := range rep.Findings {
					fmt.Printf("  - %s\n", f)
				}
				for _, n := range rep.Notes {
					fmt.Printf("  note: %s\n", n)
				}
			}
			if failed {
				return fmt.Errorf("verification battery failed")
			}
			return nil
		},
	}
}
