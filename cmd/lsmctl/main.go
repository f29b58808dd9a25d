// Command lsmctl is a small CLI wrapper around the engine, exercising the
// Photo demo record schema: open a database, put/get/delete single
// records, seed demo data, and force a compaction pass.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChinmayNoob/lsmkv/codec"
	"github.com/ChinmayNoob/lsmkv/config"
	"github.com/ChinmayNoob/lsmkv/engine"
	"github.com/ChinmayNoob/lsmkv/record"
)

var cfgPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lsmctl",
		Short: "Inspect and drive an lsmkv database storing Photo records",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "lsmkv.yaml", "path to the database's YAML config file")

	root.AddCommand(newOpenCmd(), newPutCmd(), newGetCmd(), newDelCmd(), newSeedCmd(), newCompactCmd())
	return root
}

func openEngine() (*engine.Engine[record.Photo], *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.Open[record.Photo](cfg, codec.PhotoCodec{}, logger.Sugar())
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return e, logger, nil
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the database and report whether it opened",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()
			fmt.Println("ok: database opened")
			return nil
		},
	}
}

func newPutCmd() *cobra.Command {
	var url, thumb string
	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Insert or overwrite a Photo record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()
			p := record.Photo{ID: args[0], URL: url, ThumbnailURL: thumb}
			if err := e.Insert(p); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "photo URL")
	cmd.Flags().StringVar(&thumb, "thumbnail-url", "", "thumbnail URL")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Look up a Photo record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()
			v, err := e.Get(args[0])
			if err != nil {
				return err
			}
			if !v.Present {
				fmt.Println("(not found)")
				os.Exit(1)
			}
			fmt.Printf("%s %s %s\n", v.Value.ID, v.Value.URL, v.Value.ThumbnailURL)
			return nil
		},
	}
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <id>",
		Short: "Delete a Photo record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()
			if err := e.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Force a compaction pass over any tier above threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()
			if err := e.Compact(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
