package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"strideminder/internal/aggregate"
	"strideminder/internal/config"
	"strideminder/internal/db"
	"strideminder/internal/export"
)

func openDB() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.Connect(cfg)
}

func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage devices",
	}

	var (
		name string
		key  string
		meta map[string]string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a device and print its bearer key",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := openDB()
			if err != nil {
				return err
			}
			if key == "" {
				key = uuid.NewString()
			}
			attrs := make(map[string]any, len(meta))
			for k, v := range meta {
				attrs[k] = v
			}
			dev, err := db.CreateDevice(gdb, name, key, attrs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device %d (%s)\nkey: %s\n", dev.ID, dev.Name, key)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "device name")
	add.Flags().StringVar(&key, "key", "", "bearer key (generated when empty)")
	add.Flags().StringToStringVar(&meta, "meta", nil, "metadata key=value pairs")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
		start  int64
		end    int64
	)
	cmd := &cobra.Command{
		Use:   "export <raw|hourly|daily|monthly>",
		Short: "Write a gait series as CSV or Parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := aggregate.ParseGranularity(args[0])
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			gdb, err := openDB()
			if err != nil {
				return err
			}

			records, err := db.NewStore(gdb).Query(cmd.Context(), g, start, end)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return export.Write(w, f, g, records)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or parquet")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().Int64Var(&start, "start", 0, "range start in unix milliseconds")
	cmd.Flags().Int64Var(&end, "end", 1<<62, "range end in unix milliseconds")
	return cmd
}
