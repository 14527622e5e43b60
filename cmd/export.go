package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/sheet"
)

// cliUser acts for the operator running commands. It is a superuser that
// no host user can collide with.
var cliUser = model.User{ID: -1, DisplayName: "airquality-cli", IsSuperuser: true}

var (
	exportFormat string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every measurement to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := sheet.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		path, err := runExport(ctx, env.Service(), format, exportDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// runExport writes the export into dir under its dated name and returns
// the path.
func runExport(ctx context.Context, svc *airquality.Service, format sheet.Format, dir string) (string, error) {
	exp, err := svc.Export(ctx, cliUser, format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, exp.Filename)
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return "", eris.Wrapf(err, "write export %s", path)
	}
	return path, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", string(sheet.FormatCSV), "file format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "directory to write the file to")
	rootCmd.AddCommand(exportCmd)
}
