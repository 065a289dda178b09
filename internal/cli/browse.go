package cli

import (
	"github.com/spf13/cobra"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/internal/utils"
)

// open resolves ref and returns its live driver
func (a *app) open(cmd *cobra.Command, ref string) (driver.Driver, error) {
	cfg, err := a.resolveConfig(ref)
	if err != nil {
		return nil, err
	}
	a.logger.Debugf("Opening %s (%s)", cfg.Name, cfg.DBType)
	return a.manager.OpenConnection(cmd.Context(), cfg.ID)
}

func newSchemasCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas <connection>",
		Short: "List the schemas (databases) of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			schemas, err := drv.ListSchemas(cmd.Context())
			if err != nil {
				return err
			}
			utils.RenderSchemas(a.out(cmd), schemas)
			return nil
		},
	}
}

func newTablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <connection> <schema>",
		Short: "List tables and views of a schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			tables, err := drv.ListTables(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			utils.RenderTables(a.out(cmd), tables)
			return nil
		},
	}
}

func newColumnsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <connection> <schema> <table>",
		Short: "Describe the columns of a table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			columns, err := drv.GetTableColumns(cmd.Context(), args[1], args[2])
			if err != nil {
				return err
			}
			utils.RenderColumns(a.out(cmd), columns)
			return nil
		},
	}
}

func newDataCommand(a *app) *cobra.Command {
	var offset, limit uint64

	cmd := &cobra.Command{
		Use:   "data <connection> <schema> <table>",
		Short: "Show one page of rows from a table",
		Example: `  dbsight data prod shop orders
  dbsight data prod shop orders --offset 200 --limit 50`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.settings.PageSize
			}
			drv, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			page, err := drv.FetchTableData(cmd.Context(), args[1], args[2], offset, limit)
			if err != nil {
				return err
			}
			utils.RenderPage(a.out(cmd), page, offset)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "Rows to show (default page-size)")
	return cmd
}
