package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-lynx/widget/builtin"
	"github.com/go-lynx/widget/factory"
	"github.com/go-lynx/widget/loader"
	"github.com/go-lynx/widget/plugins"
	"github.com/go-lynx/widget/validation"
)

var validateFormat string

var cmdValidate = &cobra.Command{
	Use:   "validate <manifest>...",
	Short: "Check plugin manifests without installing them",
	Long: `Parse each manifest (json, yaml, toml or hcl, or builtin:<id>) and run the
structural, security and performance checks the registry runs on admission.`,
	Example: `  widgetd validate plugins/weather.yaml plugins/todo.hcl
  widgetd validate builtin:clock --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var cmdList = &cobra.Command{
	Use:   "list [dir]...",
	Short: "List built-in widgets and the manifests found in dirs",
	RunE:  runList,
}

func init() {
	cmdValidate.Flags().StringVarP(&validateFormat, "format", "f", "table", "Output format (table/json)")
}

func newCatalog() (*factory.Catalog, error) {
	c := factory.NewCatalog()
	if err := builtin.Register(c, builtin.Sources{}); err != nil {
		return nil, err
	}
	return c, nil
}

type validateRow struct {
	Path   string             `json:"path"`
	Error  string             `json:"error,omitempty"`
	Report *validation.Report `json:"report,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	ld := loader.New(catalog, nil)
	v := validation.New(validation.DefaultOptions())

	rows := make([]validateRow, 0, len(args))
	failed := 0
	for _, path := range args {
		row := validateRow{Path: path}
		m, err := ld.LoadPlugin(path)
		if err != nil {
			row.Error = err.Error()
			failed++
		} else {
			row.Report = v.Validate(m)
			if !row.Report.Valid() {
				failed++
			}
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if validateFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return err
		}
	} else {
		printValidateTable(out, rows)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d manifests are invalid", failed, len(args))
	}
	return nil
}

func printValidateTable(out io.Writer, rows []validateRow) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "PATH\tID\tSTATUS\tSECURITY\tSCORE\tDETAILS\n")
	fmt.Fprintf(w, "----\t--\t------\t--------\t-----\t-------\n")
	for _, r := range rows {
		if r.Report == nil {
			fmt.Fprintf(w, "%s\t-\t%s\t-\t-\t%s\n", r.Path, color.RedString("unreadable"), r.Error)
			continue
		}
		status := color.GreenString("valid")
		var details []string
		if !r.Report.Valid() {
			status = color.RedString("invalid")
			for _, e := range r.Report.Structure.Errors {
				details = append(details, e.String())
			}
		}
		for _, warn := range r.Report.Structure.Warnings {
			details = append(details, color.YellowString(warn.String()))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Path, r.Report.PluginID, status, r.Report.Security.Level(), r.Report.Performance.Score,
			strings.Join(details, "; "))
	}
	_ = w.Flush()
}

func runList(cmd *cobra.Command, dirs []string) error {
	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	var manifests []*plugins.Manifest
	for _, id := range catalog.Builtins() {
		m, err := catalog.Builtin(id)
		if err != nil {
			return err
		}
		manifests = append(manifests, m)
	}
	ld := loader.New(catalog, nil)
	for _, dir := range dirs {
		for _, path := range manifestFiles(dir) {
			m, err := ld.LoadPlugin(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			manifests = append(manifests, m)
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "ID\tCATEGORY\tVERSION\tSOURCE\tDESCRIPTION\n")
	fmt.Fprintf(w, "--\t--------\t-------\t------\t-----------\n")
	for _, m := range manifests {
		desc := m.Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", color.CyanString(m.ID), m.Category, m.Version, m.Source, desc)
	}
	return w.Flush()
}

func manifestFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, ok := loader.FormatOf(path); ok {
			out = append(out, path)
		}
	}
	return out
}
