package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapocsf/internal/cli/output"
	"github.com/leapstack-labs/leapocsf/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the embedded OCSF schema",
		Long: `Inspect the OCSF knowledge base that transformer output is validated
against. The version is taken from the ocsf_version setting.`,
	}
	cmd.AddCommand(newSchemaListCommand())
	cmd.AddCommand(newSchemaShowCommand())
	cmd.AddCommand(newSchemaShapesCommand())
	cmd.AddCommand(newSchemaJSONSchemaCommand())
	cmd.AddCommand(newSchemaVersionsCommand())
	return cmd
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the event classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			classes := model.EventClasses()
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(classes)
			}

			r.Header(1, fmt.Sprintf("OCSF %s event classes (%d)", model.Version(), len(classes)))
			rows := make([][]string, len(classes))
			for i, ec := range classes {
				schemaMark := ""
				if _, err := model.Category(ec.Name); err == nil {
					schemaMark = "yes"
				}
				rows[i] = []string{ec.Name, strconv.Itoa(ec.UID), schemaMark, ec.Description}
			}
			r.Table([]string{"NAME", "UID", "SCHEMA", "DESCRIPTION"}, rows)
			return nil
		},
	}
}

func newSchemaShowCommand() *cobra.Command {
	var requiredOnly bool

	cmd := &cobra.Command{
		Use:               "show <category>",
		Short:             "Show the fields of a category",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeCategoryArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}
			cat, err := model.Category(args[0])
			if err != nil {
				return err
			}

			fields := cat.Fields
			if requiredOnly {
				fields = cat.RequiredFields()
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(fields)
			}
			r.Header(1, cat.Name)
			r.Table(fieldHeaders, fieldRows(fields))
			return nil
		},
	}

	cmd.Flags().BoolVar(&requiredOnly, "required", false, "Only show required fields")
	return cmd
}

func newSchemaShapesCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "shapes <category>",
		Short:             "Show every shape a category references, directly or transitively",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeCategoryArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}
			cat, err := model.Category(args[0])
			if err != nil {
				return err
			}

			shapes := model.ResolveReferencedShapes(cat)
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(shapes)
			}

			r.Header(1, fmt.Sprintf("Shapes referenced by %s (%d)", cat.Name, len(shapes)))
			for _, s := range shapes {
				r.Header(2, s.Name)
				r.Table(fieldHeaders, fieldRows(s.Fields))
			}
			return nil
		},
	}
}

func newSchemaJSONSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "jsonschema <category>",
		Short:             "Print the JSON Schema of a category",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeCategoryArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			model, err := cmdCtx.Model()
			if err != nil {
				return err
			}
			cat, err := model.Category(args[0])
			if err != nil {
				return err
			}
			// Always JSON, whatever the output mode.
			return cmdCtx.Renderer.JSON(model.JSONSchema(cat))
		},
	}
}

func newSchemaVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the embedded OCSF versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			versions := schema.Versions()
			if cmdCtx.Renderer.EffectiveMode() == output.ModeJSON {
				return cmdCtx.Renderer.JSON(versions)
			}
			for _, v := range versions {
				marker := ""
				if v == cmdCtx.Cfg.OCSFVersion {
					marker = " (active)"
				}
				cmdCtx.Renderer.Printf("%s%s\n", v, marker)
			}
			return nil
		},
	}
}

var fieldHeaders = []string{"FIELD", "TYPE", "REQUIREMENT", "DESCRIPTION"}

func fieldRows(fields []*schema.Field) [][]string {
	rows := make([][]string, len(fields))
	for i, f := range fields {
		typ := f.DataType
		if len(f.Enum) > 0 {
			vals := make([]string, len(f.Enum))
			for j, e := range f.Enum {
				vals[j] = e.Value
			}
			typ += " {" + strings.Join(vals, ", ") + "}"
		}
		rows[i] = []string{f.Name, typ, string(f.Requirement), f.Description}
	}
	return rows
}

func completeCategoryArg(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeCategories(cmd, args, toComplete)
}
