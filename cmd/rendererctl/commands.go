package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aquasecurity/table"
	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/inspector"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types [asset]",
		Short: "List the feature types, or the ones an asset can still take",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl := table.New(cmd.OutOrStdout())
			tbl.SetBorders(false)
			tbl.SetHeaders("Type", "Menu", "Single", "Description")

			allowed := map[string]bool{}
			if len(args) == 1 {
				model, err := a.ws.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				items, err := model.AvailableTypes()
				if err != nil {
					return err
				}
				for _, item := range items {
					allowed[item.Type] = true
				}
			}
			for _, info := range a.ws.registry.Types() {
				if len(args) == 1 && !allowed[info.Name] {
					continue
				}
				tbl.AddRow(info.Name, rdata.MenuName(info), strconv.FormatBool(info.DisallowMultiple), info.Description)
			}
			tbl.Render()
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <asset>",
		Short: "Create an empty renderer asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := a.ws.store.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Created %s (%s)", asset.Name, a.ws.store.Path(asset.Name))
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [asset]",
		Short: "List assets, or the features of one asset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listAssets(cmd)
			}
			model, err := a.ws.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tbl := table.New(cmd.OutOrStdout())
			tbl.SetBorders(false)
			tbl.SetHeaders("#", "ID", "Name", "Type", "Active")
			for _, entry := range model.Entries() {
				if !entry.Resolved() {
					tbl.AddRow(strconv.Itoa(entry.Index), fmt.Sprint(entry.ID), rdata.MissingFeatureTitle, "-", "-")
					continue
				}
				tbl.AddRow(strconv.Itoa(entry.Index), fmt.Sprint(entry.ID), entry.Name(), entry.Type(), strconv.FormatBool(entry.Active()))
			}
			tbl.Render()
			if !model.Aligned() {
				warn(cmd.OutOrStdout(), "identifier list is misaligned, run repair")
			}
			return nil
		},
	}
}

func (a *app) listAssets(cmd *cobra.Command) error {
	names, err := a.ws.store.List()
	if err != nil {
		return err
	}
	tbl := table.New(cmd.OutOrStdout())
	tbl.SetBorders(false)
	tbl.SetHeaders("Asset", "Features", "Path")
	for _, name := range names {
		asset, err := a.ws.store.Load(cmd.Context(), name)
		if err != nil {
			return err
		}
		tbl.AddRow(name, strconv.Itoa(len(asset.Features)), a.ws.store.Path(name))
	}
	tbl.Render()
	return nil
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <asset> <type>",
		Short: "Append a feature of the given type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.ws.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entry, err := model.Add(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Added %s at %d (id %d)", entry.Name(), entry.Index, entry.ID)
			return nil
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <asset> <index>",
		Short: "Remove the feature at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, index, err := a.openAt(cmd, args)
			if err != nil {
				return err
			}
			if err := model.Remove(cmd.Context(), index); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Removed feature %d", index)
			return nil
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "move <asset> <index> <up|down>",
		Short:     "Move the feature at index one slot up or down",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var offset int
			switch args[2] {
			case "up":
				offset = -1
			case "down":
				offset = 1
			default:
				return fmt.Errorf("direction must be up or down, got %q", args[2])
			}
			model, index, err := a.openAt(cmd, args)
			if err != nil {
				return err
			}
			if err := model.Move(cmd.Context(), index, offset); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Moved feature %d %s", index, args[2])
			return nil
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <asset> <index> <name>",
		Short: "Rename the feature at index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, index, err := a.openAt(cmd, args)
			if err != nil {
				return err
			}
			if err := model.Rename(cmd.Context(), index, args[2]); err != nil {
				return err
			}
			entry, err := model.EntryAt(index)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Renamed feature %d to %q", index, entry.Name())
			return nil
		},
	}
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <asset> <index>",
		Short: "Flip the active flag of the feature at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, index, err := a.openAt(cmd, args)
			if err != nil {
				return err
			}
			entry, err := model.EntryAt(index)
			if err != nil {
				return err
			}
			if !entry.Resolved() {
				return fmt.Errorf("feature %d: %w", index, rdata.ErrUnresolvedReference)
			}
			if err := model.SetActive(cmd.Context(), index, !entry.Active()); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Feature %d active: %t", index, !entry.Active())
			return nil
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <asset> <index> <key=value>...",
		Short: "Change settings of the feature at index",
		Long: `Change settings of the feature at index. Values are parsed as YAML
scalars, so numbers and booleans keep their type. The result must satisfy
the settings schema of the feature type.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			model, index, err := a.openAt(cmd, args)
			if err != nil {
				return err
			}
			factory, err := inspector.NewSchemaAdapterFactory(a.ws.registry)
			if err != nil {
				return err
			}
			err = model.Edit(cmd.Context(), index, "", func(obj *rdata.Object) (bool, error) {
				if obj.Settings == nil {
					obj.Settings = map[string]any{}
				}
				for key, value := range values {
					obj.Settings[key] = value
				}
				return true, factory.Validate(obj)
			})
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Updated %d setting(s) of feature %d", len(values), index)
			return nil
		},
	}
}

func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", arg)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		values[key] = value
	}
	return values, nil
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair <asset>",
		Short: "Relink missing features and rebuild the identifier list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.ws.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report, err := model.ValidateAndRepair(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !report.Changed() {
				success(out, "Nothing to repair")
			} else {
				success(out, "Relinked %d feature(s), identifier list rebuilt: %t", len(report.Relinked), report.Realigned)
			}
			for _, index := range report.Unresolved {
				warn(out, "feature %d is still missing, remove it with: rendererctl remove %s %d", index, args[0], index)
			}
			for _, id := range report.Duplicates {
				warn(out, "identifier %d is referenced more than once", id)
			}
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var expand bool
	cmd := &cobra.Command{
		Use:   "show <asset>",
		Short: "Print the inspector view of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := a.ws.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts, err := a.ws.options()
			if err != nil {
				return err
			}
			factory, err := inspector.NewSchemaAdapterFactory(a.ws.registry)
			if err != nil {
				return err
			}
			session, err := rdata.OpenSession(asset, factory, opts...)
			if err != nil {
				return err
			}

			var surface rdata.Surface = inspector.NewTextSurface(cmd.OutOrStdout())
			if expand {
				surface = expandedSurface{TextSurface: surface.(*inspector.TextSurface)}
			}
			_, renderErr := session.Cache().RenderList(cmd.Context(), surface)
			for _, entry := range session.Model().Entries() {
				if !entry.Resolved() {
					continue
				}
				if err := factory.Validate(entry.Object); err != nil {
					warn(cmd.OutOrStdout(), "feature %d: %v", entry.Index, err)
				}
			}
			if err := session.Close(cmd.Context()); err != nil && renderErr == nil {
				renderErr = err
			}
			return renderErr
		},
	}
	cmd.Flags().BoolVarP(&expand, "expand", "e", false, "unfold every feature (the fold state is saved)")
	return cmd
}

// expandedSurface unfolds every header it draws.
type expandedSurface struct {
	*inspector.TextSurface
}

func (s expandedSurface) Header(header rdata.Header) rdata.HeaderResult {
	if header.ToggleEnabled {
		header.Expanded = true
	}
	return s.TextSurface.Header(header)
}

// openAt opens the asset named by args[0] and parses args[1] as an index.
func (a *app) openAt(cmd *cobra.Command, args []string) (*rdata.Model, int, error) {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, 0, fmt.Errorf("invalid index %q: %w", args[1], err)
	}
	model, err := a.ws.open(cmd.Context(), args[0])
	if err != nil {
		return nil, 0, err
	}
	return model, index, nil
}
