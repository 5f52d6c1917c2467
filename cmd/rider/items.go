package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"techrider/internal/domain"
	"techrider/internal/engine"
	"techrider/internal/negotiate"
	"techrider/internal/projection"
	"techrider/internal/repo"
)

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Negotiate brief items"}
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemCreateCmd())
	item.AddCommand(itemReviseCmd())
	item.AddCommand(itemProviderCmd())
	item.AddCommand(itemStatusCmd())
	item.AddCommand(itemAgreeCmd())
	item.AddCommand(itemReopenCmd())
	item.AddCommand(itemCommentCmd())
	return item
}

func itemListCmd() *cobra.Command {
	var category, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in brief order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListItems(ctx, repo.ItemFilters{
					Category: domain.Category(strings.ToUpper(category)),
					Status:   domain.Status(strings.ToUpper(status)),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Category", "Title", "Provider", "Status", "Waiting on"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Category, it.Title, it.Provider, it.Status, waitingOn(it)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func waitingOn(it domain.Item) string {
	if it.Status != domain.StatusPending {
		return ""
	}
	if it.PendingConfirmationFrom != "" {
		return string(it.PendingConfirmationFrom)
	}
	return string(it.CreatedBy.Opposite())
}

func itemShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item as seen by the acting role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.View(ctx, args[0], role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				printView(view)
				return nil
			})
		},
	}
}

func printView(v projection.View) {
	it := v.Item
	fmt.Printf("%s  [%s]  %s\n%s\n", it.Title, it.Category, it.Status, it.Description)
	fmt.Printf("provider: %s  requested by: %s  assigned to: %s\n", it.Provider, it.RequestedBy, it.AssignedTo)
	if len(v.PendingDiffs) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Proposed changes")
		tw.AppendHeader(table.Row{"Field", "Current", "Proposed"})
		for _, d := range v.PendingDiffs {
			tw.AppendRow(table.Row{d.Field, d.Old, d.New})
		}
		tw.Render()
	}
	var actions []string
	if v.CanAgree {
		actions = append(actions, "agree")
	}
	if v.CanAcceptRevision {
		actions = append(actions, "accept revision")
	}
	if v.CanReopen {
		actions = append(actions, "reopen")
	}
	if len(actions) > 0 {
		fmt.Printf("you can: %s\n", strings.Join(actions, ", "))
	}
	if len(it.Comments) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Time", "Author", "Type", "Text"})
	for _, ev := range it.Comments {
		tw.AppendRow(table.Row{ev.Timestamp, ev.Author, ev.Type, ev.Text})
	}
	tw.Render()
}

func itemCreateCmd() *cobra.Command {
	var (
		d        negotiate.Draft
		category string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an item to the top of the brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			d.Category = domain.Category(strings.ToUpper(category))
			d.Provider = domain.Provider(strings.ToUpper(provider))
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.CreateItem(ctx, d, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "item category")
	cmd.Flags().StringVar(&d.Title, "title", "", "item title")
	cmd.Flags().StringVar(&d.Description, "description", "", "item description")
	cmd.Flags().StringVar(&provider, "provider", "", "BAND, VENUE or ENGINEER (defaults to your side)")
	cmd.Flags().StringVar(&d.Specs.Make, "make", "", "make")
	cmd.Flags().StringVar(&d.Specs.Model, "model", "", "model")
	cmd.Flags().IntVar(&d.Specs.Quantity, "quantity", 0, "quantity")
	cmd.Flags().StringVar(&d.Specs.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&d.RequestedBy, "requested-by", "", "who asked for it")
	cmd.Flags().StringVar(&d.AssignedTo, "assigned-to", "", "who takes care of it")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func itemReviseCmd() *cobra.Command {
	var (
		category, title, description, provider string
		makeName, model, notes                 string
		qty                                    int
	)
	cmd := &cobra.Command{
		Use:   "revise <id>",
		Short: "Propose changes for the other party to accept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			var patch domain.FieldSet
			flags := cmd.Flags()
			if flags.Changed("category") {
				c := domain.Category(strings.ToUpper(category))
				patch.Category = &c
			}
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("provider") {
				p := domain.Provider(strings.ToUpper(provider))
				patch.Provider = &p
			}
			var specs domain.SpecFields
			if flags.Changed("make") {
				specs.Make = &makeName
			}
			if flags.Changed("model") {
				specs.Model = &model
			}
			if flags.Changed("quantity") {
				specs.Quantity = &qty
			}
			if flags.Changed("notes") {
				specs.Notes = &notes
			}
			if !specs.IsEmpty() {
				patch.Specs = &specs
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to revise; pass at least one field flag")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.ProposeRevision(ctx, args[0], role, patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&provider, "provider", "", "new provider")
	cmd.Flags().StringVar(&makeName, "make", "", "new make")
	cmd.Flags().StringVar(&model, "model", "", "new model")
	cmd.Flags().IntVar(&qty, "quantity", 0, "new quantity")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func itemProviderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provider <id> <BAND|VENUE|ENGINEER>",
		Short: "Change who provides the item; reopens discussion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.UpdateProvider(ctx, args[0], role, domain.Provider(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
}

func itemStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Request a status change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], domain.Status(strings.ToUpper(args[1])))
		},
	}
}

func itemAgreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agree <id>",
		Short: "Agree to an item or accept its pending revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], domain.StatusAgreed)
		},
	}
}

func runStatus(cmd *cobra.Command, id string, status domain.Status) error {
	role, err := actingRole()
	if err != nil {
		return err
	}
	return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
		item, applied, err := e.UpdateStatus(ctx, id, role, status)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(map[string]any{"item": item, "applied": applied})
		}
		if !applied {
			fmt.Printf("%s is %s; %s cannot move it to %s now\n", item.ID, item.Status, role, status)
			return nil
		}
		fmt.Printf("%s is now %s\n", item.ID, item.Status)
		return nil
	})
}

func itemReopenCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen an item with a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, applied, err := e.Reopen(ctx, args[0], role, message)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"item": item, "applied": applied})
				}
				fmt.Printf("%s is %s\n", item.ID, item.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "why the item needs another look")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func itemCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <message>",
		Short: "Comment on an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.AddComment(ctx, args[0], role, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return printJSONOrTable(item.Comments[len(item.Comments)-1])
			})
		},
	}
}
