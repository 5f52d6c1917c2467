package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"techrider/internal/app"
	"techrider/internal/config"
	"techrider/internal/db"
	"techrider/internal/domain"
	"techrider/internal/engine"
	"techrider/internal/logging"
	"techrider/internal/repo"
	"techrider/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rider",
	Short: "Tech rider negotiation CLI",
	Long: `rider keeps the technical brief between a touring band and a venue's sound engineer.
- Items: one line of the brief (a mic, a monitor, a power point) with a provider and a status.
- Statuses: PENDING waits on one party, DISCUSSING is open, AGREED is settled, REOPENED is back on the table.
- Revisions: a proposed change to an item's fields; it only takes effect when the other party agrees.
- Roles: every command acts as BAND or ENGINEER (--role or RIDER_ROLE).
- Feed: brief-wide chat plus a line for every status, provider and revision change ('rider chat list').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RIDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("role", "r", "BAND", "acting party (BAND or ENGINEER)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (silent, error, warn, info, debug); defaults to log.level")
	rootCmd.PersistentFlags().String("redis-url", "", "mirror committed items to this Redis; defaults to redis.url")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("redis-url", rootCmd.PersistentFlags().Lookup("redis-url"))
}

func registerCommands() {
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(specCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func actingRole() (domain.Role, error) {
	role := domain.Role(strings.ToUpper(viper.GetString("role")))
	if !role.Valid() {
		return "", fmt.Errorf("--role must be BAND or ENGINEER, got %q", viper.GetString("role"))
	}
	return role, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	level := viper.GetString("log-level")
	if level == "" && cfg != nil {
		level = cfg.Log.Level
	}
	return logging.New(level, os.Stderr)
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show status counters for the brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.Summary(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pending", "Discussing", "Agreed", "Reopened", "Progress"})
				tw.AppendRow(table.Row{sum.Pending, sum.Discussing, sum.Agreed, sum.Reopened, sum.Progress})
				tw.Render()
				return nil
			})
		},
	}
}

func specCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spec",
		Short: "Print the shareable show document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				spec, err := e.ShowSpec(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(spec)
				}
				fmt.Printf("%s\n%s\n%s\n\n", spec.Show.Artist, spec.Show.Event, spec.Summary.Progress)
				for _, g := range spec.Agreed {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetTitle(string(g.Category))
					tw.AppendHeader(table.Row{"Item", "Make / Model", "Qty", "Provider", "Notes"})
					for _, it := range g.Items {
						tw.AppendRow(table.Row{it.Title, strings.TrimSpace(it.Specs.Make + " " + it.Specs.Model), quantity(it.Specs.Quantity), it.Provider, it.Specs.Notes})
					}
					tw.Render()
				}
				if len(spec.Open) > 0 {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetTitle("Still open")
					tw.AppendHeader(table.Row{"ID", "Category", "Item", "Status"})
					for _, it := range spec.Open {
						tw.AppendRow(table.Row{it.ID, it.Category, it.Title, it.Status})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
}

func chatCmd() *cobra.Command {
	chat := &cobra.Command{Use: "chat", Short: "Brief-wide chat and update feed"}
	chat.AddCommand(chatPostCmd())
	chat.AddCommand(chatListCmd())
	return chat
}

func chatPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <message>",
		Short: "Post a chat message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := actingRole()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				msg, err := e.PostMessage(ctx, role, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printJSONOrTable(msg)
			})
		},
	}
}

func chatListCmd() *cobra.Command {
	var f repo.FeedFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the feed, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				msgs, err := e.Feed(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(msgs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Author", "Item", "Message"})
				for _, m := range msgs {
					tw.AppendRow(table.Row{m.TS, m.Author, m.ItemTitle, m.Text})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", repo.FeedAll, "ALL, CHAT or UPDATES")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "newest rows to show (0 for all)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "rider.yml holds the show name, role display names, seeding, Redis mirror and server settings. Missing files fall back to defaults.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default rider.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if addr == "" {
					addr = e.Config.Server.Addr
				}
				if basePath == "" {
					basePath = e.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Log: e.Log})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(ctx)
				}()
				fmt.Printf("Serving tech rider API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	ws, err := app.OpenWorkspace(ctx, workspace, newLogger(nil))
	if err != nil {
		return err
	}
	defer ws.Close()
	e, closeMirror, err := ws.Engine(viper.GetString("redis-url"), newLogger(ws.Config))
	if err != nil {
		return err
	}
	defer closeMirror()
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func quantity(q int) string {
	if q == 0 {
		return ""
	}
	return fmt.Sprint(q)
}
