package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rereminder/internal/config"
	"rereminder/internal/database"
	"rereminder/internal/logging"
	"rereminder/internal/settings"
	"rereminder/shared/reminders"
)

// app holds state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "rereminder",
		Short: "Periodic break reminders",
		Long: `rereminder fires a notification, a tone or spoken text, and a vibration
at a fixed interval until it is disabled.

  rereminder run                 # start the reminder daemon
  rereminder enable              # turn reminders on
  rereminder interval 45         # remind every 45 minutes
  rereminder set vibration_pattern long
  rereminder status`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newStatusCommand(a))
	rootCmd.AddCommand(newEnableCommand(a, true))
	rootCmd.AddCommand(newEnableCommand(a, false))
	rootCmd.AddCommand(newIntervalCommand(a))
	rootCmd.AddCommand(newSetCommand(a))
	rootCmd.AddCommand(newPreviewCommand(a))
	rootCmd.AddCommand(newHistoryCommand(a))
	rootCmd.AddCommand(newBackupCommand(a))

	return rootCmd
}

func (a *app) initialize() error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	path, explicit := config.ResolvePath(a.configPath)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	return nil
}

func (a *app) log(component string) reminders.Logger {
	return logging.NewAdapter(a.logger, component)
}

// resources are the storage handles opened from config.
type resources struct {
	db    *database.DB
	rdb   *redis.Client
	store *settings.Store
}

func (a *app) openResources(ctx context.Context) (*resources, error) {
	res := &resources{}

	if a.cfg.UsesSQLite() {
		db, err := database.NewDB(a.cfg.Database.Path, &a.logger)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		res.db = db
	}

	var backend settings.Backend
	switch a.cfg.Settings.Backend {
	case "redis":
		res.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		backend = settings.NewRedisBackend(res.rdb, a.cfg.Redis.Prefix)
	case "memory":
		a.logger.Warn().Msg("memory settings backend: changes are not shared between processes")
		backend = settings.NewMemoryBackend()
	default:
		backend = settings.NewSQLiteBackend(res.db)
	}
	res.store = settings.NewStore(backend, a.log("settings"))

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := res.store.Ping(pingCtx); err != nil {
		res.Close()
		return nil, fmt.Errorf("settings backend %s not reachable: %w", a.cfg.Settings.Backend, err)
	}
	return res, nil
}

func (r *resources) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}

// withStore opens the settings store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *settings.Store) error) error {
	ctx := cmd.Context()
	res, err := a.openResources(ctx)
	if err != nil {
		return err
	}
	defer res.Close()
	return fn(ctx, res.store)
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored reminder settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *settings.Store) error {
				s, err := store.GetSettings(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd, s, a.cfg.Language)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, s *reminders.Settings, lang string) {
	out := cmd.OutOrStdout()
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	interval := s.IntervalMinutes
	if interval < 1 {
		interval = reminders.DefaultIntervalMinutes
	}
	next := "-"
	if !s.NextReminderTime.IsZero() {
		next = s.NextReminderTime.Local().Format("2006-01-02 15:04:05")
	}
	tone := s.ToneRef
	if tone == "" {
		tone = "default"
	}

	fmt.Fprintf(out, "reminders:   %s\n", onOff(s.Enabled))
	fmt.Fprintf(out, "interval:    %s\n", reminders.FormatInterval(interval, lang))
	fmt.Fprintf(out, "next:        %s\n", next)
	fmt.Fprintf(out, "sound:       %s (%s, tone %s)\n", onOff(s.SoundEnabled), s.SoundMode, tone)
	fmt.Fprintf(out, "vibration:   %s (%s)\n", onOff(s.VibrationEnabled), s.VibrationPattern)
	if s.NotificationTitle != "" || s.NotificationBody != "" {
		fmt.Fprintf(out, "text:        %q / %q\n", s.NotificationTitle, s.NotificationBody)
	}
}

func newEnableCommand(a *app, enabled bool) *cobra.Command {
	use, short := "enable", "Turn reminders on"
	if !enabled {
		use, short = "disable", "Turn reminders off"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *settings.Store) error {
				if err := store.SetEnabled(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reminders %sd\n", use)
				return nil
			})
		},
	}
}

func newIntervalCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interval <minutes>",
		Short: "Set the reminder interval in minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("interval %q is not a number", args[0])
			}
			return a.withStore(cmd, func(ctx context.Context, store *settings.Store) error {
				if err := store.SetInterval(ctx, minutes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "interval set to %s\n", reminders.FormatInterval(minutes, a.cfg.Language))
				return nil
			})
		},
	}
}

func newSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a single setting",
		Long:  "Store a single setting. Known keys: " + strings.Join(settings.Keys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *settings.Store) error {
				if err := store.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
				return nil
			})
		},
	}
}
