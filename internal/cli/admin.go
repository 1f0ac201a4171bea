package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"obraflow/pkg/auth"
	"obraflow/pkg/config"
	"obraflow/pkg/db"
	"obraflow/pkg/logger"
	"obraflow/pkg/mq"
	"obraflow/pkg/outbox"
	"obraflow/pkg/rbac"
)

func buildAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage service API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hash [KEY]",
		Short: "Print the bcrypt hash of KEY, generating a key when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				raw = "sk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				fmt.Fprintf(cmd.OutOrStdout(), "key:  %s\n", raw)
			}
			hash, err := auth.HashAPIKey(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hash: %s\n", hash)
			return nil
		},
	})
	return cmd
}

func buildTokenCommand() *cobra.Command {
	var (
		org    string
		user   string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a JWT for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(org)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			userID := uuid.New()
			if user != "" {
				if userID, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}
			if !rbac.HasPermission(role, rbac.PermissionReadSchedule) {
				return fmt.Errorf("unknown role %q", role)
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set JWT_SECRET")
			}

			tok, err := auth.GenerateToken(orgID, userID, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&user, "user", "", "user id (random when omitted)")
	cmd.Flags().StringVar(&role, "role", rbac.RolePlanner, "viewer, planner or admin")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

type outboxConfig struct {
	DB config.DBConfig `yaml:"db"`
	MQ config.MQConfig `yaml:"mq"`
}

func loadOutboxConfig(cmd *cobra.Command) (*outboxConfig, error) {
	dir, _ := cmd.Flags().GetString("config-dir")
	env, _ := cmd.Flags().GetString("env")
	if env == "" {
		env = config.GetConfigEnv()
	}

	var cfg outboxConfig
	if err := config.Load(env, dir, &cfg); err != nil {
		return nil, err
	}
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	return &cfg, nil
}

func buildOutboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the transactional outbox",
	}

	var (
		eventID int64
		limit   int
	)
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Republish failed outbox events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOutboxConfig(cmd)
			if err != nil {
				return err
			}

			log := logger.NewDevelopment()
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pool, err := db.NewConnection(ctx, cfg.DB, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			publisher, err := mq.NewPublisher(cfg.MQ.URL)
			if err != nil {
				return err
			}
			defer publisher.Close()

			svc := outbox.NewReplayService(outbox.NewRepository(pool), publisher)
			if eventID > 0 {
				if err := svc.ReplayEvent(ctx, eventID); err != nil {
					return err
				}
				log.Info("Replayed outbox event", zap.Int64("event_id", eventID))
				fmt.Fprintf(cmd.OutOrStdout(), "replayed event %d\n", eventID)
				return nil
			}

			n, err := svc.ReplayFailedEvents(ctx, limit)
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
			return err
		},
	}
	replay.Flags().Int64Var(&eventID, "event-id", 0, "replay a single event by id")
	replay.Flags().IntVar(&limit, "limit", 100, "maximum failed events to replay")

	cmd.AddCommand(replay)
	return cmd
}
