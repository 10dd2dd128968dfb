package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/config"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository/mongodb"
	"github.com/sakif/learnloop/internal/service"
	"github.com/sakif/learnloop/internal/storage"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role <email> <student|instructor|admin>",
	Short: "Change the stored role of a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := storage.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.Users.GetUserByEmail(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s has never logged in: %w", args[0], err)
		}

		role := model.Role(args[1])
		if err := service.NewUserService(store.Users, logger).SetRole(ctx, user.ID, role); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
		return nil
	},
}

var (
	tokenEmail string
	tokenName  string
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Print a bearer token signed with ACCESS_TOKEN_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := auth.NewTokenService(cfg.TokenSecret)
		if err != nil {
			return err
		}
		token, err := service.NewAuthService(tokens, logger).IssueToken(auth.Identity{
			Email: tokenEmail,
			Name:  tokenName,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the unique MongoDB indexes (users.email, enrollments.userEmail+courseId)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver != config.DriverMongo {
			return errors.New("ensure-indexes only applies to STORE_DRIVER=mongo; sqlite creates its indexes on open")
		}
		if cfg.MongoURI == "" {
			return errors.New("MONGO_URI is not set")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		m := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		defer m.Close()

		if err := m.EnsureIndexes(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "indexes ready")
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email to put in the token (required)")
	issueTokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	_ = issueTokenCmd.MarkFlagRequired("email")
}
