package main

import (
	"context"
	"fmt"
	"os"
	"time"

	db "community-help/database"
	"community-help/models"
	"community-help/services"

	"github.com/spf13/cobra"
)

func createUserCmd() *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with any role, e.g. the first admin",
		Example: `  community-help create-user --name "Barangay Admin" --email admin@example.com --role admin
  COMMUNITY_HELP_PASSWORD=... community-help create-user --email crew@example.com --name Crew --role worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("COMMUNITY_HELP_PASSWORD")
			}
			r, err := models.ParseRole(role)
			if err != nil {
				return err
			}
			return createUser(cmd.Context(), name, email, password, r)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login e-mail")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set COMMUNITY_HELP_PASSWORD)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCitizen), "citizen, admin or worker")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func createUser(ctx context.Context, name, email, password string, role models.Role) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer db.Disconnect(database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	auth := services.NewAuthService(db.NewUserStore(database), cfg.JWTSecret, cfg.TokenTTL)
	user, err := auth.CreateUser(ctx, name, email, password, role)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s %s (%s)\n", user.Role, user.Email, user.ID.Hex())
	return nil
}
