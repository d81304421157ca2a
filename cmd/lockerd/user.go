package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/auth"
	"github.com/lockerd/lockerd/credstore"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts in the credential store",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new account",
	Long: `Add a new account to the configured credential store.

You will be prompted for the password; it is hashed before storage.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered usernames",
	RunE:  runUserList,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	username := args[0]
	if !lockerd.IsValidUsername(username) {
		return fmt.Errorf("invalid username: %s", username)
	}

	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" {
				return errors.New("password cannot be empty")
			}
			return nil
		},
	}

	password, err := prompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	seed, err := bootstrapUser(cfg)
	if err != nil {
		return err
	}

	store, cleanup, err := credstore.Open(ctx, cfg.Store, seed)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer cleanup()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := store.Add(ctx, username, hash); err != nil {
		if errors.Is(err, lockerd.ErrAlreadyExists) {
			return fmt.Errorf("username already taken: %s", username)
		}
		return err
	}

	fmt.Printf("Added user %q\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	seed, err := bootstrapUser(cfg)
	if err != nil {
		return err
	}

	store, cleanup, err := credstore.Open(ctx, cfg.Store, seed)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer cleanup()

	users, err := store.Load(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Println(name)
	}

	return nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		return errors.New("cancelled")
	}
	return err
}
