package cmd

import (
	"context"
	"fmt"

	"github.com/ravgrowth/ravbot/internal/cli"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/spf13/cobra"
)

var flagAccountName string

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage linked bank accounts",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <access-token>",
	Short: "Link an account by its provider access token (or a CSV path)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked accounts",
	RunE:  runAccountsList,
}

func init() {
	accountsAddCmd.Flags().StringVar(&flagAccountName, "name", "", "Display name")
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsAdd(_ *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	acc, err := e.store.AddAccount(context.Background(), model.LinkedAccount{
		UserID: flagUser,
		Token:  args[0],
		Name:   flagAccountName,
	})
	if err != nil {
		return err
	}
	fmt.Printf("  Linked account %s\n", acc.ID)
	return nil
}

func runAccountsList(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	accounts, err := e.store.ListAccounts(context.Background(), flagUser)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("  No linked accounts.")
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{a.ID, a.Name, cli.FormatDate(a.CreatedAt)})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Linked Accounts",
		Headers: []string{"ID", "Name", "Linked"},
		Rows:    rows,
	}))
	return nil
}
