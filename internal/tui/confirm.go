package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/ravgrowth/ravbot/internal/cli"
	"github.com/ravgrowth/ravbot/internal/present"
)

// newCancelForm asks the user to confirm they cancelled row at the merchant.
func newCancelForm(row present.Row, confirmed *bool) *huh.Form {
	desc := fmt.Sprintf("%s %s\n\nCancel with the merchant first:\n%s",
		cli.FormatMoney(row.Amount), row.Interval, row.Guidance.URL)
	if row.Count > 1 {
		desc += fmt.Sprintf("\n\n%d duplicate entries are merged here.", row.Count)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Mark %s as cancelled?", row.Merchant)).
				Description(desc).
				Affirmative("Cancelled").
				Negative("Keep").
				Value(confirmed),
		),
	).WithShowHelp(false)
}
