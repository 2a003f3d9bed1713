package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/offline"
)

var errUsage = errors.New("wrong arguments, see 'help'")

func wantsRefresh(args []string) bool {
	return len(args) > 0 && args[len(args)-1] == "refresh"
}

// date resolves "today" and an omitted date to the local calendar date.
func (a *App) date(s string) string {
	if s == "" || s == "today" {
		return a.now().Format(models.DateLayout)
	}
	return s
}

// Users prints the local users, refreshing them from the server first when
// asked to or when none are known yet.
func (a *App) Users(ctx context.Context, args []string) error {
	var refreshErr error
	if wantsRefresh(args) || len(a.store.State().Users) == 0 {
		if _, refreshErr = a.registry.RefreshUsers(ctx); refreshErr != nil {
			fmt.Fprintf(a.out, "Refresh failed, showing local data: %v\n", refreshErr)
		}
	}

	users := a.store.State().UserList()
	if len(users) == 0 && refreshErr != nil {
		return fmt.Errorf("%w: %w", client.ErrLocalDataNotAvailable, refreshErr)
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tVOICE\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.FullName(), u.Role, u.Voice, u.Email)
	}
	return tw.Flush()
}

func (a *App) Attendance(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	userID := args[0]
	if wantsRefresh(args[1:]) {
		if _, err := a.registry.RefreshAttendance(ctx, userID); err != nil {
			fmt.Fprintf(a.out, "Refresh failed, showing local data: %v\n", err)
		}
	}

	recs := a.store.State().Attendance[userID]
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No attendance records")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATUS\tNOTE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Date, r.Status, r.Note)
	}
	return tw.Flush()
}

func (a *App) Transactions(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	userID := args[0]
	if wantsRefresh(args[1:]) {
		if _, err := a.registry.RefreshTransactions(ctx, userID); err != nil {
			fmt.Fprintf(a.out, "Refresh failed, showing local data: %v\n", err)
		}
	}

	txs := a.store.State().Transactions[userID]
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f %s\t%s\n", t.ID, t.Date, t.Type, t.Amount, t.Currency, t.Description)
	}
	return tw.Flush()
}

// Mark: mark <user> <date|today> <status> [note...]
func (a *App) Mark(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	note := strings.Join(args[3:], " ")
	if err := a.registry.MarkAttendance(ctx, args[0], a.date(args[1]), args[2], note); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Marked (queued for sync)")
	return nil
}

// Contribute: contribute <user> <amount> [date|today] [description...]
func (a *App) Contribute(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[1], err)
	}
	tx := models.Transaction{
		UserID: args[0],
		Type:   models.TransactionContribution,
		Amount: amount,
		Date:   a.date(""),
	}
	if len(args) > 2 {
		tx.Date = a.date(args[2])
		tx.Description = strings.Join(args[3:], " ")
	}
	if err := a.registry.RecordTransaction(ctx, tx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Recorded (queued for sync)")
	return nil
}

// AddUser: adduser <first> <last> <email> [role] [voice]
func (a *App) AddUser(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	u := models.User{FirstName: args[0], LastName: args[1], Email: args[2], Role: models.RoleMember, Active: true}
	if len(args) > 3 {
		u.Role = models.Role(strings.ToUpper(args[3]))
	}
	if len(args) > 4 {
		u.Voice = args[4]
	}
	if err := a.registry.SaveUser(ctx, u); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "User added (queued for sync)")
	return nil
}

// SetRole: setrole <user> <role>
func (a *App) SetRole(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	u, ok := a.store.State().Users[args[0]]
	if !ok {
		return fmt.Errorf("user %q: %w, try 'users refresh'", args[0], common.ErrorNotFound)
	}
	u.Role = models.Role(strings.ToUpper(args[1]))
	if err := a.registry.SaveUser(ctx, u); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Role updated (queued for sync)")
	return nil
}

// Export: export [from] [to]
func (a *App) Export(ctx context.Context, args []string) error {
	var from, to string
	if len(args) > 0 {
		from = args[0]
	}
	if len(args) > 1 {
		to = args[1]
	}
	if err := a.registry.ExportAttendance(ctx, from, to); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Export queued")
	return nil
}

// Queue prints the entries waiting for the server, head first.
func (a *App) Queue(ctx context.Context, _ []string) error {
	pending := a.store.Pending()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "Queue is empty")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tACTION\tREQUEST\tATTEMPTS\tSTATE")
	for i, e := range pending {
		fmt.Fprintf(tw, "%d\t%s\t%s %s\t%d\t%s\n", i+1, e.Action.Kind(), e.Effect.Method, e.Effect.URL, e.Attempts, a.entryState(e))
	}
	return tw.Flush()
}

func (a *App) entryState(e offline.Entry) string {
	switch {
	case e.Parked:
		return "parked"
	case e.Attempts == 0:
		return "pending"
	case e.NextAttemptAt.After(a.now()):
		return "retry at " + e.NextAttemptAt.Local().Format("15:04:05")
	}
	return "retrying"
}

// Sync re-arms parked entries and refreshes the users list.
func (a *App) Sync(ctx context.Context, _ []string) error {
	if n := a.store.Resume(ctx); n > 0 {
		fmt.Fprintf(a.out, "Resumed %d parked change(s)\n", n)
	}
	users, err := a.registry.RefreshUsers(ctx)
	if err != nil {
		return fmt.Errorf("refresh users: %w", err)
	}
	fmt.Fprintf(a.out, "Synced %d user(s), %d change(s) queued\n", len(users), len(a.store.Pending()))
	return nil
}
