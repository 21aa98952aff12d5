// ABOUTME: Admin CLI for inspecting deskflow conversations and resolutions
// ABOUTME: Reads the SQLite store directly; no server required

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/deskflow/internal/store"
)

const banner = `
     _           _     __ _                            _           _
  __| | ___  ___| | __/ _| | _____      __   __ _  __| |_ __ ___ (_)_ __
 / _' |/ _ \/ __| |/ / |_| |/ _ \ \ /\ / /  / _' |/ _' | '_ ' _ \| | '_ \
| (_| |  __/\__ \   <|  _| | (_) \ V  V /  | (_| | (_| | | | | | | | | | |
 \__,_|\___||___/_|\_\_| |_|\___/ \_/\_/    \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dbPath := os.Getenv("DESKFLOW_DB")
	if dbPath == "" {
		dbPath = "deskflow.db"
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "conversations":
		err = cmdConversations(dbPath, args)
	case "conversation":
		err = cmdConversation(dbPath, args)
	case "resolutions":
		err = cmdResolutions(dbPath)
	case "resolution":
		err = cmdResolution(dbPath, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: deskflow-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  conversations <customer-id>   List a customer's conversations")
	fmt.Println("  conversation <id>             Show one conversation with its messages")
	fmt.Println("  resolutions                   List open resolutions")
	fmt.Println("  resolution <id>               Show one resolution with its audit trail")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  DESKFLOW_DB   Path to the SQLite database (default: deskflow.db)")
	fmt.Println()
}

func openStore(dbPath string) (*store.SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s not found (set DESKFLOW_DB)", dbPath)
	}
	return store.NewSQLiteStore(dbPath)
}

func cmdConversations(dbPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: deskflow-admin conversations <customer-id>")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	convs, err := st.ListConversationsByCustomer(ctx, args[0], 50)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tCHANNEL\tAGENT\tMESSAGES\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ID, colorState(c.State), c.CurrentChannel,
			orDash(c.AssignedAgentID), c.MessageCount,
			c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func cmdConversation(dbPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: deskflow-admin conversation <id>")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conv, err := st.GetConversation(ctx, args[0])
	if err != nil {
		return err
	}

	color.Cyan("Conversation %s", conv.ID)
	fmt.Printf("  Customer:  %s (%s tier)\n", conv.CustomerID, conv.SLATier)
	fmt.Printf("  State:     %s\n", colorState(conv.State))
	fmt.Printf("  Channels:  %s (current: %s)\n", strings.Join(conv.ChannelsUsed, ", "), conv.CurrentChannel)
	if conv.AssignedAgentID != "" {
		fmt.Printf("  Agent:     %s\n", conv.AssignedAgentID)
	}
	if conv.Intent != "" {
		fmt.Printf("  Classified: intent=%s severity=%s sentiment=%s\n",
			conv.Intent, conv.Severity, conv.Sentiment)
	}
	if conv.FirstResponseDueAt != nil {
		fmt.Printf("  First response due: %s\n", conv.FirstResponseDueAt.Format(time.RFC3339))
	}
	if conv.ResolutionID != "" {
		fmt.Printf("  Resolution: %s\n", conv.ResolutionID)
	}

	msgs, err := st.ListMessagesByConversation(ctx, conv.ID, 50)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		fmt.Println()
		color.Yellow("Messages:")
		for _, m := range msgs {
			fmt.Printf("  [%s %s/%s] %s\n",
				m.CreatedAt.Format("Jan 02 15:04"), m.SenderType, m.Channel, m.Content)
		}
	}
	return nil
}

func cmdResolutions(dbPath string) error {
	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resolutions, err := st.ListOpenResolutions(ctx, 50)
	if err != nil {
		return err
	}
	if len(resolutions) == 0 {
		fmt.Println("No open resolutions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tTEAM\tISSUE\tETA")
	for _, r := range resolutions {
		eta := "-"
		if r.ExpectedResolutionAt != nil {
			eta = r.ExpectedResolutionAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Priority, colorState(r.Status), r.OwningTeam, r.IssueType, eta)
	}
	return w.Flush()
}

func cmdResolution(dbPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: deskflow-admin resolution <id>")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := st.GetResolution(ctx, args[0])
	if err != nil {
		return err
	}

	color.Cyan("Resolution %s", res.ID)
	fmt.Printf("  Conversation: %s\n", res.ConversationID)
	fmt.Printf("  Status:       %s (%s)\n", res.Status, res.Priority)
	fmt.Printf("  Team:         %s", res.OwningTeam)
	if res.OwnerID != "" {
		fmt.Printf(" (owner %s)", res.OwnerID)
	}
	fmt.Println()
	if res.ExpectedResolutionAt != nil {
		fmt.Printf("  ETA:          %s (%dh window)\n",
			res.ExpectedResolutionAt.Format(time.RFC3339), res.EtaWindowHours)
	}
	if res.RootCause != "" {
		fmt.Printf("  Root cause:   %s\n", res.RootCause)
	}
	if res.IsRecurrence {
		color.Yellow("  Recurrence of %s", res.ParentResolutionID)
	}
	if res.RecurrenceCount > 0 {
		color.Yellow("  Recurred %d time(s)", res.RecurrenceCount)
	}

	updates, err := st.ListResolutionUpdates(ctx, res.ID)
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		fmt.Println()
		color.Yellow("Audit trail:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, u := range updates {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				u.CreatedAt.Format("Jan 02 15:04"), u.UpdateType, u.Visibility, u.Content)
		}
		w.Flush()
	}
	return nil
}

func colorState(state string) string {
	switch state {
	case "OPEN", "REOPENED", "INVESTIGATING":
		return color.GreenString(state)
	case "ESCALATED":
		return color.RedString(state)
	case "RESOLVED":
		return color.HiBlackString(state)
	default:
		return color.YellowString(state)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
