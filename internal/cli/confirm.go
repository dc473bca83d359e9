package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"survey-admin/internal/alert"
	"survey-admin/internal/trash"
)

var errConfirmationReplaced = errors.New("confirmation was replaced by another request")

// answerConfirmation resolves the broker request t. With yes it confirms
// right away; otherwise the user answers y/N on stdin.
func answerConfirmation(cmd *cobra.Command, b *alert.Broker, t alert.Ticket, yes bool) (bool, error) {
	req := b.Current()
	if !req.Open || req.Ticket != t {
		return false, errConfirmationReplaced
	}
	d := alert.DecisionDismiss
	if yes {
		d = alert.DecisionConfirm
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n%s\n[y/N] ", req.Title, req.Message)
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			d = alert.DecisionConfirm
		}
	}
	current, err := b.Resolve(t, d)
	if err != nil {
		return false, err
	}
	if !current {
		return false, errConfirmationReplaced
	}
	return d == alert.DecisionConfirm, nil
}

// drainNotes returns the notifications queued so far.
func drainNotes(rec *trash.Reconciler) []trash.Notification {
	var out []trash.Notification
	for {
		select {
		case n, ok := <-rec.Notifications():
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

// outcome reads an operation's result from its notifications. A success
// message wins over errors from the follow-up refetch, which come back as
// warnings.
func outcome(notes []trash.Notification) (msg string, warnings []string, err error) {
	var failure string
	for _, n := range notes {
		switch {
		case n.Severity == trash.SeveritySuccess && msg == "":
			msg = n.Message
		case n.Severity == trash.SeverityError && failure == "":
			failure = n.Message
			warnings = append(warnings, n.Message)
		default:
			warnings = append(warnings, n.Message)
		}
	}
	if msg == "" && failure != "" {
		return "", nil, errors.New(failure)
	}
	return msg, warnings, nil
}

func noteMessages(notes []trash.Notification) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Message)
	}
	return out
}
