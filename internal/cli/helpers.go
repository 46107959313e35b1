package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/existflow/ironledger/internal/app"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

var printer = message.NewPrinter(language.English)

// money renders an amount with thousands separators and the configured symbol
func money(currency string, amount float64) string {
	return printer.Sprintf("%s %.2f", currency, amount)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func formatOptDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}

// parseDate accepts YYYY-MM-DD, RFC3339, today, tomorrow and +Nd
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	midnight := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}

	switch {
	case s == "today":
		return midnight(now), nil
	case s == "tomorrow":
		return midnight(now).AddDate(0, 0, 1), nil
	case strings.HasPrefix(s, "+") && strings.HasSuffix(s, "d"):
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid relative date %q", s)
		}
		return midnight(now).AddDate(0, 0, n), nil
	}

	if t, err := time.ParseInLocation(dateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD, today, tomorrow or +Nd)", s)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return v, nil
}

// resolveID finds the one record whose id equals or starts with prefix
func resolveID[T model.Record](recs []T, prefix string) (T, error) {
	var zero T
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return zero, errors.New("id is required")
	}

	var matches []T
	for _, rec := range recs {
		if rec.RecordID() == prefix {
			return rec, nil
		}
		if strings.HasPrefix(rec.RecordID(), prefix) {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("no id in %s matches %q: %w", zero.Entity(), prefix, model.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%q matches %d %s, use more characters", prefix, len(matches), zero.Entity())
	}
}

// readLine reads one line from the command's stdin through a reader shared
// by every prompt of the session
func (s *session) readLine(cmd *cobra.Command) (string, error) {
	if s.in == nil {
		s.in = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a y/N question
func (s *session) confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/N): ", question)
	line, _ := s.readLine(cmd)
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}

// readPassphrase takes the passphrase from IRONLEDGER_PASSPHRASE, the
// terminal without echo, or one line of stdin
func (s *session) readPassphrase(cmd *cobra.Command, prompt string) (string, error) {
	if p := os.Getenv("IRONLEDGER_PASSPHRASE"); p != "" {
		return p, nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := s.readLine(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return line, nil
}

// settle turns a failed LocalFirst write into a warning since the change
// is already applied locally
func settle(cmd *cobra.Command, a *app.App, err error) error {
	if err == nil {
		return nil
	}
	if a.Backend.Policy() == storage.LocalFirst && errors.Is(err, model.ErrBackendUnavailable) {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s write failed, change kept locally: %s\n", a.Backend.Name(), app.Describe(err))
		return nil
	}
	return errors.New(app.Describe(err))
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}
