// Package output provides styled terminal output helpers (success, error,
// warning, todo formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/tdo/internal/models"
)

// ShortIDLen is how many id characters are shown; any unique prefix is accepted back.
const ShortIDLen = 8

var (
	idStyle      = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeDatabaseError = "database_error"
	ErrCodeNotSignedIn   = "not_signed_in"
	ErrCodeAuthFailed    = "auth_failed"
	ErrCodeUploadFailed  = "upload_failed"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// ShortID returns the displayed prefix of a uuid.
func ShortID(id string) string {
	if len(id) > ShortIDLen {
		return id[:ShortIDLen]
	}
	return id
}

// Checkbox renders a todo's completion state.
func Checkbox(done bool) string {
	if done {
		return successStyle.Render("[x]")
	}
	return "[ ]"
}

// FormatTodoShort formats a todo on one line
func FormatTodoShort(t *models.Todo) string {
	desc := t.Description
	if t.Completed {
		desc = doneStyle.Render(desc)
	}
	parts := []string{idStyle.Render(ShortID(t.ID)), Checkbox(t.Completed), desc}
	return strings.Join(parts, "  ")
}

// FormatTodoLong formats a todo with its list and timestamps.
func FormatTodoLong(t *models.Todo, list *models.List) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", idStyle.Render(t.ID), Checkbox(t.Completed))
	fmt.Fprintf(&sb, "%s\n", t.Description)
	if list != nil {
		fmt.Fprintf(&sb, "%s %s\n", subtleStyle.Render("List:"), list.Name)
	}
	created := FormatTimeAgo(t.CreatedAt)
	if t.CreatedBy != "" {
		created += " by " + t.CreatedBy
	}
	fmt.Fprintf(&sb, "%s %s\n", subtleStyle.Render("Created:"), created)
	if t.CompletedAt != nil {
		done := FormatTimeAgo(*t.CompletedAt)
		if t.CompletedBy != "" {
			done += " by " + t.CompletedBy
		}
		fmt.Fprintf(&sb, "%s %s\n", subtleStyle.Render("Completed:"), done)
	}
	return sb.String()
}

// FormatListSummary formats a list with its counts.
func FormatListSummary(s *models.ListSummary) string {
	return fmt.Sprintf("%s  %s  %s",
		idStyle.Render(ShortID(s.ID)), s.Name,
		subtleStyle.Render(fmt.Sprintf("%d/%d done", s.Done, s.Total)))
}

// FormatDiscarded formats an operation dropped by the remote store.
func FormatDiscarded(d *models.DiscardedOperation) string {
	code := d.Code
	if code == "" {
		code = "-"
	}
	line := fmt.Sprintf("%s  %s %s/%s  %s  %s",
		subtleStyle.Render(FormatTimeAgo(d.DiscardedAt)),
		d.Op, d.Table, ShortID(d.RowID),
		errorStyle.Render(code), d.Message)
	if d.Skipped > 0 {
		line += subtleStyle.Render(fmt.Sprintf(" (+%d skipped)", d.Skipped))
	}
	return line
}

// FormatUploadState formats the queue summary shown by sync --status.
func FormatUploadState(s *models.UploadState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pending:   %d transaction(s), %d op(s)\n", s.PendingTransactions, s.PendingOps)
	last := "never"
	if s.LastUploadAt != nil {
		last = fmt.Sprintf("%s (tx %d)", FormatTimeAgo(*s.LastUploadAt), s.LastTxID)
	}
	fmt.Fprintf(&sb, "Uploaded:  %s\n", last)
	if s.Discarded > 0 {
		fmt.Fprintf(&sb, "Discarded: %s\n", warningStyle.Render(fmt.Sprintf("%d (see 'tdo sync discarded')", s.Discarded)))
	}
	return sb.String()
}

// SectionHeader renders a section title.
func SectionHeader(title string) string {
	return headerStyle.Render(title)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
