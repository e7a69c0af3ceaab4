package reporter

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"grid-bot-go/internal/models"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// Finalize stamps the report with a fresh run id and the config provenance.
func Finalize(rep *models.RunReport, configPath string) {
	rep.RunID = uuid.NewString()
	rep.ConfigPath = configPath
	if data, err := os.ReadFile(configPath); err == nil {
		rep.ConfigHash = fmt.Sprintf("%x", sha1.Sum(data))
	}
}

// Render prints the run summary as a table to stdout and logs one compact
// line for the log file.
func Render(rep *models.RunReport, logger *zap.SugaredLogger) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Run Report")
	t.AppendRows([]table.Row{
		{"run id", rep.RunID},
		{"config", rep.ConfigPath},
		{"status", rep.Status},
		{"reason", orDash(rep.StopReason)},
		{"steps", rep.Steps},
		{"start", rep.StartTime.Format(time.RFC3339)},
		{"end", formatEnd(rep.EndTime)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"final price", formatFloat(rep.FinalPrice, "%.4f")},
		{"final equity", formatFloat(rep.FinalEquity, "%.2f")},
		{"peak equity", formatFloat(rep.PeakEquity, "%.2f")},
		{"drawdown", formatPct(rep.DrawdownPct)},
		{"pnl", formatFloat(rep.PnL, "%.2f")},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"trades", rep.Trades},
		{"total fees", fmt.Sprintf("%.6f", rep.TotalFees)},
		{"skipped buys (no quote)", rep.SkippedBuyNoQuote},
		{"skipped sells (no base)", rep.SkippedSellNoBase},
	})
	if rep.Offline {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"offline", rep.Offline},
			{"scenario", orDash(rep.Scenario)},
			{"seed", formatSeed(rep.Seed)},
		})
	}
	t.Render()

	logger.Infow("run finished",
		"run_id", rep.RunID,
		"status", rep.Status,
		"reason", rep.StopReason,
		"steps", rep.Steps,
		"trades", rep.Trades,
	)
}

// WriteJSON dumps the report to path for machine consumption and run
// diffing.
func WriteJSON(rep *models.RunReport, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatEnd(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatFloat(v *float64, layout string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(layout, *v)
}

func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func formatSeed(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
