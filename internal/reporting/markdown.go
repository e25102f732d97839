package reporting

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownTopPairs bounds the pair table in the Markdown report.
const MarkdownTopPairs = 20

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Hedge Pair Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Price threshold: %g | Confidence threshold: %g | Include close price: %t\n\n",
		r.Params.PriceThreshold, r.Params.ConfidenceThreshold, r.Params.IncludeClosePrice))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Pairs | %d |\n", r.Summary.TotalPairs))
	sb.WriteString(fmt.Sprintf("| Self Hedges | %d |\n", r.Summary.SelfHedges))
	sb.WriteString(fmt.Sprintf("| Inter-User Hedges | %d |\n", r.Summary.InterUserHedges))
	sb.WriteString(fmt.Sprintf("| Average Confidence | %.4f |\n", r.Summary.AvgConfidence))
	sb.WriteString(fmt.Sprintf("| Unique Users | %d (%.2f%%) |\n", r.Summary.UniqueUsers, r.Summary.UsersPercentage))
	sb.WriteString(fmt.Sprintf("| Unique Accounts | %d (%.2f%%) |\n", r.Summary.UniqueAccounts, r.Summary.AccountsPercentage))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString(fmt.Sprintf("Rows read: %d | valid: %d | parsed: %d\n\n",
		r.DataQuality.RowsRead, r.DataQuality.RowsValid, r.DataQuality.RowsParsed))
	sb.WriteString(fmt.Sprintf("Candidates: %d | admitted: %d | skipped: %d\n\n",
		r.Pairing.Candidates, r.Pairing.Admitted, r.Pairing.Skipped))
	defects := append(append([]string{}, r.DataQuality.Defects...), r.Pairing.Defects...)
	if len(defects) > 0 {
		for _, d := range defects {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No defects.\n\n")
	}

	// Confidence
	sb.WriteString("## Confidence Distribution\n\n")
	sb.WriteString("| Range | Pairs |\n")
	sb.WriteString("|-------|-------|\n")
	for _, b := range r.Histograms.Confidence {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", b.Label, b.Count))
	}
	sb.WriteString("\n")

	// Patterns
	sb.WriteString("## Frequent Users\n\n")
	if len(r.Patterns.FrequentUsers) > 0 {
		sb.WriteString("| User | Pairs |\n")
		sb.WriteString("|------|-------|\n")
		for _, u := range r.Patterns.FrequentUsers {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", u.UserID, u.Count))
		}
	} else {
		sb.WriteString("No users with repeated hedges.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Peak Hours\n\n")
	if len(r.Patterns.PeakHours) > 0 {
		sb.WriteString("| Hour | Pairs | % |\n")
		sb.WriteString("|------|-------|---|\n")
		for _, h := range r.Patterns.PeakHours {
			sb.WriteString(fmt.Sprintf("| %02d:00 | %d | %.2f |\n", h.Hour, h.Count, h.Percentage))
		}
	} else {
		sb.WriteString("No peak hours.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Assets\n\n")
	if len(r.Patterns.Assets) > 0 {
		sb.WriteString("| Asset | Pairs | % |\n")
		sb.WriteString("|-------|-------|---|\n")
		for _, a := range r.Patterns.Assets {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f |\n", a.Asset, a.Count, a.Percentage))
		}
	} else {
		sb.WriteString("No assets.\n")
	}
	sb.WriteString("\n")

	// Pairs
	sb.WriteString("## Pairs\n\n")
	if len(r.Pairs) == 0 {
		sb.WriteString("No hedge pairs found.\n")
		return sb.String()
	}
	sb.WriteString("| ID | Type | Asset | Confidence | Trade A | Trade B | Users | Net Profit |\n")
	sb.WriteString("|----|------|-------|------------|---------|---------|-------|------------|\n")
	for i, p := range r.Pairs {
		if i == MarkdownTopPairs {
			sb.WriteString(fmt.Sprintf("\n%d more pairs in the CSV/JSON export.\n", len(r.Pairs)-MarkdownTopPairs))
			break
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %s %s | %s %s | %s / %s | %s |\n",
			p.ID, p.PairType, p.Asset, p.Confidence,
			p.TradeA.Direction, p.TradeA.TradeHash,
			p.TradeB.Direction, p.TradeB.TradeHash,
			p.TradeA.UserID, p.TradeB.UserID,
			p.NetProfitSum))
	}

	return sb.String()
}
