package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantfold/insider-flow/internal/aggregate"
	"github.com/quantfold/insider-flow/internal/cli"
	"github.com/quantfold/insider-flow/internal/model"
	"github.com/quantfold/insider-flow/internal/service"
)

// RenderRunSummary renders the run accounting and headline stats as a
// styled terminal box.
func RenderRunSummary(run *service.RunRecord, buckets []aggregate.BucketStats, strategy aggregate.StrategyStats, curve *aggregate.CalendarCurve) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Window:       %s to %s\n",
		run.StartDate.Format("2006-01-02"),
		run.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Horizon:      %d trading days\n", run.Horizon)
	fmt.Fprintf(&b, "Threshold:    %s\n", run.Threshold)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Transactions in:    %d\n", run.TotalIn)
	fmt.Fprintf(&b, "Events constructed: %d\n", run.Constructed)
	fmt.Fprintf(&b, "Events included:    %d\n", run.Included)
	if total := totalExcluded(run.Excluded); total > 0 {
		fmt.Fprintf(&b, "Excluded:           %d\n", total)
		for _, reason := range sortedReasons(run.Excluded) {
			fmt.Fprintf(&b, "  %-30s %d\n", string(reason), run.Excluded[reason])
		}
	}
	b.WriteString("\n")

	for _, bucket := range buckets {
		line := fmt.Sprintf("%-11s n=%-5d mean=%7.2f%%  median=%7.2f%%",
			string(bucket.Bucket), bucket.Count, bucket.Mean*100, bucket.Median*100)
		b.WriteString(cli.FormatReturn(line, bucket.Mean))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Total return:  %s\n",
		cli.FormatReturn(fmt.Sprintf("%.2f%%", strategy.TotalReturn*100), strategy.TotalReturn))
	fmt.Fprintf(&b, "Hit rate:      %.1f%%\n", strategy.HitRate*100)
	fmt.Fprintf(&b, "Sharpe (ann.): %.2f\n", strategy.Sharpe)
	fmt.Fprintf(&b, "Max drawdown:  %s\n",
		cli.FormatReturn(fmt.Sprintf("%.2f%%", curve.MaxDrawdown*100), curve.MaxDrawdown))
	fmt.Fprintf(&b, "Final equity:  %.4f", curve.FinalEquity())

	return cli.RenderBox("Insider Purchase Event Study", b.String())
}

func totalExcluded(excluded map[model.ExclusionReason]int) int {
	total := 0
	for _, n := range excluded {
		total += n
	}
	return total
}

func sortedReasons(excluded map[model.ExclusionReason]int) []model.ExclusionReason {
	reasons := make([]model.ExclusionReason, 0, len(excluded))
	for r := range excluded {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
