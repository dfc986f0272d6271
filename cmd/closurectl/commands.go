package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	financeapp "github.com/schoolerp/backend/internal/application/finance"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newReferenceCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Issue and reconcile receipt references",
	}

	var className, kind string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue the next receipt reference for a class and revenue kind",
		Example: `  closurectl -s $SCHOOL -y 2025-2026 reference issue --class "6ème A" --kind scolarite`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := st.app.Issuer.IssueReference(cmd.Context(), st.scope, financeapp.IssueReferenceRequest{
				ClassName: className,
				Kind:      kind,
			})
			if err != nil {
				return err
			}
			if !ref.Sequential {
				pterm.Warning.Println("Sequence store unavailable, issued a non-sequential reference")
			}
			pterm.Success.Println(ref.Reference)
			return nil
		},
	}
	issue.Flags().StringVarP(&className, "class", "c", "", "Class name")
	issue.Flags().StringVarP(&kind, "kind", "k", "", "Revenue kind (tuition, canteen, ...)")

	var page int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List revenues carrying a non-sequential fallback reference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := st.app.Transactions.ListNonSequential(cmd.Context(), st.scope, shared.Filter{Page: page, PageSize: 50})
			if err != nil {
				return err
			}
			if len(result.Items) == 0 {
				pterm.Info.Println("No non-sequential references to reconcile")
				return nil
			}
			data := pterm.TableData{{"Reference", "Date", "Kind", "Amount", "Class"}}
			for _, r := range result.Items {
				data = append(data, []string{r.Reference, r.Date, r.Kind, r.Amount.StringFixed(2), r.ClassName})
			}
			pterm.Info.Printf("Page %d of %d, %d in total\n", result.Page, result.TotalPages, result.Total)
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	pending.Flags().IntVarP(&page, "page", "p", 1, "Page number")

	cmd.AddCommand(issue, pending)
	return cmd
}

func newLedgerCmd(st *cliState) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the aggregated ledger of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := st.app.Ledger.Aggregate(cmd.Context(), st.scope, date)
			if err != nil {
				return err
			}

			rows := pterm.TableData{{"Type", "Reference / Category", "Method", "Amount"}}
			for _, r := range ledger.Revenues {
				rows = append(rows, []string{"in", r.Reference, string(r.PaymentMethod), r.Amount.StringFixed(2)})
			}
			for _, e := range ledger.Expenses {
				rows = append(rows, []string{"out", string(e.Category), string(e.PaymentMethod), e.Amount.Neg().StringFixed(2)})
			}
			pterm.DefaultSection.Printf("Ledger of %s", ledger.Date)
			if len(rows) > 1 {
				if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
					return err
				}
			} else {
				pterm.Warning.Println("No transactions recorded on this day")
			}

			return printKeyValues("Totals", [][]string{
				{"Income", ledger.TotalIncome.StringFixed(2)},
				{"Expenses", ledger.TotalExpenses.StringFixed(2)},
				{"Net balance", ledger.NetBalance.StringFixed(2)},
				{"Tuition share", strconv.Itoa(ledger.TuitionShare) + "%"},
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to aggregate (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newClosureCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closure",
		Short: "Inspect and validate daily closures",
	}

	var (
		date          string
		justification string
	)
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the closure of a day, recording a justification when the cash does not match",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := financeapp.ValidateByDateRequest{Date: date}
			if cmd.Flags().Changed("justification") {
				req.Justification = &justification
			}
			closure, err := st.app.Closures.ValidateByDate(cmd.Context(), st.scope, req)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Closure of %s validated\n", closure.Date)
			return printClosure(closure)
		},
	}
	validate.Flags().StringVarP(&date, "date", "d", "", "Closure day (YYYY-MM-DD)")
	validate.Flags().StringVarP(&justification, "justification", "j", "", "Explanation of a non-zero variance")
	_ = validate.MarkFlagRequired("date")

	var opening, cash string
	open := &cobra.Command{
		Use:   "open",
		Short: "Open a draft closure with the counted cash of a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := financeapp.CreateClosureRequest{Date: date}
			var err error
			if req.OpeningCash, err = decimal.NewFromString(opening); err != nil {
				return fmt.Errorf("--opening: %w", err)
			}
			if req.CashOnHand, err = decimal.NewFromString(cash); err != nil {
				return fmt.Errorf("--cash: %w", err)
			}
			closure, err := st.app.Closures.Create(cmd.Context(), st.scope, req)
			if err != nil {
				return err
			}
			if closure.RequiresJustification {
				pterm.Warning.Printf("Variance of %s must be justified before validation\n", closure.Variance.StringFixed(2))
			}
			return printClosure(closure)
		},
	}
	open.Flags().StringVarP(&date, "date", "d", "", "Closure day (YYYY-MM-DD)")
	open.Flags().StringVar(&opening, "opening", "0", "Cash in the drawer at the start of the day")
	open.Flags().StringVar(&cash, "cash", "0", "Cash counted at the end of the day")
	_ = open.MarkFlagRequired("date")

	var status, from, to string
	list := &cobra.Command{
		Use:   "list",
		Short: "List closures by status and date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" && !finance.ClosureStatus(status).IsValid() {
				return fmt.Errorf("--status must be draft or completed, got %q", status)
			}
			result, err := st.app.Closures.List(cmd.Context(), st.scope, financeapp.ClosureListFilter{
				Status:   status,
				DateFrom: from,
				DateTo:   to,
				Page:     1,
				PageSize: 100,
			})
			if err != nil {
				return err
			}
			if len(result.Items) == 0 {
				pterm.Info.Println("No closures found")
				return nil
			}
			data := pterm.TableData{{"Date", "Status", "Net", "Variance", "Justified"}}
			for _, c := range result.Items {
				justified := "-"
				if c.RequiresJustification {
					justified = strconv.FormatBool(c.Justification != "" && !c.JustificationStale)
				}
				data = append(data, []string{c.Date, c.Status, c.NetBalance.StringFixed(2), c.Variance.StringFixed(2), justified})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	list.Flags().StringVar(&status, "status", "", "draft or completed")
	list.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	list.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")

	cmd.AddCommand(open, validate, list)
	return cmd
}

func printClosure(c *financeapp.ClosureResponse) error {
	return printKeyValues("Closure "+c.ID.String(), [][]string{
		{"Date", c.Date},
		{"Status", c.Status},
		{"Income", c.TotalIncome.StringFixed(2)},
		{"Expenses", c.TotalExpenses.StringFixed(2)},
		{"Expected cash", c.ExpectedCash.StringFixed(2)},
		{"Cash on hand", c.CashOnHand.StringFixed(2)},
		{"Variance", c.Variance.StringFixed(2)},
		{"Justification", c.Justification},
	})
}

func newTreasuryCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Treasury analysis",
	}

	var fr, bfr, from, to string
	wc := &cobra.Command{
		Use:   "working-capital",
		Short: "Compute FR, BFR and net treasury, raising alerts on imbalance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := financeapp.WorkingCapitalRequest{PeriodFrom: from, PeriodTo: to}
			var err error
			if req.FundOfRollingCapital, err = optionalDecimal(fr); err != nil {
				return fmt.Errorf("--fr: %w", err)
			}
			if req.LiquidityNeed, err = optionalDecimal(bfr); err != nil {
				return fmt.Errorf("--bfr: %w", err)
			}

			snap, err := st.app.Treasury.ComputeWorkingCapital(cmd.Context(), st.scope, req)
			if err != nil {
				return err
			}
			if err := printKeyValues("Working capital", [][]string{
				{"Fund of rolling capital (FR)", snap.FundOfRollingCapital.StringFixed(2)},
				{"Liquidity need (BFR)", snap.LiquidityNeed.StringFixed(2)},
				{"Net treasury", snap.NetTreasury.StringFixed(2)},
				{"Period net balance", snap.NetBalance.StringFixed(2)},
				{"Accounts balance", snap.AccountsBalance.StringFixed(2)},
				{"Status", string(snap.Status)},
			}); err != nil {
				return err
			}
			for _, a := range snap.Alerts {
				pterm.Warning.Printf("%s: %s\n", a.Kind, a.Message)
			}
			return nil
		},
	}
	wc.Flags().StringVar(&fr, "fr", "", "Fund of rolling capital")
	wc.Flags().StringVar(&bfr, "bfr", "", "Working capital requirement")
	wc.Flags().StringVar(&from, "from", "", "Period start for ledger totals (YYYY-MM-DD)")
	wc.Flags().StringVar(&to, "to", "", "Period end for ledger totals (YYYY-MM-DD)")

	cmd.AddCommand(wc)
	return cmd
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
