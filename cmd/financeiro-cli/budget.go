package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"financeiro/internal/cli"
	"financeiro/internal/core"
)

var (
	flagMonth        string
	flagValue        string
	flagDescription  string
	flagCategory     string
	flagMethod       string
	flagInstallments int
)

func parseMonthFlag() (core.Month, error) {
	if strings.TrimSpace(flagMonth) == "" {
		return core.CanonicalMonth(time.Now()), nil
	}
	return core.ParseMonth(flagMonth)
}

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "List the twelve months offered by the month selector",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, m := range core.UpcomingMonths(time.Now(), 12) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", m.Format("2006-01"), m.Label())
		}
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the month summary of --user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := userContext()
		if err != nil {
			return err
		}
		month, err := parseMonthFlag()
		if err != nil {
			return err
		}
		result, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend(result)

		s, err := result.Service.MonthSummary(ctx, month)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cli.RenderTitle(fmt.Sprintf("RESUMO %s  %s", month.Label(), flagUser)))
		limit := "não definido"
		if s.HasCardLimit {
			limit = s.CardLimit.Format()
		}
		fmt.Fprint(out, cli.RenderTable(cli.Table{
			Rows: [][]string{
				{"Receitas", s.TotalIncome.Format()},
				{"Despesas", s.TotalExpenses.Format()},
				{"Saldo", cli.FormatSigned(s.Balance)},
				{"---"},
				{"Cartão de crédito", s.CreditCardExpenses.Format()},
				{"Limite", limit},
				{"Disponível", cli.FormatSigned(s.Available)},
				{"Acima do limite", cli.FormatFlag(s.OverLimit, "sim", "não")},
				{"Parcelas futuras", s.FutureInstallments.Format()},
			},
		}))

		if len(s.ByCategory) > 0 {
			rows := make([][]string, 0, len(s.ByCategory))
			for _, c := range s.ByCategory {
				rows = append(rows, []string{c.Name, c.Amount.Format()})
			}
			fmt.Fprint(out, cli.RenderTable(cli.Table{Title: "Por categoria", Headers: []string{"Categoria", "Valor"}, Rows: rows}))
		}
		if len(s.Expenses) > 0 {
			rows := make([][]string, 0, len(s.Expenses))
			for _, e := range s.Expenses {
				rows = append(rows, []string{e.Description, string(e.Category), string(e.PaymentMethod), e.Value.Format()})
			}
			fmt.Fprint(out, cli.RenderTable(cli.Table{
				Title:   "Despesas",
				Headers: []string{"Descrição", "Categoria", "Pagamento", "Valor"},
				Rows:    rows,
			}))
		}
		return nil
	},
}

var addExpenseCmd = &cobra.Command{
	Use:   "add-expense",
	Short: "Record a purchase for --user, split into installments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := userContext()
		if err != nil {
			return err
		}
		month, err := parseMonthFlag()
		if err != nil {
			return err
		}
		total, err := core.ParseMoney(flagValue)
		if err != nil {
			return fmt.Errorf("--value: %w", err)
		}
		result, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend(result)

		rows, err := result.Service.AddExpense(ctx, core.InstallmentRequest{
			Total:         total,
			Description:   flagDescription,
			Category:      core.Category(flagCategory),
			PaymentMethod: core.PaymentMethod(flagMethod),
			Installments:  flagInstallments,
			StartMonth:    month,
		})
		for _, e := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "#%d  %s  %s  %s\n", e.ID, e.Month.Label(), e.Description, e.Value.Format())
		}
		var pbe *core.PartialBatchError
		if errors.As(err, &pbe) {
			return fmt.Errorf("%d of %d installments were not saved: %w", pbe.Failed, pbe.Attempted, pbe.First)
		}
		return err
	},
}

var addIncomeCmd = &cobra.Command{
	Use:   "add-income",
	Short: "Record an income entry for --user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := userContext()
		if err != nil {
			return err
		}
		month, err := parseMonthFlag()
		if err != nil {
			return err
		}
		value, err := core.ParseMoney(flagValue)
		if err != nil {
			return fmt.Errorf("--value: %w", err)
		}
		result, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend(result)

		in, err := result.Service.AddIncome(ctx, value, flagDescription, month)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "#%d  %s  %s\n", in.ID, in.Month.Label(), in.Value.Format())
		return nil
	},
}

var setLimitCmd = &cobra.Command{
	Use:   "set-limit",
	Short: "Set the credit card limit of --user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := userContext()
		if err != nil {
			return err
		}
		var limit core.Money
		if strings.TrimSpace(flagValue) != "0" {
			if limit, err = core.ParseMoney(flagValue); err != nil {
				return fmt.Errorf("--value: %w", err)
			}
		}
		result, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend(result)

		if err := result.Service.SetCardLimit(ctx, limit); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "card limit of %s set to %s\n", flagUser, limit.Format())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{summaryCmd, addExpenseCmd, addIncomeCmd} {
		c.Flags().StringVarP(&flagMonth, "month", "m", "", "Month as YYYY-MM (default: current month)")
	}
	for _, c := range []*cobra.Command{addExpenseCmd, addIncomeCmd, setLimitCmd} {
		c.Flags().StringVar(&flagValue, "value", "", "Amount, e.g. 1200,50")
		_ = c.MarkFlagRequired("value")
	}
	addExpenseCmd.Flags().StringVarP(&flagDescription, "description", "d", "", "Purchase description")
	addExpenseCmd.Flags().StringVarP(&flagCategory, "category", "c", string(core.Outros),
		"Category: "+joinCategories())
	addExpenseCmd.Flags().StringVar(&flagMethod, "method", string(core.PaymentPix),
		"Payment method: money, credit_card, debit_card or pix")
	addExpenseCmd.Flags().IntVarP(&flagInstallments, "installments", "i", 1, "Number of monthly installments (1-12)")
	addIncomeCmd.Flags().StringVarP(&flagDescription, "description", "d", "", "Optional description")

	rootCmd.AddCommand(monthsCmd, summaryCmd, addExpenseCmd, addIncomeCmd, setLimitCmd)
}

func joinCategories() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
