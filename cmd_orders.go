package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/services"

	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Sipariş içe aktarma ve BUG-Z aktarımı",
}

var ordersImportCmd = &cobra.Command{
	Use:   "import [pazaryeri] [excel-dosyası]",
	Short: "Pazaryeri sipariş raporunu içe aktar; yeni siparişler BUG-Z'ye iletilir",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		return runOrderImport(cmd.Context(), mp, args[1])
	},
}

func runOrderImport(ctx context.Context, mp core.Marketplace, path string) error {
	res, err := a.orders.ImportOrdersFromExcel(ctx, a.userID, mp, path)
	if err != nil {
		return err
	}
	fmt.Printf("[OK] %d sipariş (%d yeni, %d güncellendi), %d kalem okundu.\n", res.Orders, len(res.Inserted), res.Updated, res.Items)
	printRowErrors(res.Errors)
	if res.ForwardJobID != "" {
		if _, err := a.waitJob(ctx, res.ForwardJobID); err != nil {
			return err
		}
	}
	return nil
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Siparişleri tarih aralığına göre listele",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dateRange(cmd)
		if err != nil {
			return err
		}
		orders, err := a.store.Orders(cmd.Context(), a.userID, from, to)
		if err != nil {
			return err
		}
		for _, o := range orders {
			fmt.Printf("%5d | %-12s | %-14s | %s | %-16s | %10s | net %10s | %s\n", o.ID, o.Marketplace.DisplayName(),
				o.OrderNumber, o.OrderDate.Local().Format("02.01.2006"), o.Status, o.TotalPrice.StringFixed(2),
				o.NetProfit.StringFixed(2), o.AdminNote)
		}
		fmt.Printf("Toplam %d sipariş.\n", len(orders))
		return nil
	},
}

var ordersForwardCmd = &cobra.Command{
	Use:   "forward [sipariş-id...]",
	Short: "Siparişleri BUG-Z'ye elle ilet",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		jobID, err := a.bugz.SubmitForward(cmd.Context(), a.userID, ids)
		if errors.Is(err, core.ErrNotConfigured) {
			return fmt.Errorf("%w: 'vidos settings set BUGZ_API_KEY ...' ve BUGZ_API_SECRET ayarlayın", err)
		}
		if err != nil {
			return err
		}
		_, err = a.waitJob(cmd.Context(), jobID)
		return err
	},
}

var bugzCheckCmd = &cobra.Command{
	Use:   "bugz-check",
	Short: "BUG-Z API bağlantısını ve anahtarları test et",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := services.NewBugZClient(cmd.Context(), a.store, a.userID, a.cfg.BugZ)
		if err != nil {
			return err
		}
		if err := c.CheckConnection(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("[OK] BUG-Z bağlantısı başarılı.")
		return nil
	},
}

var financeCmd = &cobra.Command{
	Use:   "finance",
	Short: "Sipariş kârlılığı ve finansal özet",
}

var financeOrderCmd = &cobra.Command{
	Use:   "order [sipariş-id]",
	Short: "Tek siparişin kârını hesapla ve kaydet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("geçersiz sipariş id: %q", args[0])
		}
		o, err := a.store.Order(cmd.Context(), a.userID, id)
		if err != nil {
			return err
		}
		res, err := a.finance.CalculateOrderProfit(cmd.Context(), o, true)
		if err != nil {
			return err
		}
		fmt.Printf("Sipariş %s (%s)\n", o.OrderNumber, o.Marketplace.DisplayName())
		fmt.Printf("  Satış      : %12s\n", res.GrossSales.StringFixed(2))
		fmt.Printf("  Kesintiler : %12s\n", res.TotalDeductions.StringFixed(2))
		fmt.Printf("  Ürün maliy.: %12s\n", res.TotalCost.StringFixed(2))
		fmt.Printf("  Net kâr    : %12s\n", res.NetProfit.StringFixed(2))
		fmt.Printf("  ROI %%%s | Marj %%%s\n", res.ROI.StringFixed(2), res.Margin.StringFixed(2))
		if len(res.MissingCost) > 0 {
			fmt.Printf("[!] Maliyeti bilinmeyen ürünler 0 sayıldı: %v\n", res.MissingCost)
		}
		return nil
	},
}

var financeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Tarih aralığı için ciro, kâr ve pazaryeri kırılımı",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dateRange(cmd)
		if err != nil {
			return err
		}
		return printSummary(cmd.Context(), from, to)
	},
}

var financeRecalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Aralıktaki tüm siparişlerin kârını iş kuyruğunda yeniden hesapla",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dateRange(cmd)
		if err != nil {
			return err
		}
		jobID, err := a.finance.SubmitRecalculate(a.userID, from, to)
		if err != nil {
			return err
		}
		_, err = a.waitJob(cmd.Context(), jobID)
		return err
	},
}

func printSummary(ctx context.Context, from, to time.Time) error {
	sum, err := a.finance.FinancialSummary(ctx, a.userID, from, to)
	if err != nil {
		return err
	}
	fmt.Println("\n" + strings.Repeat("=", 45))
	fmt.Println("           FİNANSAL ÖZET")
	fmt.Println(strings.Repeat("=", 45))
	fmt.Printf("Sipariş sayısı : %d\n", sum.OrderCount)
	fmt.Printf("Ciro           : %12s\n", sum.Revenue.StringFixed(2))
	fmt.Printf("Komisyon       : %12s\n", sum.TotalCommission.StringFixed(2))
	fmt.Printf("Kargo          : %12s\n", sum.TotalShipping.StringFixed(2))
	fmt.Printf("Ürün maliyeti  : %12s\n", sum.TotalProductCost.StringFixed(2))
	fmt.Printf("Net kâr        : %12s (marj %%%s)\n", sum.NetProfit.StringFixed(2), sum.NetMargin.StringFixed(2))
	fmt.Println(strings.Repeat("-", 45))
	for _, m := range sum.ByMarketplace {
		fmt.Printf("%-12s %4d sipariş | ciro %12s | net %12s\n", m.Marketplace.DisplayName(), m.OrderCount,
			m.Revenue.StringFixed(2), m.NetProfit.StringFixed(2))
	}
	if len(sum.MissingCost) > 0 {
		fmt.Printf("\n[!] %d siparişte maliyeti bilinmeyen ürün var: %v\n", len(sum.MissingCost), sum.MissingCost)
	}
	return nil
}

func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseDateFlag(fromStr, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDateFlag(toStr, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("geçersiz id: %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	for _, c := range []*cobra.Command{ordersListCmd, financeSummaryCmd, financeRecalcCmd} {
		c.Flags().String("from", "", "başlangıç tarihi (gg.aa.yyyy)")
		c.Flags().String("to", "", "bitiş tarihi (gg.aa.yyyy, gün dahil)")
	}

	ordersCmd.AddCommand(ordersImportCmd, ordersListCmd, ordersForwardCmd, bugzCheckCmd)
	financeCmd.AddCommand(financeOrderCmd, financeSummaryCmd, financeRecalcCmd)
	rootCmd.AddCommand(ordersCmd, financeCmd)
}
