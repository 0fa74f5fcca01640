package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/services"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pazaryeri stok/fiyat senkron planları",
	Long: `Tedarikçi önbelleği ile yerel pazaryeri görüntüsünü karşılaştırıp plan çıkarır.

  direct: tek kaynağın feed'i ile stok kodu üzerinden tam eşitleme (yeni ürünler ve sıfırlamalar dahil)
  stock : tüm kaynaklardan stok
  price : tüm kaynaklardan fiyat kuralları ile satış fiyatı

Plan önce Excel'e yazılır; --apply verilirse iş kuyruğunda yerel görüntüye uygulanır.`,
}

var (
	syncSource int64
	syncApply  bool
	syncYes    bool
	syncOut    string
)

var syncPlanCmd = &cobra.Command{
	Use:   "plan [direct|stock|price] [pazaryeri]",
	Short: "Senkron planı çıkar, Excel'e yaz ve istenirse uygula",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[1])
		if err != nil {
			return err
		}
		return runSyncPlan(cmd.Context(), args[0], mp, syncSource, syncApply, syncYes)
	},
}

func runSyncPlan(ctx context.Context, kind string, mp core.Marketplace, sourceID int64, apply, yes bool) error {
	var plan *services.SyncPlan
	var err error
	switch kind {
	case services.PlanDirect:
		if sourceID == 0 {
			return fmt.Errorf("direct senkron için --source gerekli")
		}
		plan, err = a.sync.PlanDirectSync(ctx, a.userID, mp, sourceID)
	case services.PlanStock:
		plan, err = a.sync.PlanStockSync(ctx, a.userID, mp)
	case services.PlanPrice:
		plan, err = a.sync.PlanPriceSync(ctx, a.userID, mp)
	default:
		return fmt.Errorf("bilinmeyen plan türü %q (direct, stock, price)", kind)
	}
	if err != nil {
		return err
	}

	printPlan(plan)
	if plan.Empty() {
		fmt.Println("[OK] Güncellenecek ürün yok.")
		return nil
	}

	out := syncOut
	if out == "" {
		out = filepath.Join(a.cfg.App.UploadDir, fmt.Sprintf("plan_%s_%s_%s.xlsx", kind, mp, time.Now().Format("20060102_1504")))
	}
	if apply && !yes && !a.confirm(fmt.Sprintf("%d güncelleme uygulansın mı?", len(plan.Updates))) {
		apply = false
	}
	if !apply {
		if err := services.ExportUpdatePlan(out, plan); err != nil {
			return err
		}
		fmt.Printf("[INFO] Plan '%s' dosyasına yazıldı, uygulanmadı.\n", out)
		return nil
	}

	// pazaryeri istemcisi yok: plan dosyası panelden yüklenir, yerel görüntü burada güncellenir
	jobID, err := a.sync.SubmitPlan(plan, nil, out)
	if err != nil {
		return err
	}
	if _, err := a.waitJob(ctx, jobID); err != nil {
		return err
	}
	fmt.Printf("[INFO] Plan '%s' dosyasına yazıldı.\n", out)
	return nil
}

func printPlan(plan *services.SyncPlan) {
	fmt.Printf("\n[%s] %s planı: %d güncelleme (%d sıfırlama), %d yeni ürün\n",
		plan.Marketplace.DisplayName(), plan.Kind, len(plan.Updates), plan.Zeroed, len(plan.Creates))
	for _, it := range plan.Samples {
		line := fmt.Sprintf("  %-6s %-16s", it.Action, it.Barcode)
		if it.Quantity != nil {
			line += fmt.Sprintf(" stok %d -> %d", it.PrevQuantity, *it.Quantity)
		}
		if it.Price != nil {
			line += fmt.Sprintf(" fiyat %s -> %s", it.PrevPrice.StringFixed(2), it.Price.StringFixed(2))
		}
		fmt.Println(line)
	}
	if plan.MissingTotal > 0 {
		fmt.Printf("[!] %d ürün hiçbir kaynakta bulunamadı. İlk %d: %v\n", plan.MissingTotal, len(plan.Missing), plan.Missing)
	}
	if len(plan.SkippedZeroPrice) > 0 {
		fmt.Printf("[!] %d ürünün kaynak fiyatı 0, atlandı: %v\n", len(plan.SkippedZeroPrice), plan.SkippedZeroPrice)
	}
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Excel ile toplu fiyat/stok düzenleme",
}

var bulkExportCmd = &cobra.Command{
	Use:   "export [pazaryeri] [dosya]",
	Short: "Pazaryeri listesini düzenleme dosyasına yaz",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		n, err := a.sync.ExportBulkEdit(cmd.Context(), a.userID, mp, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d ürün '%s' dosyasına yazıldı. İŞLEM sütununa +10, -5, *1.2, /2 ya da yeni fiyat girin.\n", n, args[1])
		return nil
	},
}

var bulkApplyCmd = &cobra.Command{
	Use:   "apply [pazaryeri] [dosya]",
	Short: "Düzenlenmiş dosyayı oku, koruma sınırını aşanlar için onay iste ve uygula",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		res, err := a.sync.ApplyBulkEdit(args[1])
		if err != nil {
			return err
		}
		printRowErrors(res.Errors)

		changes := res.Changes
		for _, g := range res.Guarded {
			fmt.Printf("\n[UYARI] %s (%s) fiyatı olağan dışı değişiyor: %s\n", g.Title, g.Barcode, g.GuardNote)
			if a.confirm("Bu değişiklik onaylanıyor mu?") {
				changes = append(changes, g)
			}
		}
		if len(changes) == 0 {
			fmt.Println("[!] Uygulanacak değişiklik yok.")
			return nil
		}

		n, err := a.sync.CommitBulkEdit(cmd.Context(), a.userID, mp, changes)
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d değişiklik yerel görüntüye yazıldı.\n", n)
		return nil
	},
}

func init() {
	syncPlanCmd.Flags().Int64Var(&syncSource, "source", 0, "direct plan için kaynak id")
	syncPlanCmd.Flags().BoolVar(&syncApply, "apply", false, "planı iş kuyruğunda uygula")
	syncPlanCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "onay sorma")
	syncPlanCmd.Flags().StringVarP(&syncOut, "out", "o", "", "plan dosyası (varsayılan: upload klasörü)")

	syncCmd.AddCommand(syncPlanCmd)
	bulkCmd.AddCommand(bulkExportCmd, bulkApplyCmd)
	rootCmd.AddCommand(syncCmd, bulkCmd)
}
