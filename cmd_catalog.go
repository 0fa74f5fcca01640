package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/services"

	"github.com/spf13/cobra"
)

var barcodeAll bool

var barcodeCmd = &cobra.Command{
	Use:   "barcode",
	Short: "Ana ürün kataloğunda EAN-13 barkod üretimi",
}

var barcodeFillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Barkodu boş ya da zayıf ürünlere benzersiz EAN-13 üret (--all ile tüm barkodları yenile)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBarcodeFill(cmd.Context(), barcodeAll)
	},
}

func runBarcodeFill(ctx context.Context, all bool) error {
	if all && !a.confirm("TÜM ürünlerin barkodu yenilenecek. Emin misiniz?") {
		fmt.Println("[!] İptal edildi.")
		return nil
	}

	report := filepath.Join(a.cfg.App.UploadDir, fmt.Sprintf("barkod_raporu_%s.txt", time.Now().Format("20060102_150405")))
	jobID, err := a.queue.Submit(services.JobSpec{
		UserID:    a.userID,
		JobType:   services.JobBarcodeFill,
		Exclusive: true,
		Run: func(ctx context.Context, h *services.JobHandle) (services.JobResult, error) {
			var changes []services.BarcodeChange
			var err error
			if all {
				changes, err = a.barcodes.OverrideAllBarcodes(ctx, a.userID, h)
			} else {
				changes, err = a.barcodes.BulkGenerateMissingBarcodes(ctx, a.userID, h)
			}
			res := services.JobResult{ProductCount: len(changes), SuccessCount: len(changes)}
			if err != nil {
				return res, err
			}
			if len(changes) == 0 {
				h.Logf("info", "Barkodu eksik ürün yok")
				return res, nil
			}
			if err := os.MkdirAll(filepath.Dir(report), 0o755); err != nil {
				return res, err
			}
			if err := os.WriteFile(report, []byte(services.BarcodeReport(changes, time.Now())), 0o644); err != nil {
				h.Logf("warning", "Rapor yazılamadı: %v", err)
			} else {
				h.Logf("info", "Rapor: %s", report)
			}
			return res, nil
		},
	})
	if err != nil {
		return err
	}
	_, err = a.waitJob(ctx, jobID)
	return err
}

var listingsMaster bool

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Pazaryeri panel listeleri",
}

var listingsImportCmd = &cobra.Command{
	Use:   "import [pazaryeri] [excel-dosyası]",
	Short: "Panelden indirilen ürün listesini yerel görüntüye aktar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		res, err := a.listings.ImportListingsFromExcel(cmd.Context(), a.userID, mp, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d ürün aktarıldı, %d satır atlandı.\n", res.Imported, res.Skipped)
		printRowErrors(res.Errors)
		if !listingsMaster {
			return nil
		}
		n, err := a.listings.SyncListingsToMaster(cmd.Context(), a.userID, mp)
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d ürün ana kataloğa işlendi.\n", n)
		return nil
	},
}

var listingsCompareCmd = &cobra.Command{
	Use:   "compare [gönderilen-excel] [panel-excel] [çıktı]",
	Short: "Gönderilen dosyadaki barkodlardan panelde olmayanları bul",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		missing, err := a.listings.CompareBarcodes(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			fmt.Println("[OK] Tüm barkodlar panelde mevcut.")
			return nil
		}
		fmt.Printf("[!] %d barkod panelde yok, liste '%s' dosyasına yazıldı.\n", len(missing), args[2])
		return nil
	},
}

var (
	fillNameCol int
	fillIDCol   int
	checkBrand  string
	checkCat    string
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Pazaryeri kategori ağacı, eşleştirme ve yasaklı liste",
}

var categoryImportCmd = &cobra.Command{
	Use:   "import [platform] [ağaç.json]",
	Short: "Platform kategori ağacını JSON dosyasından yükle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var tree []core.CategoryNode
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("kategori ağacı okunamadı: %w", err)
		}
		n, err := a.category.ImportCategoryTree(cmd.Context(), args[0], tree)
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %s için %d kategori kaydedildi.\n", args[0], n)
		return nil
	},
}

var categoryMatchCmd = &cobra.Command{
	Use:   "match [platform] [kategori-adı]",
	Short: "Kaynak kategori adı için en yakın yaprak kategorileri bul",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")
		res, err := a.category.MatchCategory(cmd.Context(), a.userID, args[0], name)
		if err != nil {
			return err
		}
		if res.Auto {
			fmt.Printf("[OK] %s -> %s (ID: %s)\n", name, res.Name, res.ID)
			return nil
		}
		if len(res.Candidates) == 0 {
			fmt.Println("[!] Aday bulunamadı. Önce 'vidos category import' ile ağacı yükleyin.")
			return nil
		}
		id := a.chooseCategory(name, res.Candidates)
		if id == "" {
			return nil
		}
		if err := a.store.SaveCategoryMapping(cmd.Context(), a.userID, args[0], name, id); err != nil {
			return err
		}
		fmt.Printf("[OK] %s -> %s kaydedildi.\n", name, id)
		return nil
	},
}

var categoryFillCmd = &cobra.Command{
	Use:   "fill [platform] [excel-dosyası]",
	Short: "Excel'deki kategori adlarının ID'lerini doldur",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := a.category.FillCategoryIDs(cmd.Context(), a.userID, args[0], args[1], fillNameCol, fillIDCol, a.chooseCategory)
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d satır işlendi, %d kategori çözüldü.\n", res.Rows, len(res.Resolved))
		if len(res.Unresolved) > 0 {
			fmt.Printf("[!] Çözülemeyen kategoriler: %s\n", strings.Join(res.Unresolved, ", "))
		}
		return nil
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "blacklist [brand|category|word] [değer]",
	Short: "Yasaklı marka, kategori ya da kelime ekle",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := core.BlacklistKind(strings.ToLower(args[0]))
		switch kind {
		case core.BlacklistBrand, core.BlacklistCategory, core.BlacklistWord:
		default:
			return fmt.Errorf("geçersiz tür %q (brand, category, word)", args[0])
		}
		value := strings.Join(args[1:], " ")
		if err := a.store.AddBlacklist(cmd.Context(), a.userID, kind, value); err != nil {
			return err
		}
		fmt.Printf("[OK] %s yasaklı listeye eklendi: %s\n", kind, value)
		return nil
	},
}

var categoryCheckCmd = &cobra.Command{
	Use:   "check [başlık]",
	Short: "Ürün başlığını yasaklı listeye karşı kontrol et ve temizlenmiş halini göster",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		reason, err := a.category.CheckForbidden(cmd.Context(), a.userID, title, checkBrand, checkCat)
		if err != nil {
			return err
		}
		if reason != "" {
			fmt.Printf("[YASAK] %s\n", reason)
		} else {
			fmt.Println("[OK] Yasaklı içerik yok.")
		}
		clean, err := a.category.CleanText(cmd.Context(), a.userID, title)
		if err != nil {
			return err
		}
		if clean != title {
			fmt.Printf("Temiz başlık: %s\n", clean)
		}
		return nil
	},
}

var brandMapCmd = &cobra.Command{
	Use:   "brand-map [kaynak-marka] [hedef-marka]",
	Short: "Tedarikçi marka adını pazaryeri marka adına eşle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.store.SaveBrandMapping(cmd.Context(), a.userID, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("[OK] %s -> %s\n", args[0], args[1])
		return nil
	},
}

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Son toplu işlerin geçmişi",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJobHistory(cmd.Context(), jobsLimit)
	},
}

func printJobHistory(ctx context.Context, limit int) error {
	logs, err := a.store.RecentBatchLogs(ctx, a.userID, limit)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("[!] Kayıtlı iş yok.")
		return nil
	}
	for _, b := range logs {
		fmt.Printf("%s | %-16s | %-10s | %-9s | %d/%d hata %d", b.CreatedAt.Local().Format("02.01 15:04"),
			b.JobType, b.Marketplace, b.Status, b.SuccessCount, b.ProductCount, b.FailCount)
		if b.Error != "" {
			fmt.Printf(" | %s", b.Error)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	barcodeFillCmd.Flags().BoolVar(&barcodeAll, "all", false, "mevcut barkodlar dahil hepsini yenile")
	listingsImportCmd.Flags().BoolVar(&listingsMaster, "master", false, "aktarımdan sonra ana kataloğa işle")
	categoryFillCmd.Flags().IntVar(&fillNameCol, "name-col", 0, "kategori adı sütunu (0 tabanlı)")
	categoryFillCmd.Flags().IntVar(&fillIDCol, "id-col", 1, "kategori ID'sinin yazılacağı sütun (0 tabanlı)")
	categoryCheckCmd.Flags().StringVar(&checkBrand, "brand", "", "marka")
	categoryCheckCmd.Flags().StringVar(&checkCat, "category", "", "kategori")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "gösterilecek iş sayısı")

	barcodeCmd.AddCommand(barcodeFillCmd)
	listingsCmd.AddCommand(listingsImportCmd, listingsCompareCmd)
	categoryCmd.AddCommand(categoryImportCmd, categoryMatchCmd, categoryFillCmd, blacklistAddCmd, categoryCheckCmd)
	rootCmd.AddCommand(barcodeCmd, listingsCmd, categoryCmd, brandMapCmd, jobsCmd)
}
