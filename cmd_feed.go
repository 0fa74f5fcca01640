package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"vidos-entegrasyon/config"
	"vidos-entegrasyon/core"
	"vidos-entegrasyon/services"
	"vidos-entegrasyon/utils"

	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Tedarikçi kaynakları (XML/Excel feed) ve önbellek",
}

var (
	feedName     string
	feedKind     string
	feedPriority int
	feedRandom   bool
)

var feedAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Yeni tedarikçi kaynağı ekle (http(s):// ya da local:dosya.xml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := core.SourceKind(strings.ToLower(feedKind))
		if kind != core.SourceXML && kind != core.SourceExcel {
			return fmt.Errorf("kaynak tipi xml ya da excel olmalı: %q", feedKind)
		}
		name := feedName
		if name == "" {
			name = args[0]
		}
		id, err := a.store.CreateSupplierSource(cmd.Context(), core.SupplierSource{
			UserID: a.userID, Name: name, URL: args[0], Kind: kind, Priority: feedPriority,
			Active: true, UseRandomBarcode: feedRandom,
		})
		if err != nil {
			return err
		}
		fmt.Printf("[OK] Kaynak eklendi. ID: %d\n", id)
		return nil
	},
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "Aktif kaynakları öncelik sırasıyla listele",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := a.store.ActiveSupplierSources(cmd.Context(), a.userID)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Println("[!] Aktif kaynak yok. 'vidos feed add' ile ekleyin.")
			return nil
		}
		for _, s := range sources {
			cached := "hiç"
			if !s.LastCachedAt.IsZero() {
				cached = s.LastCachedAt.Local().Format("02.01.2006 15:04")
			}
			fmt.Printf("%4d | öncelik %2d | %-5s | %-30s | önbellek: %s\n", s.ID, s.Priority, s.Kind, s.Name, cached)
		}
		return nil
	},
}

var feedRefreshCmd = &cobra.Command{
	Use:   "refresh [kaynak-id...]",
	Short: "Kaynakları indirip önbelleği yenile (id verilmezse tüm aktif kaynaklar)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return refreshFeeds(cmd.Context(), ids)
	},
}

// refreshFeeds: ids boşsa tüm aktif kaynaklar yenilenir
func refreshFeeds(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		sources, err := a.store.ActiveSupplierSources(ctx, a.userID)
		if err != nil {
			return err
		}
		for _, s := range sources {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Println("[!] Yenilenecek kaynak yok.")
		return nil
	}

	// aynı kullanıcı için tek yenileme işi koşabilir, kaynaklar sırayla yenilenir
	failed := 0
	for _, id := range ids {
		jobID, err := a.feeds.SubmitRefresh(a.userID, id)
		if err != nil {
			return fmt.Errorf("kaynak %d kuyruğa alınamadı: %w", id, err)
		}
		info, err := a.queue.Wait(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("[KAYNAK %d] %s: %d kayıt", id, info.Status, info.Result.SuccessCount)
		if info.Error != "" {
			fmt.Printf(" | hata: %s", info.Error)
			failed++
		}
		fmt.Println()
	}
	if failed > 0 {
		return fmt.Errorf("%d kaynak yenilenemedi", failed)
	}
	return nil
}

var feedInspectCmd = &cobra.Command{
	Use:   "inspect [excel-dosyası]",
	Short: "Excel feed'ini kaydetmeden oku, eşleşen sütunları ve satır hatalarını göster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := services.ParseExcelFeed(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("[OK] %d kayıt okundu, %d satır hatalı.\n", len(feed.Records), len(feed.Errors))
		for _, field := range slices.Sorted(maps.Keys(feed.Columns)) {
			fmt.Printf("  %-14s <- %s\n", field, feed.Headers[feed.Columns[field]])
		}
		printRowErrors(feed.Errors)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [barkod|stok-kodu]",
	Short: "Kodu kaynaklarda öncelik sırasıyla ara, maliyet ve pazaryeri fiyatını göster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		set, err := a.resolver.Load(ctx, a.userID)
		if err != nil {
			return err
		}
		res, ok := set.Resolve(args[0], args[0], "")
		if !ok {
			fmt.Printf("[!] %s hiçbir kaynakta bulunamadı (%d kayıt tarandı).\n", args[0], set.Len())
			return nil
		}
		rec := res.Record
		if resolveJSON {
			utils.LogJSON(rec)
			return nil
		}
		fmt.Printf("Kaynak   : %s (ID %d)\n", res.SourceName, res.SourceID)
		fmt.Printf("Ürün     : %s\n", rec.Title)
		fmt.Printf("Barkod   : %s | Stok kodu: %s\n", rec.Barcode, rec.StockCode)
		fmt.Printf("Stok     : %d | KDV: %%%d\n", rec.Quantity, rec.VatRate)
		fmt.Printf("Feed fiy.: %s\n", rec.Price.StringFixed(2))

		cost, known, err := a.resolver.CostOf(ctx, a.userID, set, rec.Barcode, rec.StockCode)
		if err != nil {
			return err
		}
		if known {
			fmt.Printf("Maliyet  : %s\n", cost.StringFixed(2))
		}
		for _, mp := range core.Marketplaces {
			price, err := a.resolver.ResolvePrice(ctx, a.userID, mp, rec)
			if err != nil {
				return err
			}
			fmt.Printf("  %-12s %s\n", mp.DisplayName(), price.StringFixed(2))
		}
		return nil
	},
}

var resolveJSON bool

var priceCalcCmd = &cobra.Command{
	Use:   "price [pazaryeri] [taban-fiyat]",
	Short: "Pazaryerinin fiyat kuralları ile satış fiyatını hesapla",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		base, ok := utils.ParseMoney(args[1])
		if !ok {
			return fmt.Errorf("geçersiz fiyat: %q", args[1])
		}
		price, err := a.resolver.ResolvePrice(cmd.Context(), a.userID, mp, core.SupplierRecord{Price: base})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s -> %s\n", mp.DisplayName(), base.StringFixed(2), price.StringFixed(2))
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Kullanıcı ayarları (fiyat kuralları, BUG-Z anahtarları, marka eşleştirme)",
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [anahtar] [değer]",
	Short: "Ayar yaz (örn: PRICE_MULTIPLIER 1.25, HB_PRICE_RULES '[...]')",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.store.SetSetting(cmd.Context(), a.userID, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("[OK] %s kaydedildi.\n", args[0])
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list [önek]",
	Short: "Ayarları listele (sırlar maskelenir)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		settings, err := a.store.Settings(cmd.Context(), a.userID, prefix)
		if err != nil {
			return err
		}
		for _, k := range slices.Sorted(maps.Keys(settings)) {
			v := settings[k]
			if strings.Contains(k, "SECRET") || strings.HasSuffix(k, "_KEY") {
				v = strings.Repeat("*", min(len(v), 8))
			}
			fmt.Printf("%-32s %s\n", k, v)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "config-init",
	Short: "Geçerli ayarları (varsayılanlar ve VIDOS_* değişkenleri dahil) --config dosyasına yaz",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveConfig(configPath, a.cfg); err != nil {
			return err
		}
		fmt.Printf("[OK] Konfigürasyon '%s' dosyasına yazıldı.\n", configPath)
		return nil
	},
}

func init() {
	feedAddCmd.Flags().StringVar(&feedName, "name", "", "kaynak adı")
	feedAddCmd.Flags().StringVar(&feedKind, "kind", "xml", "kaynak tipi: xml | excel")
	feedAddCmd.Flags().IntVar(&feedPriority, "priority", 1, "öncelik (küçük olan önce)")
	feedAddCmd.Flags().BoolVar(&feedRandom, "random-barcode", false, "barkodsuz ürünlere rastgele barkod üret")

	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "tedarikçi kaydını JSON olarak bas")

	feedCmd.AddCommand(feedAddCmd, feedListCmd, feedRefreshCmd, feedInspectCmd)
	settingsCmd.AddCommand(settingsSetCmd, settingsListCmd)
	rootCmd.AddCommand(feedCmd, resolveCmd, priceCalcCmd, settingsCmd, configInitCmd)
}
