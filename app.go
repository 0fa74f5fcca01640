package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"vidos-entegrasyon/config"
	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"
	"vidos-entegrasyon/services"
	"vidos-entegrasyon/utils"

	"go.uber.org/zap"
)

// app: komutların paylaştığı servisler
type app struct {
	cfg    core.Config
	log    *zap.Logger
	store  *database.Store
	queue  *services.JobQueue
	userID int64
	reader *bufio.Reader

	resolver *services.Resolver
	feeds    *services.FeedService
	sync     *services.SyncService
	listings *services.ListingService
	orders   *services.OrderService
	bugz     *services.BugZService
	finance  *services.FinanceService
	barcodes *services.BarcodeService
	category *services.CategoryService
}

func newApp(ctx context.Context, cfgPath, username string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := utils.InitLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger kurulamadı: %w", err)
	}

	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	userID, err := store.EnsureUser(ctx, username)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("kullanıcı bulunamadı: %w", err)
	}

	queue := services.NewJobQueue(cfg.Jobs.Workers, cfg.Jobs.MaxJobs, store, logger)
	resolver := services.NewResolver(store, cfg.Feed.MaxCachedSources, logger)
	bugz := services.NewBugZService(store, queue, cfg.BugZ, logger)

	logger.Debug("uygulama hazır", zap.String("db", cfg.Database.Path), zap.String("user", username), zap.Int64("user_id", userID))
	return &app{
		cfg:      cfg,
		log:      logger,
		store:    store,
		queue:    queue,
		userID:   userID,
		reader:   bufio.NewReader(os.Stdin),
		resolver: resolver,
		feeds:    services.NewFeedService(store, queue, cfg, logger),
		sync:     services.NewSyncService(store, resolver, queue, cfg, logger),
		listings: services.NewListingService(store, logger),
		orders:   services.NewOrderService(store, bugz, logger),
		bugz:     bugz,
		finance:  services.NewFinanceService(store, resolver, queue, logger),
		barcodes: services.NewBarcodeService(store, logger),
		category: services.NewCategoryService(store, logger),
	}, nil
}

// Close: kuyruktaki işlerin bitmesini bekler (en fazla 30 sn), sonra DB kapanır
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.queue.Shutdown(ctx); err != nil {
		a.log.Warn("iş kuyruğu zamanında kapanmadı", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("veritabanı kapatılamadı", zap.Error(err))
	}
	_ = a.log.Sync()
}

// waitJob: işi bekler, loglarını ve sonucunu yazdırır
func (a *app) waitJob(ctx context.Context, id string) (services.JobInfo, error) {
	fmt.Printf("[İŞ] %s kuyruğa alındı, bekleniyor...\n", id)
	info, err := a.queue.Wait(ctx, id)
	if err != nil {
		return info, err
	}
	for _, l := range info.Logs {
		fmt.Printf("  %s [%s] %s\n", l.Time.Local().Format("15:04:05"), strings.ToUpper(l.Level), l.Message)
	}
	fmt.Printf("[İŞ] %s: %s | toplam %d, başarılı %d, hatalı %d\n", info.JobType, info.Status,
		info.Result.ProductCount, info.Result.SuccessCount, info.Result.FailCount)
	if info.Status == core.JobFailed {
		return info, fmt.Errorf("iş başarısız: %s", info.Error)
	}
	return info, nil
}

// readInput: girdi bittiğinde (EOF) son satırla birlikte hatayı da döner
func (a *app) readInput(prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := a.reader.ReadString('\n')
	return strings.TrimSpace(input), err
}

func (a *app) askInput(prompt string) string {
	input, _ := a.readInput(prompt)
	return input
}

// confirm: e/evet/y/yes onay sayılır
func (a *app) confirm(prompt string) bool {
	switch strings.ToLower(a.askInput(prompt + " (e/h): ")) {
	case "e", "evet", "y", "yes":
		return true
	}
	return false
}

// chooseCategory: otomatik eşleşmeyen kategori için adayları gösterip seçim ister.
// Numara, doğrudan kategori ID'si ya da boş (atla) girilebilir.
func (a *app) chooseCategory(name string, candidates []core.CategoryMatch) string {
	fmt.Printf("\n[?] '%s' için otomatik eşleşme bulunamadı.\n", name)
	for i, m := range candidates {
		fmt.Printf("  %d. %s (ID: %s) - %%%.0f\n", i+1, m.Name, m.ID, m.Score*100)
	}
	in := a.askInput("Seçiminiz (numara, kategori ID ya da boş geç): ")
	if in == "" {
		return ""
	}
	for i, m := range candidates {
		if in == fmt.Sprint(i+1) {
			return m.ID
		}
	}
	return in
}

func parseMarketplace(s string) (core.Marketplace, error) {
	mp, ok := core.ParseMarketplace(s)
	if !ok {
		names := make([]string, 0, len(core.Marketplaces))
		for _, m := range core.Marketplaces {
			names = append(names, string(m))
		}
		return "", fmt.Errorf("bilinmeyen pazaryeri %q (geçerli: %s)", s, strings.Join(names, ", "))
	}
	return mp, nil
}

// parseDateFlag: boş değer sınırsız demektir. endOfDay ile saatsiz tarih günün sonuna çekilir.
func parseDateFlag(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := services.ParseOrderDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("tarih anlaşılamadı: %q (örn: 01.03.2025)", s)
	}
	if endOfDay && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func printRowErrors(errs []core.RowError) {
	const limit = 20
	for i, e := range errs {
		if i == limit {
			fmt.Printf("  ... ve %d hata daha\n", len(errs)-limit)
			break
		}
		fmt.Printf("  satır %d [%s]: %s\n", e.Row, e.Column, e.Message)
	}
}
