package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const localPrefix = "local:"

// FeedService: tedarikçi XML/Excel kaynaklarını indirir, okur ve önbelleğe yazar
type FeedService struct {
	store     *database.Store
	client    *resty.Client
	queue     *JobQueue
	uploadDir string
	log       *zap.Logger
}

func NewFeedService(store *database.Store, queue *JobQueue, cfg core.Config, logger *zap.Logger) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(cfg.Feed.Timeout).
		SetHeader("User-Agent", cfg.Feed.UserAgent)

	return &FeedService{
		store:     store,
		client:    client,
		queue:     queue,
		uploadDir: cfg.App.UploadDir,
		log:       logger.Named("feed"),
	}
}

// Fetch: "local:dosya.xml" yükleme klasöründen okunur, diğerleri HTTP GET ile indirilir.
func (s *FeedService) Fetch(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimSpace(url)
	if name, ok := strings.CutPrefix(url, localPrefix); ok {
		path, err := s.localPath(name)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("yerel feed dosyası bulunamadı: %s: %w", name, err)
		}
		return raw, nil
	}

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("feed indirilemedi: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("feed indirilemedi: HTTP %d", resp.StatusCode())
	}
	s.log.Debug("feed indirildi", zap.String("url", url), zap.Int("bytes", len(resp.Body())))
	return resp.Body(), nil
}

// localPath: yükleme klasörü dışına çıkan isimler reddedilir
func (s *FeedService) localPath(name string) (string, error) {
	name = filepath.Clean(strings.TrimSpace(name))
	if name == "." || filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
		return "", fmt.Errorf("geçersiz yerel dosya adı: %q", name)
	}
	return filepath.Join(s.uploadDir, name), nil
}

// LoadSource, kaynağı türüne göre okur ve kayıtları döner (önbelleğe yazmaz).
func (s *FeedService) LoadSource(ctx context.Context, src core.SupplierSource) ([]core.SupplierRecord, []core.RowError, error) {
	switch src.Kind {
	case core.SourceExcel:
		path, cleanup, err := s.excelPath(ctx, src.URL)
		if err != nil {
			return nil, nil, err
		}
		defer cleanup()
		feed, err := ParseExcelFeed(path)
		if err != nil {
			return nil, feed.Errors, err
		}
		return feed.Records, feed.Errors, nil
	default:
		raw, err := s.Fetch(ctx, src.URL)
		if err != nil {
			return nil, nil, err
		}
		brands, err := s.brandMap(ctx, src.UserID)
		if err != nil {
			return nil, nil, err
		}
		records, err := ParseXMLFeed(raw, brands)
		return records, nil, err
	}
}

// excelPath: excelize dosya yolu ister, uzaktaki Excel geçici dosyaya indirilir
func (s *FeedService) excelPath(ctx context.Context, url string) (string, func(), error) {
	noop := func() {}
	if name, ok := strings.CutPrefix(url, localPrefix); ok {
		path, err := s.localPath(name)
		return path, noop, err
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return url, noop, nil
	}

	raw, err := s.Fetch(ctx, url)
	if err != nil {
		return "", noop, err
	}
	f, err := os.CreateTemp("", "vidos-feed-*.xlsx")
	if err != nil {
		return "", noop, err
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		os.Remove(f.Name())
		return "", noop, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// brandMap: brand_mappings tablosu + XML_BRAND_MAPPING ayarı (JSON). Ayar tabloyu ezer.
func (s *FeedService) brandMap(ctx context.Context, userID int64) (map[string]string, error) {
	mapping, err := s.store.BrandMappings(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.GetSetting(ctx, userID, "XML_BRAND_MAPPING", "")
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var extra map[string]string
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			s.log.Warn("XML_BRAND_MAPPING okunamadı", zap.Int64("user", userID), zap.Error(err))
		}
		for k, v := range extra {
			mapping[k] = v
		}
	}
	return mapping, nil
}

// RefreshSupplierCache, kaynağı indirip supplier_records önbelleğini baştan yazar.
// h nil olabilir (CLI'dan doğrudan çağrı).
func (s *FeedService) RefreshSupplierCache(ctx context.Context, userID, sourceID int64, h *JobHandle) (JobResult, error) {
	logf := func(level, format string, args ...any) {
		if h != nil {
			h.Logf(level, format, args...)
		}
	}

	src, err := s.store.SupplierSource(ctx, userID, sourceID)
	if err != nil {
		return JobResult{}, fmt.Errorf("kaynak %d: %w", sourceID, err)
	}
	logf("info", "Önbellek yenileniyor: %s", src.Name)

	records, rowErrs, err := s.LoadSource(ctx, src)
	if err != nil {
		logf("error", "Önbellek yenilenirken hata oluştu: %v", err)
		return JobResult{}, err
	}
	for _, re := range rowErrs {
		logf("warning", "Satır %d (%s): %s", re.Row, re.Column, re.Message)
	}

	if err := s.store.ReplaceSupplierRecords(ctx, src.ID, records); err != nil {
		return JobResult{}, fmt.Errorf("önbellek yazılamadı: %w", err)
	}

	logf("info", "Önbellek güncellendi. %d ürün işlendi.", len(records))
	s.log.Info("tedarikçi önbelleği yenilendi", zap.Int64("source", src.ID), zap.Int("records", len(records)),
		zap.Int("row_errors", len(rowErrs)))
	return JobResult{ProductCount: len(records), SuccessCount: len(records), FailCount: len(rowErrs)}, nil
}

// SubmitRefresh: önbellek yenilemeyi iş kuyruğuna atar
func (s *FeedService) SubmitRefresh(userID, sourceID int64) (string, error) {
	return s.queue.Submit(JobSpec{
		UserID:    userID,
		JobType:   JobFeedRefresh,
		Exclusive: true,
		Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
			return s.RefreshSupplierCache(ctx, userID, sourceID, h)
		},
	})
}
