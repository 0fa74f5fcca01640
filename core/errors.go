package core

import "errors"

var (
	ErrNotFound          = errors.New("kayıt bulunamadı")
	ErrEmptyFeed         = errors.New("feed içinde ürün bulunamadı")
	ErrUnknownFeedFormat = errors.New("feed formatı tanınmadı")
	ErrPriceGuard        = errors.New("kritik fiyat değişimi")
	ErrInvalidOperation  = errors.New("geçersiz fiyat işlemi")
	ErrJobNotFound       = errors.New("iş bulunamadı")
	ErrJobRunning        = errors.New("aynı türde bir iş zaten çalışıyor")
	ErrQueueClosed       = errors.New("iş kuyruğu kapalı")
	ErrQueueFull         = errors.New("iş kuyruğu dolu")
	ErrJobFinished       = errors.New("iş zaten sonlanmış")
	ErrJobCancelled      = errors.New("iş iptal edildi")
	ErrNotConfigured     = errors.New("entegrasyon ayarları eksik")
	ErrRateLimited       = errors.New("istek limiti aşıldı")
)
