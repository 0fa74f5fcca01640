package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vidos-entegrasyon/services"
)

func runMenu(ctx context.Context) error {
	for {
		fmt.Println("\n" + strings.Repeat("=", 40))
		fmt.Println("     VIDOS ENTEGRASYON - ANA MENÜ")
		fmt.Println(strings.Repeat("=", 40))
		fmt.Println("1- Tedarikçi Kaynaklarını Yenile")
		fmt.Println("2- Stok/Fiyat Senkron Planı")
		fmt.Println("3- Sipariş Excel'i İçe Aktar")
		fmt.Println("4- Finansal Özet")
		fmt.Println("5- Eksik Barkodları Üret")
		fmt.Println("6- Ürün Kodu Sorgula")
		fmt.Println("7- İş Geçmişi")
		fmt.Println("0- Çıkış")

		choice, readErr := a.readInput("\nSeçiminiz: ")
		if readErr != nil && choice == "" {
			if errors.Is(readErr, io.EOF) {
				fmt.Println()
				return nil
			}
			return readErr
		}

		var err error
		switch choice {
		case "1":
			err = refreshFeeds(ctx, nil)
		case "2":
			err = menuSyncPlan(ctx)
		case "3":
			err = menuOrderImport(ctx)
		case "4":
			from, ferr := parseDateFlag(a.askInput("Başlangıç (gg.aa.yyyy, boş: hepsi): "), false)
			to, terr := parseDateFlag(a.askInput("Bitiş (gg.aa.yyyy, boş: bugün): "), true)
			if ferr != nil || terr != nil {
				err = fmt.Errorf("tarih anlaşılamadı")
				break
			}
			err = printSummary(ctx, from, to)
		case "5":
			err = runBarcodeFill(ctx, false)
		case "6":
			code := a.askInput("Barkod ya da stok kodu: ")
			if code != "" {
				resolveCmd.SetContext(ctx)
				err = resolveCmd.RunE(resolveCmd, []string{code})
			}
		case "7":
			err = printJobHistory(ctx, 20)
		case "0":
			fmt.Println("Güle güle!")
			return nil
		}
		if err != nil {
			fmt.Printf("[HATA] %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func menuSyncPlan(ctx context.Context) error {
	fmt.Println("1- Direkt (tek kaynak)  2- Stok  3- Fiyat")
	var kind string
	switch a.askInput("Plan türü: ") {
	case "1":
		kind = services.PlanDirect
	case "2":
		kind = services.PlanStock
	case "3":
		kind = services.PlanPrice
	default:
		return nil
	}
	mp, err := parseMarketplace(a.askInput("Pazaryeri (trendyol, hepsiburada, n11, pazarama, idefix, ikas): "))
	if err != nil {
		return err
	}
	var sourceID int64
	if kind == services.PlanDirect {
		sourceID, err = strconv.ParseInt(a.askInput("Kaynak ID: "), 10, 64)
		if err != nil {
			return fmt.Errorf("geçersiz kaynak id")
		}
	}
	return runSyncPlan(ctx, kind, mp, sourceID, true, false)
}

func menuOrderImport(ctx context.Context) error {
	mp, err := parseMarketplace(a.askInput("Pazaryeri: "))
	if err != nil {
		return err
	}
	path := a.askInput("Excel dosyası: ")
	if path == "" {
		return nil
	}
	return runOrderImport(ctx, mp, path)
}
