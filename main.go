package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	username   string

	// komutların ortak bağımlılıkları, PersistentPreRunE içinde kurulur
	a *app
)

var rootCmd = &cobra.Command{
	Use:   "vidos",
	Short: "Vidos Entegrasyon - tedarikçi feed'leri, pazaryeri senkronu ve sipariş kârlılığı",
	Long: `Vidos Entegrasyon komut satırı.

Tedarikçi XML/Excel feed'lerini önbelleğe alır, pazaryeri listelerini içe aktarır,
stok ve fiyat senkron planlarını hazırlar, siparişleri içe aktarıp BUG-Z'ye iletir
ve kârlılık raporu çıkarır.

Argümansız çalıştırıldığında etkileşimli menü açılır.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = newApp(cmd.Context(), configPath, username)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.json", "konfigürasyon dosyası")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "admin", "işlemlerin yapılacağı kullanıcı")

	rootCmd.AddCommand(menuCmd)
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Etkileşimli menüyü aç",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := execute(ctx, rootCmd)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[HATA] %v\n", err)
		os.Exit(1)
	}
}

// execute: komut hata ile dönse de kuyruk ve veritabanı kapatılır
func execute(ctx context.Context, cmd *cobra.Command) error {
	defer func() {
		if a != nil {
			a.Close()
			a = nil
		}
	}()
	return cmd.ExecuteContext(ctx)
}
