package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/char5742/flipmouse/internal/api"
	"github.com/char5742/flipmouse/internal/config"
	"github.com/char5742/flipmouse/internal/control"
	"github.com/char5742/flipmouse/internal/service"
)

// 終了コード。クライアントモードではシェルスクリプトからの
// 利用を想定して接続失敗と不正コマンドを区別する。
const (
	exitOK          = 0
	exitUsage       = 2
	exitConnectFail = 3
)

func main() {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "HTTP APIサーバーも起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// 引数があればクライアントモード。起動中のデーモンに
	// コマンドを送って終了する。
	if flag.NArg() >= 1 {
		os.Exit(runClient(cfg, flag.Arg(0)))
	}

	runDaemon(cfg, *useApi, *port)
}

// クライアントモードでの実行
func runClient(cfg *config.Config, cmd string) int {
	if !control.IsCommand(cmd) {
		fmt.Fprintf(os.Stderr, "不明なコマンドです: %s\n", cmd)
		return exitUsage
	}

	reply, err := control.Send(cfg.Paths.Socket, cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "デーモンに接続できませんでした: %v\n", err)
		return exitConnectFail
	}

	fmt.Println(reply)
	return exitOK
}

// デーモンモードでの実行
func runDaemon(cfg *config.Config, useApi bool, port int) {
	setupLog(cfg.Paths.Log)

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatalf("初期化に失敗しました: %v", err)
	}

	// シグナルでイベントループを終わらせる
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("シグナルを受信しました: %v", sig)
		svc.Stop()
	}()

	// APIサーバーはイベントループと別ゴルーチンで動かす。
	// 状態の書き換えはすべて制御ソケット経由なので競合しない。
	if useApi {
		apiServer := api.NewServer(cfg, port)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("APIサーバーの起動に失敗しました: %v", err)
			}
		}()
		defer apiServer.Stop()
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("イベントループが異常終了しました: %v", err)
	}
}

// setupLog はログの出力先を設定する
func setupLog(path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		log.Printf("ログディレクトリの作成に失敗しました: %v", err)
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("ログファイルを開けませんでした: %v", err)
		return
	}
	log.SetOutput(f)
}
