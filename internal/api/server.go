package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/char5742/flipmouse/internal/config"
)

// Server は制御ソケットをHTTPに中継するAPIサーバーを表す構造体。
// 状態の書き換えはすべてソケット経由で行い、イベントループとは
// プロセス内で状態を共有しない。
type Server struct {
	server *http.Server
	cfg    *config.Config
	port   int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg *config.Config, port int) *Server {
	return &Server{
		cfg:  cfg,
		port: port,
	}
}

// Start はAPIサーバーを開始する
func (s *Server) Start() error {
	// ルーターの設定
	router := http.NewServeMux()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	log.Printf("APIサーバーを開始します: http://localhost:%d", s.port)
	return s.server.ListenAndServe()
}

// Stop はAPIサーバーを停止する
func (s *Server) Stop() error {
	if s.server != nil {
		log.Println("APIサーバーを停止します...")
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("JSONエンコードエラー: %v", err)
		}
	}
}

// writeError はエラーレスポンスを書き込む
func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]string{"error": message}
	writeJSON(w, status, response)
}
