package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/char5742/flipmouse/internal/control"
)

// ルートの設定
func (s *Server) setupRoutes(router *http.ServeMux) {
	// 状態関連のエンドポイント
	router.HandleFunc("GET /api/status", s.handleGetStatus)
	router.HandleFunc("POST /api/enable", s.handleCommand("enable"))
	router.HandleFunc("POST /api/disable", s.handleCommand("disable"))
	router.HandleFunc("POST /api/toggle", s.handleCommand("toggle"))

	// 設定参照エンドポイント
	router.HandleFunc("GET /api/config", s.handleGetConfig)

	// ヘルスチェック用エンドポイント
	router.HandleFunc("GET /api/health", s.handleHealthCheck)
}

// 状態取得ハンドラ。デーモンからの応答行をJSONに組み替える
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	reply, err := control.Send(s.cfg.Paths.Socket, "status")
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "デーモンに接続できませんでした: "+err.Error())
		return
	}

	var enabled, speed, drag int
	if _, err := fmt.Sscanf(reply, "enabled=%d speed=%d drag=%d", &enabled, &speed, &drag); err != nil {
		writeError(w, http.StatusBadGateway, "応答の解析に失敗しました: "+reply)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": enabled != 0,
		"speed":   speed,
		"drag":    drag != 0,
	})
}

// 制御コマンド中継ハンドラ
func (s *Server) handleCommand(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply, err := control.Send(s.cfg.Paths.Socket, cmd)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "デーモンに接続できませんでした: "+err.Error())
			return
		}
		if strings.HasPrefix(reply, "err") {
			writeError(w, http.StatusBadGateway, reply)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"result": reply})
	}
}

// 設定取得ハンドラ
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
