package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/KatriaDopex/jestermaxxing/internal/feed"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
)

// GetStatus 返回当前接入链路状态
func GetStatus(app *feed.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				http.Error(w, fmt.Sprintf("Internal server error: %v", r), http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodGet {
			http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, map[string]interface{}{
			"status": app.Status().String(),
			"ready":  app.IsReady(),
		})
	}
}

// GetStats 返回当前统计快照
func GetStats(app *feed.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				http.Error(w, fmt.Sprintf("Internal server error: %v", r), http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodGet {
			http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, app.Stats())
	}
}

// GetHolders 返回当前持有人榜单
func GetHolders(app *feed.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				http.Error(w, fmt.Sprintf("Internal server error: %v", r), http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodGet {
			http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
			return
		}

		holders := app.Holders()
		if holders == nil {
			holders = []types.HolderRecord{}
		}
		writeJSON(w, holders)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
