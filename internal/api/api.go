package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"InfoDash/internal/market"
)

// Response 统一响应体
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// writeUpstreamError 上游接口错误透传状态码与提示语，其余按 502 处理
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, Response{Success: false, Message: apiErr.Message})
		return
	}
	writeError(w, http.StatusBadGateway, "上游服务请求失败")
}
