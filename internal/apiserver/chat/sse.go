package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter SSE 响应写入器
//
// 首次写入事件时才设置流式响应头，这样在任何增量产生之前失败的请求
// 仍然可以退回普通 JSON 错误响应。
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

// Started 是否已经输出过事件
func (s *sseWriter) Started() bool {
	return s.started
}

// WriteEvent 写入一个 SSE 事件，data 序列化为 JSON
func (s *sseWriter) WriteEvent(event string, data interface{}) {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.started = true
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
