// Package server 研究条目事件 WebSocket 网关
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 前端与 API 不同源，放开来源检查（认证不在本服务范围内）
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleItemFeed 研究条目事件实时推送
//
// 路由: GET /api/v1/projects/{id}/research-items/ws
//
// 订阅项目的条目变更事件流并逐条以 JSON 推送给客户端。
// 连接关闭或订阅上下文取消时退出。
func (h *Handler) HandleItemFeed(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed", "project_id", projectID)
		return
	}
	defer conn.Close()

	h.metrics.WSConnectionOpened()
	defer h.metrics.WSConnectionClosed()

	ctx := r.Context()
	events, err := h.bus.SubscribeItemEvents(ctx, projectID)
	if err != nil {
		h.logger.WithError(err).Warn("Item event subscription failed", "project_id", projectID)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(wsWriteTimeout))
		return
	}

	// 读取泵：丢弃入站消息，感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			h.metrics.WSEventRelayed()
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
