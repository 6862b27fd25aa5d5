package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/models"
	"InfoDash/internal/sse"

	"github.com/google/uuid"
)

// 客服消息轮询间隔
const pollInterval = 4 * time.Second

// ErrEmptyMessage 空文本消息不发送
var ErrEmptyMessage = errors.New("消息内容不能为空")

// UserSource 提供当前登录用户，避免对会话服务的硬依赖
type UserSource interface {
	User() *models.UserSummary
}

// Service 客服聊天
// 固定间隔轮询历史消息；图片消息先插本地占位，服务端回包后替换或标记失败
type Service struct {
	api   *market.Client
	hub   *sse.Hub
	users UserSource

	interval time.Duration

	// fetchSeq 递增序号，慢响应回来时丢弃，避免旧数据覆盖新轮询结果
	fetchSeq atomic.Uint64

	mu         sync.Mutex
	latest     []models.CSMessage
	pollCancel context.CancelFunc
}

// NewService 创建聊天服务
func NewService(api *market.Client, hub *sse.Hub, users UserSource) *Service {
	return &Service{
		api:      api,
		hub:      hub,
		users:    users,
		interval: pollInterval,
	}
}

// FetchMessages 拉取历史消息
// 先批量标记全部已读（失败不阻塞），再取列表并在入口处归一化 isOwn
func (s *Service) FetchMessages(ctx context.Context) ([]models.CSMessage, error) {
	user := s.users.User()
	if user == nil || user.ID == "" {
		log.Debugf("用户未就绪，跳过客服消息拉取")
		return nil, nil
	}

	if err := s.api.MarkAllMessagesAsRead(ctx); err != nil {
		log.Warnf("批量标记已读失败: %v", err)
	}

	seq := s.fetchSeq.Add(1)

	msgs, err := s.api.GetMessages(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		annotate(&msgs[i], user)
	}

	// 更新序号已前进说明有更新的一次拉取在途或已完成，放弃本次结果
	if seq != s.fetchSeq.Load() {
		log.Debugf("丢弃过期的消息轮询结果 seq=%d", seq)
		return msgs, nil
	}

	s.mu.Lock()
	s.latest = msgs
	s.mu.Unlock()

	s.publishMessages(msgs)
	return msgs, nil
}

// annotate 入口处一次性计算 "是否本人消息"，后续展示只看 IsOwn
func annotate(msg *models.CSMessage, user *models.UserSummary) {
	msg.IsOwn = msg.SenderType == models.SenderTypeUser ||
		(msg.SenderID != "" && msg.SenderID == user.ID)
}

// SendText 发送文本消息
func (s *Service) SendText(ctx context.Context, content string) (*models.CSMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.api.SendMessage(ctx, market.SendMessageRequest{Content: content})
	if err != nil {
		return nil, err
	}
	if user := s.users.User(); user != nil {
		annotate(msg, user)
	}
	s.appendMessage(*msg)
	return msg, nil
}

// SendImage 发送图片消息
// 立即广播一条带本地预览的占位消息，上传+发送完成后替换；
// 任一环节失败则把占位标记为发送失败并返回错误
func (s *Service) SendImage(ctx context.Context, name, previewURL string, file io.Reader) (*models.CSMessage, error) {
	placeholder := models.CSMessage{
		TempID:      uuid.New().String(),
		SenderType:  models.SenderTypeUser,
		MessageType: models.MessageTypeImage,
		Content:     name,
		ImageURL:    previewURL,
		CreatedAt:   time.Now(),
		IsOwn:       true,
		Pending:     true,
	}
	s.appendMessage(placeholder)
	if s.hub != nil {
		s.hub.Publish(sse.Event{Type: sse.EventChatPending, Data: placeholder})
	}

	imageURL, err := s.api.UploadImage(ctx, name, file)
	if err != nil {
		s.failPlaceholder(placeholder.TempID)
		return nil, err
	}

	msg, err := s.api.SendMessage(ctx, market.SendMessageRequest{
		MessageType: models.MessageTypeImage,
		ImageURL:    imageURL,
		Content:     name,
	})
	if err != nil {
		s.failPlaceholder(placeholder.TempID)
		return nil, err
	}

	if user := s.users.User(); user != nil {
		annotate(msg, user)
	}
	s.replacePlaceholder(placeholder.TempID, *msg)
	return msg, nil
}

// MarkRead 单条标记已读
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	return s.api.MarkMessageAsRead(ctx, messageID)
}

// Messages 当前消息快照
func (s *Service) Messages() []models.CSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CSMessage, len(s.latest))
	copy(out, s.latest)
	return out
}

// StartPolling 启动 4 秒轮询；已在轮询则不重复启动
func (s *Service) StartPolling() {
	s.mu.Lock()
	if s.pollCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.FetchMessages(ctx); err != nil {
					log.Warnf("轮询客服消息失败: %v", err)
				}
			}
		}
	}()
}

// StopPolling 停止轮询
func (s *Service) StopPolling() {
	s.mu.Lock()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	// 会话结束后清空快照
	s.latest = nil
	s.mu.Unlock()
}

// appendMessage 追加一条消息并广播最新列表
func (s *Service) appendMessage(msg models.CSMessage) {
	s.mu.Lock()
	s.latest = append(s.latest, msg)
	snapshot := make([]models.CSMessage, len(s.latest))
	copy(snapshot, s.latest)
	s.mu.Unlock()

	s.publishMessages(snapshot)
}

// replacePlaceholder 用服务端消息替换本地占位
func (s *Service) replacePlaceholder(tempID string, msg models.CSMessage) {
	s.mu.Lock()
	for i := range s.latest {
		if s.latest[i].TempID == tempID {
			s.latest[i] = msg
			break
		}
	}
	snapshot := make([]models.CSMessage, len(s.latest))
	copy(snapshot, s.latest)
	s.mu.Unlock()

	s.publishMessages(snapshot)
}

// failPlaceholder 占位消息标记为发送失败
func (s *Service) failPlaceholder(tempID string) {
	s.mu.Lock()
	for i := range s.latest {
		if s.latest[i].TempID == tempID {
			s.latest[i].Pending = false
			s.latest[i].SendFailed = true
			break
		}
	}
	snapshot := make([]models.CSMessage, len(s.latest))
	copy(snapshot, s.latest)
	s.mu.Unlock()

	s.publishMessages(snapshot)
}

func (s *Service) publishMessages(msgs []models.CSMessage) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(sse.Event{Type: sse.EventChatMessages, Data: msgs})
}
