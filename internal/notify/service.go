package notify

import (
	"context"
	"time"

	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/models"
	"InfoDash/internal/sse"
	"InfoDash/internal/storage"
)

// 公告免打扰按自然日记录，存储值为当天日期
const dateLayout = "2006-01-02"

// Service 系统公告
type Service struct {
	api   *market.Client
	store *storage.Store
	hub   *sse.Hub
	now   func() time.Time
}

// NewService 创建公告服务
func NewService(api *market.Client, store *storage.Store, hub *sse.Hub) *Service {
	return &Service{api: api, store: store, hub: hub, now: time.Now}
}

// AnnouncementsForToday 获取待弹出的系统公告
// 当天已选过"今日不再提示"则直接返回空，不发请求
func (s *Service) AnnouncementsForToday(ctx context.Context) ([]models.Notification, error) {
	if s.SuppressedToday() {
		log.Debugf("公告今日免打扰，跳过拉取")
		return nil, nil
	}

	list, err := s.api.GetSystemNotifications(ctx)
	if err != nil {
		return nil, err
	}

	if len(list) > 0 && s.hub != nil {
		s.hub.Publish(sse.Event{Type: sse.EventAnnouncement, Data: list})
	}
	return list, nil
}

// SuppressToday 记录"今日不再提示"
func (s *Service) SuppressToday() error {
	return s.store.Set(storage.KeyNoShowAnnouncementDate, s.today())
}

// SuppressedToday 今日是否已免打扰
func (s *Service) SuppressedToday() bool {
	date, err := s.store.Get(storage.KeyNoShowAnnouncementDate)
	if err != nil {
		return false
	}
	return date == s.today()
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}
