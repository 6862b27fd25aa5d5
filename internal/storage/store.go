package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"InfoDash/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// 本地持久化键名，对应浏览器端 localStorage 的布局
const (
	KeyToken                  = "token"
	KeyUser                   = "user"
	KeyRememberMe             = "rememberMe"
	KeyRememberedUsername     = "rememberedUsername"
	KeyNoShowAnnouncementDate = "noShowAnnouncementDate"
	KeyPayPasswordHash        = "payPasswordHash"

	// KeySession 是 SaveSession/ClearSession 的广播键，
	// 令牌与用户两个键的变化合并为一次通知
	KeySession = "session"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("键不存在")

// Change 本地状态变更事件，广播给所有订阅者（对应跨标签页 storage 事件）
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Store 本地客户端状态存储
// 写库同时维护内存缓存，读优先走缓存
type Store struct {
	db    *sql.DB
	cache sync.Map

	mu   sync.RWMutex
	subs map[int]chan Change
	next int

	// tempPassword 仅存内存，进程重启即丢（对应 sessionStorage）
	tempMu       sync.RWMutex
	tempPassword string
}

// Open 打开（或创建）本地存储
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// 单文件串行化写，避免锁冲突
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:   db,
		subs: make(map[int]chan Change),
	}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	return s.db.Close()
}

// 初始化表结构
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS "ClientState" (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Get 读取键值（优先缓存）
func (s *Store) Get(key string) (string, error) {
	if value, ok := s.cache.Load(key); ok {
		return value.(string), nil
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM "ClientState" WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}

	s.cache.Store(key, value)
	return value, nil
}

// Set 写入键值（写库并更新缓存），随后广播变更
func (s *Store) Set(key, value string) error {
	if err := s.put(key, value); err != nil {
		return err
	}
	s.broadcast(Change{Key: key, Value: value})
	return nil
}

// Delete 删除键，不存在时也视为成功
func (s *Store) Delete(key string) error {
	if err := s.remove(key); err != nil {
		return err
	}
	s.broadcast(Change{Key: key, Deleted: true})
	return nil
}

// put 写库并更新缓存，不广播
func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO "ClientState" (key, value, updatedAt)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP;
	`, key, value)
	if err != nil {
		return err
	}
	s.cache.Store(key, value)
	return nil
}

// remove 删库并清缓存，不广播
func (s *Store) remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM "ClientState" WHERE key = ?`, key); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

// Subscribe 订阅状态变更，返回取消函数
func (s *Store) Subscribe(buf int) (<-chan Change, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Change, buf)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// broadcast 通知所有订阅者；队列满则丢弃，避免阻塞写入方
func (s *Store) broadcast(c Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Token 读取持久化的登录令牌，不存在返回空串
func (s *Store) Token() string {
	token, err := s.Get(KeyToken)
	if err != nil {
		return ""
	}
	return token
}

// User 读取持久化的用户信息
func (s *Store) User() (*models.UserSummary, error) {
	raw, err := s.Get(KeyUser)
	if err != nil {
		return nil, err
	}
	var u models.UserSummary
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	u.Normalize()
	return &u, nil
}

// SaveSession 持久化令牌与用户；令牌与用户作为一次变更广播，保证订阅方
// 不会观察到只有一半写入的中间态
func (s *Store) SaveSession(token string, user *models.UserSummary) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.put(KeyToken, token); err != nil {
		return err
	}
	if err := s.put(KeyUser, string(raw)); err != nil {
		return err
	}
	s.broadcast(Change{Key: KeySession, Value: token})
	return nil
}

// ClearSession 清空令牌与用户，重复调用安全
func (s *Store) ClearSession() error {
	if err := s.remove(KeyToken); err != nil {
		return err
	}
	if err := s.remove(KeyUser); err != nil {
		return err
	}
	s.broadcast(Change{Key: KeySession, Deleted: true})
	return nil
}

// SetTempPassword 登录表单打开期间的密码镜像，仅存内存
func (s *Store) SetTempPassword(pw string) {
	s.tempMu.Lock()
	s.tempPassword = pw
	s.tempMu.Unlock()
}

// TempPassword 读取密码镜像
func (s *Store) TempPassword() string {
	s.tempMu.RLock()
	defer s.tempMu.RUnlock()
	return s.tempPassword
}

// ClearTempPassword 清除密码镜像
func (s *Store) ClearTempPassword() {
	s.SetTempPassword("")
}
